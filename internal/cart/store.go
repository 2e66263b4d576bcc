// Package cart implements the shopping cart state container and its persistence.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/notify"
	"github.com/hanko-field/storefront/internal/platform/kv"
)

// StorageKey is the key the cart snapshot is persisted under.
const StorageKey = "cart"

const failedSaveMessage = "Your cart could not be saved on this device"

var (
	// ErrStorageRequired is returned by Open when no storage is configured.
	ErrStorageRequired = errors.New("cart: storage is required")
)

// Deps bundles the collaborators of a Store.
type Deps struct {
	Storage  kv.Store
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Store owns the cart line items. Add, Remove and Clear are the only mutations; persistence runs after
// each state change commits and its failure never rolls the change back.
type Store struct {
	storage  kv.Store
	notifier notify.Notifier
	logger   *zap.Logger

	mu    sync.RWMutex
	items []domain.CartLineItem
	err   error
}

// Open loads the persisted snapshot once and returns the store. Missing or unreadable snapshots
// yield an empty cart; an unreadable one also sets the error flag.
func Open(ctx context.Context, deps Deps) (*Store, error) {
	if deps.Storage == nil {
		return nil, ErrStorageRequired
	}
	s := &Store{
		storage:  deps.Storage,
		notifier: deps.Notifier,
		logger:   deps.Logger,
	}
	if s.notifier == nil {
		s.notifier = notify.Discard
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	data, err := s.storage.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		s.recordFailure(ctx, "load", fmt.Errorf("cart: load snapshot: %w", err), "Your saved cart could not be restored")
	default:
		items, decodeErr := decodeSnapshot(data)
		if decodeErr != nil {
			s.recordFailure(ctx, "decode", decodeErr, "Your saved cart could not be restored")
			break
		}
		s.items = items
	}
	return s, nil
}

// Add puts one unit of product in the cart.
func (s *Store) Add(ctx context.Context, product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = addLine(s.items, product)
	s.notifier.Notify(ctx, notify.LevelSuccess, fmt.Sprintf("Added %s to cart", product.Name))
	s.persist(ctx)
}

// Remove drops the line for productID. Unknown ids are ignored without persisting or notifying.
func (s *Store) Remove(ctx context.Context, productID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, removed, ok := removeLine(s.items, productID)
	if !ok {
		return
	}
	s.items = items
	s.notifier.Notify(ctx, notify.LevelSuccess, fmt.Sprintf("Removed %s from cart", removed.Name))
	s.persist(ctx)
}

// Clear empties the cart and deletes the persisted snapshot.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.notifier.Notify(ctx, notify.LevelSuccess, "Cart cleared")
	if err := s.storage.Delete(ctx, StorageKey); err != nil {
		s.recordFailure(ctx, "delete", fmt.Errorf("cart: delete snapshot: %w", err), failedSaveMessage)
		return
	}
	s.err = nil
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []domain.CartLineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Total is Σ price × quantity over the current items.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumTotal(s.items)
}

// Len reports the number of distinct lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Quantity reports the number of units across all lines.
func (s *Store) Quantity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.TotalQuantity(s.items)
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Err returns the error of the most recent persistence step, or nil when it succeeded.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// persist writes the current snapshot. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) {
	data, err := encodeSnapshot(s.items)
	if err != nil {
		s.recordFailure(ctx, "encode", fmt.Errorf("cart: encode snapshot: %w", err), failedSaveMessage)
		return
	}
	if err := s.storage.Set(ctx, StorageKey, data); err != nil {
		s.recordFailure(ctx, "save", fmt.Errorf("cart: save snapshot: %w", err), failedSaveMessage)
		return
	}
	s.err = nil
}

func (s *Store) recordFailure(ctx context.Context, op string, err error, message string) {
	s.err = err
	s.logger.Warn("cart persistence failed", zap.String("op", op), zap.Error(err))
	s.notifier.Notify(ctx, notify.LevelError, message)
}
