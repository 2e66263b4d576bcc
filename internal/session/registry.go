package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/cart"
	"github.com/hanko-field/storefront/internal/checkout"
	"github.com/hanko-field/storefront/internal/nav"
	"github.com/hanko-field/storefront/internal/notify"
	"github.com/hanko-field/storefront/internal/platform/kv"
	"github.com/hanko-field/storefront/internal/platform/observability"
)

const defaultIdleTimeout = 2 * time.Hour

// ErrStorageRequired is returned by NewRegistry without a backing store.
var ErrStorageRequired = errors.New("session: storage is required")

// Workspace is everything one shopper owns: the cart, the checkout flow and the
// per-request notice and navigation buffers. Holders of the workspace lock have exclusive use.
type Workspace struct {
	ID string

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time

	cart    *cart.Store
	flow    *checkout.Flow
	notices *notify.Recorder
	nav     *nav.Recorder
	flowFn  func() (*checkout.Flow, error)
}

// Cart returns the shopper's cart store.
func (w *Workspace) Cart() *cart.Store { return w.cart }

// Notices returns the buffer of notices raised during the current request.
func (w *Workspace) Notices() *notify.Recorder { return w.notices }

// Nav returns the pending navigation of the current request.
func (w *Workspace) Nav() *nav.Recorder { return w.nav }

// Flow returns the active checkout flow, if any.
func (w *Workspace) Flow() (*checkout.Flow, bool) {
	return w.flow, w.flow != nil
}

// EnterCheckout returns the active flow, starting a new one when none is running or the last one exited.
func (w *Workspace) EnterCheckout() (*checkout.Flow, error) {
	if w.flow != nil && w.flow.State() != checkout.StateExited {
		return w.flow, nil
	}
	flow, err := w.flowFn()
	if err != nil {
		return nil, err
	}
	w.flow = flow
	return flow, nil
}

// RegistryDeps bundles the collaborators of a Registry.
type RegistryDeps struct {
	Storage     kv.Store
	Logger      *zap.Logger
	IdleTimeout time.Duration
	Clock       func() time.Time
	OrderID     func() string
}

// Registry keeps the open workspaces keyed by session id.
type Registry struct {
	storage kv.Store
	logger  *zap.Logger
	idle    time.Duration
	now     func() time.Time
	orderID func() string

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewRegistry constructs an empty registry.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.Storage == nil {
		return nil, ErrStorageRequired
	}
	r := &Registry{
		storage:    deps.Storage,
		logger:     deps.Logger,
		idle:       deps.IdleTimeout,
		now:        deps.Clock,
		orderID:    deps.OrderID,
		workspaces: make(map[string]*Workspace),
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.idle <= 0 {
		r.idle = defaultIdleTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Acquire returns the locked workspace for id, opening its cart from storage on first use.
// Callers must invoke the returned release function when done.
func (r *Registry) Acquire(ctx context.Context, id string) (*Workspace, func(), error) {
	for {
		r.mu.Lock()
		ws, ok := r.workspaces[id]
		if !ok {
			ws = &Workspace{ID: id}
			r.workspaces[id] = ws
		}
		r.mu.Unlock()

		ws.mu.Lock()
		if ws.closed {
			// Swept between lookup and lock.
			ws.mu.Unlock()
			continue
		}
		if ws.cart == nil {
			if err := r.open(ctx, ws); err != nil {
				ws.mu.Unlock()
				return nil, nil, err
			}
		}
		ws.lastSeen = r.now()
		return ws, ws.mu.Unlock, nil
	}
}

func (r *Registry) open(ctx context.Context, ws *Workspace) error {
	logger := r.logger.With(zap.String("session_id", observability.SanitizeSessionID(ws.ID)))
	notices := notify.NewRecorder()
	store, err := cart.Open(ctx, cart.Deps{
		Storage:  kv.NewNamespace(r.storage, "session:"+ws.ID),
		Notifier: notices,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("session: open cart: %w", err)
	}
	recorder := &nav.Recorder{}
	ws.cart = store
	ws.notices = notices
	ws.nav = recorder
	ws.flowFn = func() (*checkout.Flow, error) {
		return checkout.NewFlow(checkout.Deps{
			Cart:      store,
			Navigator: recorder,
			Logger:    logger,
			OrderID:   r.orderID,
		})
	}
	logger.Debug("workspace opened", zap.Int("lines", store.Len()))
	return nil
}

// Sweep drops workspaces idle for longer than the idle timeout. Busy workspaces are skipped.
// Carts survive in storage and are reloaded on the next request.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, ws := range r.workspaces {
		if !ws.mu.TryLock() {
			continue
		}
		if now.Sub(ws.lastSeen) > r.idle {
			ws.closed = true
			delete(r.workspaces, id)
			removed++
		}
		ws.mu.Unlock()
	}
	if removed > 0 {
		r.logger.Debug("idle workspaces swept", zap.Int("removed", removed), zap.Int("remaining", len(r.workspaces)))
	}
	return removed
}

// Len reports the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

