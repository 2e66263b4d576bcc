// Package checkout drives the checkout form from entry to order confirmation.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/nav"
)

// State is a checkout flow state.
type State string

const (
	StateFilling          State = "filling"
	StateConfirming       State = "confirming"
	StateCancelConfirming State = "cancel_confirming"
	StateSuccess          State = "success"
	StateExited           State = "exited"
)

const (
	minOrderID = 100000
	maxOrderID = 999999
)

var (
	// ErrEmptyCart is returned for form events while the cart has no items.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrInvalidTransition is returned when an event is not allowed in the current state.
	ErrInvalidTransition = errors.New("checkout: event not allowed in current state")
	// ErrCartRequired is returned by NewFlow without a cart.
	ErrCartRequired = errors.New("checkout: cart is required")
)

// ValidationError carries the per-field failures of a submit attempt.
type ValidationError struct {
	Fields domain.FieldErrors
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, string(field))
	}
	sort.Strings(names)
	return fmt.Sprintf("checkout: invalid fields [%s]", strings.Join(names, ", "))
}

// Cart is the part of the cart store the flow reads and clears.
type Cart interface {
	Items() []domain.CartLineItem
	Total() decimal.Decimal
	IsEmpty() bool
	Clear(ctx context.Context)
}

// Deps bundles the collaborators of a Flow.
type Deps struct {
	Cart      Cart
	Navigator nav.Navigator
	Logger    *zap.Logger
	Clock     func() time.Time
	OrderID   func() string
}

// Flow is the checkout state machine for a single shopper.
type Flow struct {
	cart      Cart
	navigator nav.Navigator
	logger    *zap.Logger
	now       func() time.Time
	orderID   func() string

	mu     sync.Mutex
	state  State
	form   domain.CheckoutForm
	errors domain.FieldErrors
	order  *domain.OrderRecord
}

// NewFlow returns a flow in the Filling state.
func NewFlow(deps Deps) (*Flow, error) {
	if deps.Cart == nil {
		return nil, ErrCartRequired
	}
	f := &Flow{
		cart:      deps.Cart,
		navigator: deps.Navigator,
		logger:    deps.Logger,
		now:       deps.Clock,
		orderID:   deps.OrderID,
		state:     StateFilling,
		errors:    domain.FieldErrors{},
	}
	if f.navigator == nil {
		f.navigator = &nav.Recorder{}
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.orderID == nil {
		f.orderID = NewOrderID
	}
	return f, nil
}

// NewOrderID returns a uniformly random six digit order number.
func NewOrderID() string {
	return strconv.Itoa(minOrderID + rand.IntN(maxOrderID-minOrderID+1))
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetField updates one form input. The zip is sanitised on every edit and the field's own error is cleared.
func (f *Flow) SetField(ctx context.Context, field domain.Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(StateFilling); err != nil {
		return err
	}
	if field == domain.FieldZip {
		value = SanitizeZip(value)
	}
	f.form = f.form.With(field, value)
	delete(f.errors, field)
	return nil
}

// Submit validates the form and moves to Confirming. On failure the flow stays in Filling
// and a *ValidationError is returned.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(StateFilling); err != nil {
		return err
	}
	errs := Validate(f.form)
	if len(errs) > 0 {
		f.errors = errs
		f.logger.Debug("checkout validation failed", zap.Int("fields", len(errs)))
		return &ValidationError{Fields: errs.Clone()}
	}
	f.errors = domain.FieldErrors{}
	f.transition(StateConfirming)
	return nil
}

// Confirm places the demo order. The cart is left intact until the shopper returns to the catalog.
func (f *Flow) Confirm(ctx context.Context) (domain.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(StateConfirming); err != nil {
		return domain.OrderRecord{}, err
	}
	order := domain.OrderRecord{
		OrderID:     f.orderID(),
		Form:        f.form,
		Items:       f.cart.Items(),
		Total:       f.cart.Total(),
		ConfirmedAt: f.now().UTC(),
	}
	f.order = &order
	f.transition(StateSuccess)
	f.logger.Info("checkout order confirmed",
		zap.String("order_id", order.OrderID),
		zap.Int("lines", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	return order, nil
}

// CancelConfirmation closes the confirmation step and returns to the form with its data kept.
func (f *Flow) CancelConfirmation(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(StateConfirming); err != nil {
		return err
	}
	f.transition(StateFilling)
	return nil
}

// RequestCancel opens the cancel-order dialog.
func (f *Flow) RequestCancel(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(StateFilling); err != nil {
		return err
	}
	f.transition(StateCancelConfirming)
	return nil
}

// KeepShopping dismisses the cancel-order dialog.
func (f *Flow) KeepShopping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(StateCancelConfirming); err != nil {
		return err
	}
	f.transition(StateFilling)
	return nil
}

// ConfirmCancel abandons the order: the cart is cleared and the shopper is sent to the catalog.
func (f *Flow) ConfirmCancel(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(StateCancelConfirming); err != nil {
		return err
	}
	f.exit(ctx, true)
	return nil
}

// Return leaves the success view: the cart is cleared and the shopper is sent to the catalog.
func (f *Flow) Return(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateSuccess {
		return ErrInvalidTransition
	}
	f.exit(ctx, true)
	return nil
}

// Leave navigates back to the catalog from the form or the empty view without touching the cart.
// Confirming and CancelConfirming only allow it while the cart is empty, since the empty view
// sits over those steps once the cart is emptied elsewhere.
func (f *Flow) Leave(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.state == StateFilling:
	case f.state == StateConfirming || f.state == StateCancelConfirming:
		if !f.cart.IsEmpty() {
			return ErrInvalidTransition
		}
	default:
		return ErrInvalidTransition
	}
	f.exit(ctx, false)
	return nil
}

// guard reports whether an event that requires state may run. While the cart is empty only Leave is possible.
func (f *Flow) guard(state State) error {
	if f.state != state {
		return ErrInvalidTransition
	}
	if f.cart.IsEmpty() {
		return ErrEmptyCart
	}
	return nil
}

func (f *Flow) exit(ctx context.Context, clearCart bool) {
	if clearCart {
		f.cart.Clear(ctx)
	}
	f.transition(StateExited)
	f.order = nil
	f.navigator.Navigate(ctx, nav.Catalog)
}

func (f *Flow) transition(to State) {
	f.logger.Debug("checkout transition", zap.String("from", string(f.state)), zap.String("to", string(to)))
	f.state = to
}
