package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/hanko-field/storefront/internal/domain"
)

// ViewKind selects what the checkout page shows.
type ViewKind string

const (
	ViewEmpty        ViewKind = "empty"
	ViewForm         ViewKind = "form"
	ViewConfirmation ViewKind = "confirmation"
	ViewCancelDialog ViewKind = "cancel_dialog"
	ViewSuccess      ViewKind = "success"
	ViewExited       ViewKind = "exited"
)

// View is a read-only snapshot of the flow for presentation.
type View struct {
	Kind          ViewKind
	State         State
	Form          domain.CheckoutForm
	Errors        domain.FieldErrors
	Items         []domain.CartLineItem
	Total         decimal.Decimal
	TotalItems    int
	TotalQuantity int
	Order         *domain.OrderRecord
}

// View renders the current state. An empty cart shows the empty view unless the order already succeeded.
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.cart.Items()
	v := View{
		State:         f.state,
		Form:          f.form,
		Errors:        f.errors.Clone(),
		Items:         items,
		Total:         f.cart.Total(),
		TotalItems:    len(items),
		TotalQuantity: domain.TotalQuantity(items),
	}
	if f.order != nil {
		order := *f.order
		v.Order = &order
	}

	switch {
	case f.state == StateSuccess:
		v.Kind = ViewSuccess
	case f.state == StateExited:
		v.Kind = ViewExited
	case len(items) == 0:
		v.Kind = ViewEmpty
	case f.state == StateConfirming:
		v.Kind = ViewConfirmation
	case f.state == StateCancelConfirming:
		v.Kind = ViewCancelDialog
	default:
		v.Kind = ViewForm
	}
	return v
}
