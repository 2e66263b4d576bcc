package checkout

import (
	"context"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hanko-field/storefront/internal/cart"
	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/nav"
	"github.com/hanko-field/storefront/internal/platform/kv"
)

var (
	laptop = domain.Product{ID: 3, Name: "Laptop Pro", Price: decimal.RequireFromString("1299.99"), Description: "d", Image: "https://example.com/3"}
	mouse  = domain.Product{ID: 4, Name: "Wireless Mouse", Price: decimal.RequireFromString("49.99"), Description: "d", Image: "https://example.com/4"}
)

type fixture struct {
	cart *cart.Store
	nav  *nav.Recorder
	flow *Flow
}

func newFixture(t *testing.T, products ...domain.Product) fixture {
	t.Helper()
	ctx := context.Background()
	store, err := cart.Open(ctx, cart.Deps{Storage: kv.NewMemoryStore()})
	require.NoError(t, err)
	for _, p := range products {
		store.Add(ctx, p)
	}
	recorder := &nav.Recorder{}
	flow, err := NewFlow(Deps{
		Cart:      store,
		Navigator: recorder,
		Clock:     func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return fixture{cart: store, nav: recorder, flow: flow}
}

func fillValid(t *testing.T, flow *Flow) {
	t.Helper()
	ctx := context.Background()
	values := map[domain.Field]string{
		domain.FieldName:    "Ada Lovelace",
		domain.FieldPhone:   "555-123-4567",
		domain.FieldAddress: "12 Analytical Row",
		domain.FieldCity:    "London",
		domain.FieldZip:     "10115",
	}
	for field, value := range values {
		require.NoError(t, flow.SetField(ctx, field, value))
	}
}

func TestNewFlowRequiresCart(t *testing.T) {
	_, err := NewFlow(Deps{})
	require.ErrorIs(t, err, ErrCartRequired)
}

func TestSubmitWithInvalidPhoneStaysFilling(t *testing.T) {
	f := newFixture(t, laptop)
	ctx := context.Background()
	fillValid(t, f.flow)
	require.NoError(t, f.flow.SetField(ctx, domain.FieldPhone, "555"))

	err := f.flow.Submit(ctx)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, domain.FieldErrors{domain.FieldPhone: MsgPhoneInvalid}, vErr.Fields)
	require.Equal(t, StateFilling, f.flow.State())
	require.Equal(t, MsgPhoneInvalid, f.flow.View().Errors[domain.FieldPhone])

	require.NoError(t, f.flow.SetField(ctx, domain.FieldPhone, "555-123-4567"))
	require.NoError(t, f.flow.Submit(ctx))
	require.Equal(t, StateConfirming, f.flow.State())
	require.Equal(t, ViewConfirmation, f.flow.View().Kind)
}

func TestSubmitEmptyFormReportsAllRequiredFields(t *testing.T) {
	f := newFixture(t, laptop)

	err := f.flow.Submit(context.Background())
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, domain.FieldErrors{
		domain.FieldName:    MsgNameRequired,
		domain.FieldPhone:   MsgPhoneInvalid,
		domain.FieldAddress: MsgAddressRequired,
		domain.FieldCity:    MsgCityRequired,
		domain.FieldZip:     MsgZipInvalid,
	}, vErr.Fields)
	require.Contains(t, vErr.Error(), "address, city, name, phone, zip")
}

func TestEditingFieldClearsOnlyItsError(t *testing.T) {
	f := newFixture(t, laptop)
	ctx := context.Background()
	require.Error(t, f.flow.Submit(ctx))

	require.NoError(t, f.flow.SetField(ctx, domain.FieldCity, "x"))
	errs := f.flow.View().Errors
	require.NotContains(t, errs, domain.FieldCity)
	require.Contains(t, errs, domain.FieldName)
	require.Contains(t, errs, domain.FieldZip)

	require.NoError(t, f.flow.SetField(ctx, domain.FieldName, "   "))
	require.NotContains(t, f.flow.View().Errors, domain.FieldName, "editing clears without revalidating")
}

func TestZipIsSanitisedOnEdit(t *testing.T) {
	f := newFixture(t, laptop)
	require.NoError(t, f.flow.SetField(context.Background(), domain.FieldZip, "12a3b45678"))
	require.Equal(t, "12345", f.flow.View().Form.Zip)
}

func TestConfirmGeneratesOrderWithoutClearingCart(t *testing.T) {
	f := newFixture(t, laptop, mouse, mouse)
	ctx := context.Background()
	fillValid(t, f.flow)
	require.NoError(t, f.flow.Submit(ctx))

	order, err := f.flow.Confirm(ctx)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^\d{6}$`), order.OrderID)
	id, err := strconv.Atoi(order.OrderID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, id, 100000)
	require.LessOrEqual(t, id, 999999)
	require.True(t, order.Total.Equal(decimal.RequireFromString("1399.97")))
	require.Equal(t, 3, order.TotalQuantity())
	require.Equal(t, "Ada Lovelace", order.Form.Name)
	require.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), order.ConfirmedAt)

	require.Equal(t, StateSuccess, f.flow.State())
	require.Equal(t, 2, f.cart.Len(), "cart must survive confirmation")

	view := f.flow.View()
	require.Equal(t, ViewSuccess, view.Kind)
	require.NotNil(t, view.Order)
	require.Equal(t, order.OrderID, view.Order.OrderID)

	_, stillPending := f.nav.Take()
	require.False(t, stillPending)

	require.NoError(t, f.flow.Return(ctx))
	require.Equal(t, StateExited, f.flow.State())
	require.True(t, f.cart.IsEmpty())
	to, ok := f.nav.Take()
	require.True(t, ok)
	require.Equal(t, nav.Catalog, to)
}

func TestSuccessViewSurvivesEmptyCart(t *testing.T) {
	f := newFixture(t, laptop)
	ctx := context.Background()
	fillValid(t, f.flow)
	require.NoError(t, f.flow.Submit(ctx))
	_, err := f.flow.Confirm(ctx)
	require.NoError(t, err)

	f.cart.Clear(ctx)
	require.Equal(t, ViewSuccess, f.flow.View().Kind)
	require.NoError(t, f.flow.Return(ctx))
}

func TestCancelConfirmationKeepsForm(t *testing.T) {
	f := newFixture(t, laptop)
	ctx := context.Background()
	fillValid(t, f.flow)
	require.NoError(t, f.flow.Submit(ctx))

	require.NoError(t, f.flow.CancelConfirmation(ctx))
	require.Equal(t, StateFilling, f.flow.State())
	require.Equal(t, "London", f.flow.View().Form.City)
}

func TestCancelDialogBranches(t *testing.T) {
	f := newFixture(t, laptop)
	ctx := context.Background()

	require.NoError(t, f.flow.RequestCancel(ctx))
	require.Equal(t, ViewCancelDialog, f.flow.View().Kind)
	require.NoError(t, f.flow.KeepShopping(ctx))
	require.Equal(t, StateFilling, f.flow.State())
	require.Equal(t, 1, f.cart.Len())

	require.NoError(t, f.flow.RequestCancel(ctx))
	require.NoError(t, f.flow.ConfirmCancel(ctx))
	require.Equal(t, StateExited, f.flow.State())
	require.True(t, f.cart.IsEmpty())
	to, ok := f.nav.Take()
	require.True(t, ok)
	require.Equal(t, nav.Catalog, to)
}

func TestLeaveKeepsCart(t *testing.T) {
	f := newFixture(t, laptop)
	require.NoError(t, f.flow.Leave(context.Background()))
	require.Equal(t, StateExited, f.flow.State())
	require.Equal(t, 1, f.cart.Len())
	to, _ := f.nav.Take()
	require.Equal(t, nav.Catalog, to)
}

func TestEmptyCartShowsEmptyViewWithoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.flow.View()
	require.Equal(t, ViewEmpty, view.Kind)
	require.Zero(t, view.TotalItems)

	require.ErrorIs(t, f.flow.Submit(ctx), ErrEmptyCart)
	require.Empty(t, f.flow.View().Errors, "no validation on empty cart")
	require.ErrorIs(t, f.flow.SetField(ctx, domain.FieldName, "x"), ErrEmptyCart)
	require.ErrorIs(t, f.flow.RequestCancel(ctx), ErrEmptyCart)
	require.Equal(t, StateFilling, f.flow.State())

	require.NoError(t, f.flow.Leave(ctx))
	to, _ := f.nav.Take()
	require.Equal(t, nav.Catalog, to)
}

func TestLeaveFromEmptyViewOverUnfinishedStep(t *testing.T) {
	ctx := context.Background()

	confirming := newFixture(t, mouse)
	fillValid(t, confirming.flow)
	require.NoError(t, confirming.flow.Submit(ctx))
	confirming.cart.Clear(ctx)
	require.Equal(t, ViewEmpty, confirming.flow.View().Kind)
	require.NoError(t, confirming.flow.Leave(ctx))
	require.Equal(t, StateExited, confirming.flow.State())
	to, ok := confirming.nav.Take()
	require.True(t, ok)
	require.Equal(t, nav.Catalog, to)

	dialog := newFixture(t, mouse)
	require.NoError(t, dialog.flow.RequestCancel(ctx))
	dialog.cart.Remove(ctx, mouse.ID)
	require.Equal(t, ViewEmpty, dialog.flow.View().Kind)
	require.NoError(t, dialog.flow.Leave(ctx))
	require.Equal(t, StateExited, dialog.flow.State())
}

func TestLeaveRejectedAfterSuccess(t *testing.T) {
	f := newFixture(t, mouse)
	ctx := context.Background()
	fillValid(t, f.flow)
	require.NoError(t, f.flow.Submit(ctx))
	_, err := f.flow.Confirm(ctx)
	require.NoError(t, err)
	f.cart.Clear(ctx)

	require.ErrorIs(t, f.flow.Leave(ctx), ErrInvalidTransition)
	require.Equal(t, StateSuccess, f.flow.State())
	require.NoError(t, f.flow.Return(ctx))
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t, laptop)
	ctx := context.Background()

	_, err := f.flow.Confirm(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, f.flow.Return(ctx), ErrInvalidTransition)
	require.ErrorIs(t, f.flow.KeepShopping(ctx), ErrInvalidTransition)
	require.ErrorIs(t, f.flow.ConfirmCancel(ctx), ErrInvalidTransition)
	require.ErrorIs(t, f.flow.CancelConfirmation(ctx), ErrInvalidTransition)
	require.Equal(t, StateFilling, f.flow.State())

	fillValid(t, f.flow)
	require.NoError(t, f.flow.Submit(ctx))
	require.ErrorIs(t, f.flow.SetField(ctx, domain.FieldName, "changed"), ErrInvalidTransition)
	require.ErrorIs(t, f.flow.Submit(ctx), ErrInvalidTransition)
	require.ErrorIs(t, f.flow.RequestCancel(ctx), ErrInvalidTransition)
	require.ErrorIs(t, f.flow.Leave(ctx), ErrInvalidTransition)
	require.Equal(t, StateConfirming, f.flow.State())
}

func TestViewSummaryCounters(t *testing.T) {
	f := newFixture(t, laptop, mouse, mouse)
	view := f.flow.View()
	require.Equal(t, ViewForm, view.Kind)
	require.Equal(t, 2, view.TotalItems)
	require.Equal(t, 3, view.TotalQuantity)
	require.True(t, view.Total.Equal(decimal.RequireFromString("1399.97")))
	require.True(t, view.Items[1].Subtotal().Equal(decimal.RequireFromString("99.98")))
}

func TestNewOrderIDRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id, err := strconv.Atoi(NewOrderID())
		require.NoError(t, err)
		require.GreaterOrEqual(t, id, 100000)
		require.LessOrEqual(t, id, 999999)
	}
}
