package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/checkout"
	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/format"
	"github.com/hanko-field/storefront/internal/platform/events"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/platform/requestctx"
	"github.com/hanko-field/storefront/internal/session"
)

// OrderPublisher announces confirmed orders to downstream consumers.
type OrderPublisher interface {
	PublishOrderConfirmed(ctx context.Context, event events.OrderConfirmed) (string, error)
}

// CheckoutHandlers drives the shopper's checkout flow.
type CheckoutHandlers struct {
	currency  string
	publisher OrderPublisher
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithOrderPublisher publishes an event for every confirmed order.
func WithOrderPublisher(p OrderPublisher) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.publisher = p
	}
}

// NewCheckoutHandlers constructs checkout handlers rendering amounts in currency.
func NewCheckoutHandlers(currency string, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{currency: strings.ToUpper(strings.TrimSpace(currency))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCheckout)
	r.Patch("/form", h.patchForm)
	r.Post("/submit", h.action((*checkout.Flow).Submit))
	r.Post("/confirm", h.confirm)
	r.Post("/cancel-confirmation", h.action((*checkout.Flow).CancelConfirmation))
	r.Post("/request-cancel", h.action((*checkout.Flow).RequestCancel))
	r.Post("/keep-shopping", h.action((*checkout.Flow).KeepShopping))
	r.Post("/confirm-cancel", h.action((*checkout.Flow).ConfirmCancel))
	r.Post("/return", h.action((*checkout.Flow).Return))
	r.Post("/leave", h.action((*checkout.Flow).Leave))
}

type formRequest struct {
	Field  *string           `json:"field"`
	Value  *string           `json:"value"`
	Fields map[string]string `json:"fields"`
}

type formPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	State   string `json:"state"`
}

type orderPayload struct {
	OrderID       string        `json:"order_id"`
	Form          formPayload   `json:"form"`
	Items         []linePayload `json:"items"`
	Total         string        `json:"total"`
	TotalDisplay  string        `json:"total_display"`
	TotalQuantity int           `json:"total_quantity"`
	ConfirmedAt   string        `json:"confirmed_at"`
}

type checkoutPayload struct {
	View   string            `json:"view"`
	State  string            `json:"state"`
	Form   formPayload       `json:"form"`
	Errors map[string]string `json:"errors"`
	Cart   cartPayload       `json:"cart"`
	Order  *orderPayload     `json:"order,omitempty"`
}

func (h *CheckoutHandlers) getCheckout(w http.ResponseWriter, r *http.Request) {
	ws, flow, ok := h.enter(w, r)
	if !ok {
		return
	}
	h.writeView(w, ws, flow, http.StatusOK)
}

func (h *CheckoutHandlers) patchForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, flow, ok := h.enter(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	updates, err := parseFormRequest(body)
	if err != nil {
		writeWorkspaceError(ctx, w, ws, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	for _, field := range domain.Fields {
		value, ok := updates[field]
		if !ok {
			continue
		}
		if err := flow.SetField(ctx, field, value); err != nil {
			h.writeFlowError(w, r, ws, flow, err)
			return
		}
	}
	h.writeView(w, ws, flow, http.StatusOK)
}

func (h *CheckoutHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, flow, ok := h.enter(w, r)
	if !ok {
		return
	}
	order, err := flow.Confirm(ctx)
	if err != nil {
		h.writeFlowError(w, r, ws, flow, err)
		return
	}
	h.publish(ctx, order)
	h.writeView(w, ws, flow, http.StatusOK)
}

func (h *CheckoutHandlers) action(event func(*checkout.Flow, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, flow, ok := h.enter(w, r)
		if !ok {
			return
		}
		if err := event(flow, r.Context()); err != nil {
			h.writeFlowError(w, r, ws, flow, err)
			return
		}
		h.writeView(w, ws, flow, http.StatusOK)
	}
}

func (h *CheckoutHandlers) enter(w http.ResponseWriter, r *http.Request) (*session.Workspace, *checkout.Flow, bool) {
	ctx := r.Context()
	ws, ok := requireWorkspace(ctx, w)
	if !ok {
		return nil, nil, false
	}
	flow, err := ws.EnterCheckout()
	if err != nil {
		requestctx.Logger(ctx).Error("checkout flow unavailable", zap.Error(err))
		writeWorkspaceError(ctx, w, ws, httpx.NewError("checkout_unavailable", "checkout could not be started", http.StatusInternalServerError))
		return nil, nil, false
	}
	return ws, flow, true
}

func (h *CheckoutHandlers) publish(ctx context.Context, order domain.OrderRecord) {
	if h.publisher == nil {
		return
	}
	logger := requestctx.Logger(ctx)
	id, err := h.publisher.PublishOrderConfirmed(ctx, events.OrderConfirmed{
		OrderID:     order.OrderID,
		Lines:       len(order.Items),
		Quantity:    order.TotalQuantity(),
		Total:       format.Decimal(order.Total),
		Currency:    h.currency,
		ConfirmedAt: order.ConfirmedAt,
	})
	if err != nil {
		logger.Warn("order confirmation publish failed", zap.String("order_id", order.OrderID), zap.Error(err))
		return
	}
	logger.Debug("order confirmation published", zap.String("order_id", order.OrderID), zap.String("message_id", id))
}

func (h *CheckoutHandlers) writeFlowError(w http.ResponseWriter, r *http.Request, ws *session.Workspace, flow *checkout.Flow, err error) {
	ctx := r.Context()
	var vErr *checkout.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeWorkspaceError(ctx, w, ws, httpx.NewError("validation_failed", "checkout form is invalid", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{
				"fields":   fieldErrorsPayload(vErr.Fields),
				"checkout": h.buildPayload(flow.View()),
			}))
	case errors.Is(err, checkout.ErrEmptyCart):
		writeWorkspaceError(ctx, w, ws, httpx.NewError("cart_empty", "your cart is empty", http.StatusConflict))
	case errors.Is(err, checkout.ErrInvalidTransition):
		writeWorkspaceError(ctx, w, ws, httpx.NewError("invalid_transition", "action not allowed at this checkout step", http.StatusConflict).
			WithDetails(map[string]any{"state": string(flow.State())}))
	default:
		requestctx.Logger(ctx).Error("checkout action failed", zap.Error(err))
		writeWorkspaceError(ctx, w, ws, httpx.NewError("checkout_error", "checkout action failed", http.StatusInternalServerError))
	}
}

func (h *CheckoutHandlers) writeView(w http.ResponseWriter, ws *session.Workspace, flow *checkout.Flow, status int) {
	writeWorkspaceResponse(w, ws, status, "checkout", h.buildPayload(flow.View()))
}

func (h *CheckoutHandlers) buildPayload(view checkout.View) checkoutPayload {
	payload := checkoutPayload{
		View:   string(view.Kind),
		State:  string(view.State),
		Form:   buildFormPayload(view.Form),
		Errors: fieldErrorsPayload(view.Errors),
		Cart: cartPayload{
			Items:         buildLines(view.Items, h.currency),
			Total:         format.Decimal(view.Total),
			TotalDisplay:  format.Money(view.Total, h.currency),
			Currency:      h.currency,
			TotalItems:    view.TotalItems,
			TotalQuantity: view.TotalQuantity,
		},
	}
	if view.Order != nil {
		payload.Order = &orderPayload{
			OrderID:       view.Order.OrderID,
			Form:          buildFormPayload(view.Order.Form),
			Items:         buildLines(view.Order.Items, h.currency),
			Total:         format.Decimal(view.Order.Total),
			TotalDisplay:  format.Money(view.Order.Total, h.currency),
			TotalQuantity: view.Order.TotalQuantity(),
			ConfirmedAt:   view.Order.ConfirmedAt.UTC().Format(time.RFC3339),
		}
	}
	return payload
}

func buildFormPayload(form domain.CheckoutForm) formPayload {
	return formPayload{
		Name:    form.Name,
		Phone:   form.Phone,
		Address: form.Address,
		City:    form.City,
		Zip:     form.Zip,
		State:   form.State,
	}
}

func fieldErrorsPayload(errs domain.FieldErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for field, msg := range errs {
		out[string(field)] = msg
	}
	return out
}

func parseFormRequest(body []byte) (map[domain.Field]string, error) {
	var req formRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.New("request body must be valid JSON")
	}

	updates := make(map[domain.Field]string, len(req.Fields)+1)
	for name, value := range req.Fields {
		field, ok := domain.ParseField(name)
		if !ok {
			return nil, errors.New("unknown form field " + strings.TrimSpace(name))
		}
		updates[field] = value
	}
	if req.Field != nil {
		field, ok := domain.ParseField(*req.Field)
		if !ok {
			return nil, errors.New("unknown form field " + strings.TrimSpace(*req.Field))
		}
		if req.Value == nil {
			return nil, errors.New("value is required with field")
		}
		updates[field] = *req.Value
	}
	if len(updates) == 0 {
		return nil, errors.New("field or fields is required")
	}
	return updates, nil
}
