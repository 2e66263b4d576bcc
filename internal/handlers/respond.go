package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/format"
	"github.com/hanko-field/storefront/internal/notify"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/session"
)

const (
	maxBodySize = 16 * 1024

	// HeaderHXTrigger carries client-side events for htmx front ends.
	HeaderHXTrigger = "HX-Trigger"
	// HeaderHXRedirect asks htmx front ends to navigate.
	HeaderHXRedirect = "HX-Redirect"

	notifyEvent = "storefront:notify"
)

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func requireWorkspace(ctx context.Context, w http.ResponseWriter) (*session.Workspace, bool) {
	ws, ok := session.WorkspaceFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", "no storefront session on request", http.StatusInternalServerError))
		return nil, false
	}
	return ws, true
}

// writeWorkspaceResponse attaches the notices and pending navigation raised while handling
// the request, then writes payload under key.
func writeWorkspaceResponse(w http.ResponseWriter, ws *session.Workspace, status int, key string, payload any) {
	body := map[string]any{key: payload}
	for k, v := range flushWorkspace(w.Header(), ws) {
		body[k] = v
	}
	httpx.WriteJSON(w, status, body)
}

// writeWorkspaceError writes err and still delivers the notices and navigation of the request,
// so nothing raised before the failure surfaces on a later response.
func writeWorkspaceError(ctx context.Context, w http.ResponseWriter, ws *session.Workspace, err httpx.Error) {
	httpx.WriteError(ctx, w, err.WithDetails(flushWorkspace(w.Header(), ws)))
}

// flushWorkspace drains ws into response fields and the matching htmx headers.
func flushWorkspace(header http.Header, ws *session.Workspace) map[string]any {
	notices := ws.Notices().Drain()
	fields := map[string]any{"notifications": notices}
	if len(notices) > 0 {
		if trigger, err := json.Marshal(map[string][]notify.Notification{notifyEvent: notices}); err == nil {
			header.Set(HeaderHXTrigger, string(trigger))
		}
	}
	if dest, ok := ws.Nav().Take(); ok {
		header.Set(HeaderHXRedirect, dest.Path())
		fields["redirect"] = dest.Path()
	}
	return fields
}

type productPayload struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	PriceDisplay    string `json:"price_display"`
	Description     string `json:"description"`
	DescriptionHTML string `json:"description_html,omitempty"`
	Image           string `json:"image"`
}

type linePayload struct {
	ProductID       int    `json:"product_id"`
	Name            string `json:"name"`
	Image           string `json:"image"`
	Price           string `json:"price"`
	PriceDisplay    string `json:"price_display"`
	Quantity        int    `json:"quantity"`
	Subtotal        string `json:"subtotal"`
	SubtotalDisplay string `json:"subtotal_display"`
}

type cartPayload struct {
	Items         []linePayload `json:"items"`
	Total         string        `json:"total"`
	TotalDisplay  string        `json:"total_display"`
	Currency      string        `json:"currency"`
	TotalItems    int           `json:"total_items"`
	TotalQuantity int           `json:"total_quantity"`
	StorageError  bool          `json:"storage_error"`
}

func buildProductPayload(p domain.Product, currency, descriptionHTML string) productPayload {
	return productPayload{
		ID:              p.ID,
		Name:            p.Name,
		Price:           format.Decimal(p.Price),
		PriceDisplay:    format.Money(p.Price, currency),
		Description:     p.Description,
		DescriptionHTML: descriptionHTML,
		Image:           p.Image,
	}
}

func buildLines(items []domain.CartLineItem, currency string) []linePayload {
	lines := make([]linePayload, 0, len(items))
	for _, item := range items {
		subtotal := item.Subtotal()
		lines = append(lines, linePayload{
			ProductID:       item.ID,
			Name:            item.Name,
			Image:           item.Image,
			Price:           format.Decimal(item.Price),
			PriceDisplay:    format.Money(item.Price, currency),
			Quantity:        item.Quantity,
			Subtotal:        format.Decimal(subtotal),
			SubtotalDisplay: format.Money(subtotal, currency),
		})
	}
	return lines
}

func buildCartPayload(items []domain.CartLineItem, total decimal.Decimal, currency string, storageErr error) cartPayload {
	return cartPayload{
		Items:         buildLines(items, currency),
		Total:         format.Decimal(total),
		TotalDisplay:  format.Money(total, currency),
		Currency:      currency,
		TotalItems:    len(items),
		TotalQuantity: domain.TotalQuantity(items),
		StorageError:  storageErr != nil,
	}
}
