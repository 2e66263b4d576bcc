package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/cart"
	"github.com/hanko-field/storefront/internal/catalog"
	"github.com/hanko-field/storefront/internal/nav"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/session"
)

// CartHandlers exposes the shopper's cart for the current session. The store is resolved with
// cart.FromContext, so mounting these routes without the session middleware panics.
type CartHandlers struct {
	catalog  *catalog.Catalog
	currency string
}

// NewCartHandlers constructs cart handlers. Products are resolved through cat before they are added.
func NewCartHandlers(cat *catalog.Catalog, currency string) *CartHandlers {
	return &CartHandlers{catalog: cat, currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Delete("/items/{productId}", h.removeItem)
	r.Post("/checkout", h.proceedToCheckout)
}

type addItemRequest struct {
	ProductID *int `json:"product_id"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	store := cart.FromContext(r.Context())
	ws, ok := requireWorkspace(r.Context(), w)
	if !ok {
		return
	}
	h.writeCart(w, ws, store)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := cart.FromContext(ctx)
	ws, ok := requireWorkspace(ctx, w)
	if !ok {
		return
	}
	if h.catalog == nil {
		writeWorkspaceError(ctx, w, ws, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req addItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeWorkspaceError(ctx, w, ws, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.ProductID == nil || *req.ProductID <= 0 {
		writeWorkspaceError(ctx, w, ws, httpx.NewError("invalid_request", "product_id must be a positive integer", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.Get(*req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeWorkspaceError(ctx, w, ws, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
			return
		}
		writeWorkspaceError(ctx, w, ws, httpx.NewError("catalog_error", "failed to load product", http.StatusInternalServerError))
		return
	}

	store.Add(ctx, product)
	h.writeCart(w, ws, store)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := cart.FromContext(ctx)
	ws, ok := requireWorkspace(ctx, w)
	if !ok {
		return
	}
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	store.Remove(ctx, id)
	h.writeCart(w, ws, store)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := cart.FromContext(ctx)
	ws, ok := requireWorkspace(ctx, w)
	if !ok {
		return
	}
	store.Clear(ctx)
	h.writeCart(w, ws, store)
}

// proceedToCheckout sends the shopper from the cart panel to the checkout page.
func (h *CartHandlers) proceedToCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := cart.FromContext(ctx)
	ws, ok := requireWorkspace(ctx, w)
	if !ok {
		return
	}
	if store.IsEmpty() {
		writeWorkspaceError(ctx, w, ws, httpx.NewError("cart_empty", "your cart is empty", http.StatusConflict))
		return
	}
	ws.Nav().Navigate(ctx, nav.Checkout)
	h.writeCart(w, ws, store)
}

func (h *CartHandlers) writeCart(w http.ResponseWriter, ws *session.Workspace, store *cart.Store) {
	writeWorkspaceResponse(w, ws, http.StatusOK, "cart", buildCartPayload(store.Items(), store.Total(), h.currency, store.Err()))
}
