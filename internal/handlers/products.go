package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/catalog"
	"github.com/hanko-field/storefront/internal/platform/httpx"
)

// ProductHandlers serves the read-only catalog.
type ProductHandlers struct {
	catalog  *catalog.Catalog
	currency string
}

// NewProductHandlers constructs catalog handlers rendering prices in currency.
func NewProductHandlers(cat *catalog.Catalog, currency string) *ProductHandlers {
	return &ProductHandlers{catalog: cat, currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productId}", h.getProduct)
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}
	products := h.catalog.List()
	items := make([]productPayload, 0, len(products))
	for _, p := range products {
		items = append(items, buildProductPayload(p, h.currency, h.catalog.DescriptionHTML(p.ID)))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": items})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.Get(id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load product", http.StatusInternalServerError))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"product": buildProductPayload(product, h.currency, h.catalog.DescriptionHTML(id))})
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_product_id", "product id must be a positive integer", http.StatusBadRequest))
		return 0, false
	}
	return id, true
}
