package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/catalog"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
)

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, f catalog.Filter) ([]*domain.Product, error)
	LowStock(ctx context.Context) ([]*domain.Product, error)
}

type ProductHandler struct {
	catalog Catalog
	log     *zap.Logger
}

func NewProductHandler(c Catalog, log *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: c, log: log}
}

type lowStockProduct struct {
	*domain.Product
	LowStock bool `json:"low_stock"`
}

// GET /api/v1/products?category=&subcategory=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.catalog.ListProducts(r.Context(), catalog.Filter{
		Category:    q.Get("category"),
		Subcategory: q.Get("subcategory"),
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GET /api/v1/admin/products/low-stock
func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.LowStock(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	out := make([]lowStockProduct, 0, len(products))
	for _, p := range products {
		out = append(out, lowStockProduct{Product: p, LowStock: p.LowStock()})
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": out, "count": len(out)})
}
