package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, sel domain.Selection, quantity int) (*domain.Cart, error)
	SetQuantity(ctx context.Context, userID string, index, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, index int) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
	Price(ctx context.Context, items []domain.ItemRequest) (*domain.Cart, error)
}

type CartHandler struct {
	carts CartService
	log   *zap.Logger
}

func NewCartHandler(carts CartService, log *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

type AddItemRequestDTO struct {
	ProductID string            `json:"product_id"`
	Selection map[string]string `json:"selection"`
	Quantity  int               `json:"quantity"`
}

type CalculateRequestDTO struct {
	Items []AddItemRequestDTO `json:"items"`
}

type CalculateResponseDTO struct {
	Items     []domain.LineItem `json:"items"`
	ItemCount int               `json:"item_count"`
	Total     decimal.Decimal   `json:"total"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartResponseDTO struct {
	UserID    string            `json:"user_id"`
	Items     []domain.LineItem `json:"items"`
	ItemCount int               `json:"item_count"`
	Total     decimal.Decimal   `json:"total"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func convertCart(c *domain.Cart) CartResponseDTO {
	items := c.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return CartResponseDTO{
		UserID:    c.UserID,
		Items:     items,
		ItemCount: c.ItemCount(),
		Total:     c.Total(),
		UpdatedAt: c.UpdatedAt,
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	cart, err := h.carts.AddItem(r.Context(), actorFrom(r.Context()).ID, req.ProductID, req.Selection, req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, convertCart(cart))
}

// POST /api/v1/cart/calculate
func (h *CartHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	items := make([]domain.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		if it.ProductID == "" {
			respondError(w, r, http.StatusBadRequest, "invalid_product_id", "product_id is required")
			return
		}
		items[i] = domain.ItemRequest{ProductID: it.ProductID, Selection: it.Selection, Quantity: it.Quantity}
	}

	cart, err := h.carts.Price(r.Context(), items)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, CalculateResponseDTO{
		Items:     cart.Items,
		ItemCount: cart.ItemCount(),
		Total:     cart.Total(),
	})
}

// PUT /api/v1/cart/items/{index}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, r, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	cart, err := h.carts.SetQuantity(r.Context(), actorFrom(r.Context()).ID, index, *req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// DELETE /api/v1/cart/items/{index}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), actorFrom(r.Context()).ID, index)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(cart))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.ClearCart(r.Context(), actorFrom(r.Context()).ID); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func indexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("line item index must be an integer, got %q", raw)
	}
	return index, nil
}
