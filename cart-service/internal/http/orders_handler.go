package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
)

type Orders interface {
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*ordersrpc.Order, error)
	ListOrders(ctx context.Context, actor domain.Actor) ([]*ordersrpc.Order, error)
	ListAllOrders(ctx context.Context, actor domain.Actor, status string, limit int) ([]*ordersrpc.Order, error)
	TransitionOrder(ctx context.Context, actor domain.Actor, orderID, expectedStatus, status string) (*ordersrpc.Order, error)
}

type OrdersHandler struct {
	orders Orders
	log    *zap.Logger
}

func NewOrdersHandler(orders Orders, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, log: log}
}

// TransitionRequestDTO carries the status the admin saw next to the one they want, so a change
// made by someone else in between is reported instead of overwritten.
type TransitionRequestDTO struct {
	ExpectedStatus string `json:"expected_status"`
	Status         string `json:"order_status"`
}

type ordersResponse struct {
	Orders []*ordersrpc.Order `json:"orders"`
	Count  int                `json:"count"`
}

func listResponse(orders []*ordersrpc.Order) ordersResponse {
	if orders == nil {
		orders = []*ordersrpc.Order{}
	}
	return ordersResponse{Orders: orders, Count: len(orders)}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), actorFrom(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse(orders))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/admin/orders?status=&limit=
func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = n
	}

	orders, err := h.orders.ListAllOrders(r.Context(), actorFrom(r.Context()), q.Get("status"), limit)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse(orders))
}

// PUT /api/v1/admin/orders/{order_id}/status
func (h *OrdersHandler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_status", "order_status is required")
		return
	}
	if req.ExpectedStatus == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_status", "expected_status is required")
		return
	}

	order, err := h.orders.TransitionOrder(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "order_id"), req.ExpectedStatus, req.Status)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
