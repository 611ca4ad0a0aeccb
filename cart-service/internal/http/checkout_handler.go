package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/checkout"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
)

type Checkout interface {
	Checkout(ctx context.Context, actor domain.Actor, req checkout.Request) (*ordersrpc.Order, error)
}

type CheckoutHandler struct {
	checkout Checkout
	log      *zap.Logger
}

func NewCheckoutHandler(c Checkout, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: c, log: log}
}

type CheckoutRequestDTO struct {
	DeliveryAddress ordersrpc.Address `json:"delivery_address"`
	PaymentMethod   string            `json:"payment_method"`
	IdempotencyKey  string            `json:"idempotency_key"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	order, err := h.checkout.Checkout(r.Context(), actorFrom(r.Context()), checkout.Request{
		Address:        req.DeliveryAddress,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}
