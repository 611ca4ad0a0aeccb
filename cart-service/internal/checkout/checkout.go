// Package checkout turns a user's cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
)

// ErrTotalMismatch means the orders service priced the snapshot differently from the cart. The
// request carries the cart total, so a conforming orders service rejects such an order before
// storing it and this only guards against one that does not.
var ErrTotalMismatch = errors.New("order total does not match cart total")

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, actor domain.Actor, req *ordersrpc.CreateOrderRequest) (*ordersrpc.CreateOrderResponse, error)
}

// CartUpdater runs fn on the stored cart under the user's cart lock.
type CartUpdater interface {
	Update(ctx context.Context, userID, op string, fn func(*domain.Cart) error) (*domain.Cart, error)
}

type Request struct {
	Address        ordersrpc.Address
	PaymentMethod  string
	IdempotencyKey string
}

type Service struct {
	carts  CartUpdater
	orders OrderPlacer
	log    *zap.Logger
}

func NewService(carts CartUpdater, orders OrderPlacer, log *zap.Logger) *Service {
	return &Service{carts: carts, orders: orders, log: log.Named("checkout")}
}

// Checkout places an order from the actor's cart and empties the cart. The cart stays locked
// for the whole call, so no item can be added between the snapshot and the clear. A request
// repeating an idempotency key gets the order it created before and leaves the cart alone, even
// when the cart has been emptied since.
func (s *Service) Checkout(ctx context.Context, actor domain.Actor, req Request) (*ordersrpc.Order, error) {
	var order *ordersrpc.Order
	_, err := s.carts.Update(ctx, actor.ID, "checkout", func(c *domain.Cart) error {
		if c.IsEmpty() && req.IdempotencyKey == "" {
			return apperr.Validation("cart is empty")
		}
		total := c.Total()
		resp, err := s.orders.PlaceOrder(ctx, actor, &ordersrpc.CreateOrderRequest{
			Items:           toOrderItems(c.Snapshot()),
			DeliveryAddress: req.Address,
			PaymentMethod:   req.PaymentMethod,
			IdempotencyKey:  req.IdempotencyKey,
			ExpectedTotal:   &total,
		})
		if err != nil {
			return err
		}
		order = resp.Order

		if !resp.Created {
			logger.WithContext(ctx, s.log).Info("checkout replayed",
				zap.String("user_id", actor.ID),
				zap.String("order_id", order.ID),
				zap.String("idempotency_key", req.IdempotencyKey))
			return nil
		}
		if !order.TotalAmount.Equal(total) {
			logger.WithContext(ctx, s.log).Error("order total mismatch",
				zap.String("order_id", order.ID),
				zap.Stringer("order_total", order.TotalAmount),
				zap.Stringer("cart_total", total))
			return fmt.Errorf("%w: order %s has %s, cart has %s", ErrTotalMismatch, order.ID, order.TotalAmount, total)
		}

		c.Clear()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("checkout completed",
		zap.String("user_id", actor.ID),
		zap.String("order_id", order.ID),
		zap.Stringer("total", order.TotalAmount))
	return order, nil
}

func toOrderItems(items []domain.LineItem) []ordersrpc.LineItem {
	out := make([]ordersrpc.LineItem, len(items))
	for i, li := range items {
		out[i] = ordersrpc.LineItem{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			Quantity:    li.Quantity,
			Selection:   li.Selection,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.LineTotal,
		}
	}
	return out
}
