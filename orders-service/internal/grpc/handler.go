package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
)

// Lifecycle is the order lifecycle the handler exposes.
type Lifecycle interface {
	Create(ctx context.Context, actor domain.Actor, items []domain.LineItem, address domain.Address, paymentMethod, idempotencyKey string) (*domain.Order, bool, error)
	Transition(ctx context.Context, actor domain.Actor, orderID, expectedStatus, newStatus string) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	ListForCustomer(ctx context.Context, actor domain.Actor, customerID string) ([]*domain.Order, error)
	ListAll(ctx context.Context, actor domain.Actor, status string, limit int) ([]*domain.Order, error)
}

type OrdersHandler struct {
	lifecycle Lifecycle
	log       *zap.Logger
}

var _ ordersrpc.OrdersServer = (*OrdersHandler)(nil)

func NewOrdersHandler(lifecycle Lifecycle, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{lifecycle: lifecycle, log: log.Named("grpc")}
}

func (h *OrdersHandler) CreateOrder(ctx context.Context, req *ordersrpc.CreateOrderRequest) (*ordersrpc.CreateOrderResponse, error) {
	items := make([]domain.LineItem, len(req.Items))
	for i, li := range req.Items {
		items[i] = domain.LineItem{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			Quantity:    li.Quantity,
			Selection:   li.Selection,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.LineTotal,
		}
	}
	a := req.DeliveryAddress
	address := domain.Address{
		Name: a.Name, Phone: a.Phone, Street: a.Street, City: a.City,
		State: a.State, Pincode: a.Pincode, Landmark: a.Landmark,
	}

	if req.ExpectedTotal != nil {
		if total := domain.ItemsTotal(items); !total.Equal(*req.ExpectedTotal) {
			err := apperr.Validation("order total %s does not match expected total %s", total, *req.ExpectedTotal)
			return nil, h.toStatus(ctx, "create order", err)
		}
	}

	order, created, err := h.lifecycle.Create(ctx, actorFromContext(ctx), items, address, req.PaymentMethod, req.IdempotencyKey)
	if err != nil {
		return nil, h.toStatus(ctx, "create order", err)
	}
	return &ordersrpc.CreateOrderResponse{Order: convertOrder(order), Created: created}, nil
}

func (h *OrdersHandler) GetOrder(ctx context.Context, req *ordersrpc.GetOrderRequest) (*ordersrpc.OrderResponse, error) {
	order, err := h.lifecycle.Get(ctx, actorFromContext(ctx), req.OrderID)
	if err != nil {
		return nil, h.toStatus(ctx, "get order", err)
	}
	return &ordersrpc.OrderResponse{Order: convertOrder(order)}, nil
}

func (h *OrdersHandler) ListOrders(ctx context.Context, req *ordersrpc.ListOrdersRequest) (*ordersrpc.ListOrdersResponse, error) {
	orders, err := h.lifecycle.ListForCustomer(ctx, actorFromContext(ctx), req.CustomerID)
	if err != nil {
		return nil, h.toStatus(ctx, "list orders", err)
	}
	return &ordersrpc.ListOrdersResponse{Orders: convertOrders(orders)}, nil
}

func (h *OrdersHandler) ListAllOrders(ctx context.Context, req *ordersrpc.ListAllOrdersRequest) (*ordersrpc.ListOrdersResponse, error) {
	orders, err := h.lifecycle.ListAll(ctx, actorFromContext(ctx), req.Status, req.Limit)
	if err != nil {
		return nil, h.toStatus(ctx, "list all orders", err)
	}
	return &ordersrpc.ListOrdersResponse{Orders: convertOrders(orders)}, nil
}

func (h *OrdersHandler) TransitionOrder(ctx context.Context, req *ordersrpc.TransitionOrderRequest) (*ordersrpc.OrderResponse, error) {
	order, err := h.lifecycle.Transition(ctx, actorFromContext(ctx), req.OrderID, req.ExpectedStatus, req.Status)
	if err != nil {
		return nil, h.toStatus(ctx, "transition order", err)
	}
	return &ordersrpc.OrderResponse{Order: convertOrder(order)}, nil
}

// toStatus keeps domain errors intact for the caller and hides infrastructure details.
func (h *OrdersHandler) toStatus(ctx context.Context, op string, err error) error {
	if apperr.IsDomain(err) {
		return apperr.ToStatus(err)
	}
	logger.WithContext(ctx, h.log).Error(op+" failed", zap.String("request_id", requestID(ctx)), zap.Error(err))
	return status.Errorf(codes.Internal, "failed to %s", op)
}

func actorFromContext(ctx context.Context) domain.Actor {
	md, _ := metadata.FromIncomingContext(ctx)
	actor := domain.Actor{ID: first(md, ordersrpc.MetadataActorID), Role: domain.RoleCustomer}
	if domain.Role(first(md, ordersrpc.MetadataActorRole)) == domain.RoleAdmin {
		actor.Role = domain.RoleAdmin
	}
	return actor
}

func requestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	return first(md, ordersrpc.MetadataRequestID)
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func convertOrders(orders []*domain.Order) []*ordersrpc.Order {
	out := make([]*ordersrpc.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, convertOrder(o))
	}
	return out
}

func convertOrder(o *domain.Order) *ordersrpc.Order {
	items := make([]ordersrpc.LineItem, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, ordersrpc.LineItem{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			Quantity:    li.Quantity,
			Selection:   li.Selection,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.LineTotal,
		})
	}
	history := make([]ordersrpc.StatusChange, 0, len(o.History))
	for _, c := range o.History {
		history = append(history, ordersrpc.StatusChange{
			From: string(c.From), To: string(c.To), Actor: c.Actor, At: c.At,
		})
	}
	next := domain.NextStatuses(o.Status)
	nextNames := make([]string, 0, len(next))
	for _, s := range next {
		nextNames = append(nextNames, string(s))
	}
	a := o.DeliveryAddress
	return &ordersrpc.Order{
		ID:          o.ID.String(),
		CustomerID:  o.CustomerID,
		Items:       items,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		DeliveryAddress: ordersrpc.Address{
			Name: a.Name, Phone: a.Phone, Street: a.Street, City: a.City,
			State: a.State, Pincode: a.Pincode, Landmark: a.Landmark,
		},
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		Status:        string(o.Status),
		NextStatuses:  nextNames,
		History:       history,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
