// Package orders is the cart service's client of the orders service. Every call carries the
// acting user as gRPC metadata and runs through a circuit breaker.
package orders

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
	"github.com/Shreyas-s47/cloudykitchen/pkg/circuitbreaker"
)

type rpcClient interface {
	CreateOrder(ctx context.Context, in *ordersrpc.CreateOrderRequest, opts ...grpc.CallOption) (*ordersrpc.CreateOrderResponse, error)
	GetOrder(ctx context.Context, in *ordersrpc.GetOrderRequest, opts ...grpc.CallOption) (*ordersrpc.OrderResponse, error)
	ListOrders(ctx context.Context, in *ordersrpc.ListOrdersRequest, opts ...grpc.CallOption) (*ordersrpc.ListOrdersResponse, error)
	ListAllOrders(ctx context.Context, in *ordersrpc.ListAllOrdersRequest, opts ...grpc.CallOption) (*ordersrpc.ListOrdersResponse, error)
	TransitionOrder(ctx context.Context, in *ordersrpc.TransitionOrderRequest, opts ...grpc.CallOption) (*ordersrpc.OrderResponse, error)
}

// Dial opens an instrumented connection to the orders service.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial orders service %s: %w", addr, err)
	}
	return conn, nil
}

type Client struct {
	rpc     rpcClient
	breaker *circuitbreaker.Breaker
}

func NewClient(rpc rpcClient, breaker *circuitbreaker.Breaker) *Client {
	return &Client{rpc: rpc, breaker: breaker}
}

func (c *Client) PlaceOrder(ctx context.Context, actor domain.Actor, req *ordersrpc.CreateOrderRequest) (*ordersrpc.CreateOrderResponse, error) {
	ctx = outgoing(ctx, actor)
	return circuitbreaker.Do(c.breaker, func() (*ordersrpc.CreateOrderResponse, error) {
		return c.rpc.CreateOrder(ctx, req)
	})
}

func (c *Client) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*ordersrpc.Order, error) {
	ctx = outgoing(ctx, actor)
	resp, err := circuitbreaker.Do(c.breaker, func() (*ordersrpc.OrderResponse, error) {
		return c.rpc.GetOrder(ctx, &ordersrpc.GetOrderRequest{OrderID: orderID})
	})
	if err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *Client) ListOrders(ctx context.Context, actor domain.Actor) ([]*ordersrpc.Order, error) {
	ctx = outgoing(ctx, actor)
	resp, err := circuitbreaker.Do(c.breaker, func() (*ordersrpc.ListOrdersResponse, error) {
		return c.rpc.ListOrders(ctx, &ordersrpc.ListOrdersRequest{CustomerID: actor.ID})
	})
	if err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) ListAllOrders(ctx context.Context, actor domain.Actor, status string, limit int) ([]*ordersrpc.Order, error) {
	ctx = outgoing(ctx, actor)
	resp, err := circuitbreaker.Do(c.breaker, func() (*ordersrpc.ListOrdersResponse, error) {
		return c.rpc.ListAllOrders(ctx, &ordersrpc.ListAllOrdersRequest{Status: status, Limit: limit})
	})
	if err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) TransitionOrder(ctx context.Context, actor domain.Actor, orderID, expectedStatus, status string) (*ordersrpc.Order, error) {
	ctx = outgoing(ctx, actor)
	resp, err := circuitbreaker.Do(c.breaker, func() (*ordersrpc.OrderResponse, error) {
		return c.rpc.TransitionOrder(ctx, &ordersrpc.TransitionOrderRequest{
			OrderID:        orderID,
			ExpectedStatus: expectedStatus,
			Status:         status,
		})
	})
	if err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func outgoing(ctx context.Context, actor domain.Actor) context.Context {
	return ordersrpc.WithActor(ctx, actor.ID, actor.Role, middleware.GetReqID(ctx))
}
