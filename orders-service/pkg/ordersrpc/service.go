package ordersrpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "cloudykitchen.orders.v1.OrdersService"

// OrdersServer is implemented by the orders service.
type OrdersServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*CreateOrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	ListAllOrders(context.Context, *ListAllOrdersRequest) (*ListOrdersResponse, error)
	TransitionOrder(context.Context, *TransitionOrderRequest) (*OrderResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrdersServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: unaryHandler("CreateOrder", OrdersServer.CreateOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler("GetOrder", OrdersServer.GetOrder)},
		{MethodName: "ListOrders", Handler: unaryHandler("ListOrders", OrdersServer.ListOrders)},
		{MethodName: "ListAllOrders", Handler: unaryHandler("ListAllOrders", OrdersServer.ListAllOrders)},
		{MethodName: "TransitionOrder", Handler: unaryHandler("TransitionOrder", OrdersServer.TransitionOrder)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orders.proto",
}

func RegisterOrdersServer(s grpc.ServiceRegistrar, srv OrdersServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req, Resp any](method string, call func(OrdersServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrdersServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrdersServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
