// Package grpc serves the order lifecycle over gRPC using the ordersrpc contract.
package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
)

// NewServer builds a gRPC server with the orders service registered.
func NewServer(lifecycle Lifecycle, log *zap.Logger) *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(loggingInterceptor(log.Named("grpc"))),
	)
	ordersrpc.RegisterOrdersServer(srv, NewOrdersHandler(lifecycle, log))
	return srv
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.WithContext(ctx, log).Debug("rpc handled",
			zap.String("method", info.FullMethod),
			zap.String("request_id", requestID(ctx)),
			zap.String("actor_id", actorFromContext(ctx).ID),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}
