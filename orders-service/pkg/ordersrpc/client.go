package ordersrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

// Metadata keys identifying the caller of every orders RPC.
const (
	MetadataActorID   = "actor-id"
	MetadataActorRole = "actor-role"
	MetadataRequestID = "request-id"
)

// WithActor attaches the calling actor to the outgoing context.
func WithActor(ctx context.Context, actorID, role, requestID string) context.Context {
	pairs := []string{MetadataActorID, actorID, MetadataActorRole, role}
	if requestID != "" {
		pairs = append(pairs, MetadataRequestID, requestID)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// Client calls the orders service. Status errors carrying a domain kind are converted back so
// callers can match them with errors.Is.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*CreateOrderResponse, error) {
	out := new(CreateOrderResponse)
	return out, c.invoke(ctx, "CreateOrder", in, out, opts)
}

func (c *Client) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	return out, c.invoke(ctx, "GetOrder", in, out, opts)
}

func (c *Client) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	return out, c.invoke(ctx, "ListOrders", in, out, opts)
}

func (c *Client) ListAllOrders(ctx context.Context, in *ListAllOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	return out, c.invoke(ctx, "ListAllOrders", in, out, opts)
}

func (c *Client) TransitionOrder(ctx context.Context, in *TransitionOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	return out, c.invoke(ctx, "TransitionOrder", in, out, opts)
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return apperr.FromStatus(err)
	}
	return nil
}
