package cache

import (
	"context"
	"errors"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
)

// CartCache is a read-through copy of carts. It is never consulted on the write path.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
