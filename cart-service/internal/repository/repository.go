package repository

import (
	"context"
	"errors"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository stores one cart document per user. Line item arithmetic lives in the domain;
// the repository persists whole carts.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}
