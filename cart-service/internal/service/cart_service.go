package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/cache"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/repository"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
	"github.com/Shreyas-s47/cloudykitchen/pkg/metrics"
)

// maxPricedItems bounds a single Price request.
const maxPricedItems = 100

// Catalog is the product lookup the cart prices against.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog Catalog
	log     *zap.Logger
	sfg     singleflight.Group // Prevents cache stampede
	locks   *keyedLocks
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, catalog Catalog, log *zap.Logger) *CartService {
	return &CartService{
		repo:    repo,
		cache:   c,
		catalog: catalog,
		log:     log.Named("cart"),
		locks:   newKeyedLocks(),
	}
}

// GetCart returns the user's cart, or an empty one if none was stored yet.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithContext(ctx, s.log).Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}
		return s.loadAndFill(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// loadAndFill reads the cart and caches it under the user's cart lock. Writes invalidate the
// cache under the same lock, so a fill can never land on top of a newer write.
func (s *CartService) loadAndFill(ctx context.Context, userID string) (*domain.Cart, error) {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("acquire cart lock: %w", err)
	}
	defer unlock()

	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, err
	}

	setCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.cache.Set(setCtx, userID, cart); err != nil {
		logger.WithContext(ctx, s.log).Warn("cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, sel domain.Selection, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1, got %d", quantity)
	}
	product, err := s.availableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.Update(ctx, userID, "add_item", func(c *domain.Cart) error {
		return c.AddItem(product, sel, quantity)
	})
}

// Price prices items against the current catalog the way AddItem would, without reading or
// writing any stored cart. Items with the same product and selection are merged.
func (s *CartService) Price(ctx context.Context, items []domain.ItemRequest) (cart *domain.Cart, err error) {
	defer func() { metrics.RecordCartOperation("price", err) }()

	if len(items) > maxPricedItems {
		return nil, apperr.Validation("at most %d items can be priced at once, got %d", maxPricedItems, len(items))
	}
	cart = domain.NewCart("")
	for _, it := range items {
		product, err := s.availableProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if err := cart.AddItem(product, it.Selection, it.Quantity); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

func (s *CartService) availableProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperr.Validation("product %s is not available", productID)
	}
	return product, nil
}

func (s *CartService) SetQuantity(ctx context.Context, userID string, index, quantity int) (*domain.Cart, error) {
	return s.Update(ctx, userID, "set_quantity", func(c *domain.Cart) error {
		return c.SetQuantity(index, quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, index int) (*domain.Cart, error) {
	return s.Update(ctx, userID, "remove_item", func(c *domain.Cart) error {
		return c.RemoveItem(index)
	})
}

// ClearCart drops the stored cart. Clearing a cart that was never saved is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) (err error) {
	defer func() { metrics.RecordCartOperation("clear", err) }()

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquire cart lock: %w", err)
	}
	defer unlock()

	if err := s.repo.DeleteCart(ctx, userID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		logger.WithContext(ctx, s.log).Error("delete cart failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	s.invalidateCache(userID)
	return nil
}

// Update runs fn against the stored cart while holding the user's cart lock and persists the
// result. Nothing is written when fn fails. The cache is bypassed for the read and invalidated
// after the write.
func (s *CartService) Update(ctx context.Context, userID, op string, fn func(*domain.Cart) error) (cart *domain.Cart, err error) {
	defer func() { metrics.RecordCartOperation(op, err) }()

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("acquire cart lock: %w", err)
	}
	defer unlock()

	cart, err = s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart, err = domain.NewCart(userID), nil
	}
	if err != nil {
		logger.WithContext(ctx, s.log).Error("load cart failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	if err := fn(cart); err != nil {
		return nil, err
	}

	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		logger.WithContext(ctx, s.log).Error("save cart failed",
			zap.String("user_id", userID), zap.String("op", op), zap.Error(err))
		return nil, err
	}
	s.invalidateCache(userID)

	logger.WithContext(ctx, s.log).Debug("cart updated",
		zap.String("user_id", userID),
		zap.String("op", op),
		zap.Int("items", len(cart.Items)),
		zap.Stringer("total", cart.Total()))
	return cart, nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
