package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/cache"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/repository"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

// mockRepository stores carts by user and hands out deep copies, like a real store would.
type mockRepository struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	err     error
	upserts int
}

func newMockRepository(carts ...*domain.Cart) *mockRepository {
	r := &mockRepository{carts: map[string]*domain.Cart{}}
	for _, c := range carts {
		r.carts[c.UserID] = copyCart(c)
	}
	return r
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = c.Snapshot()
	return &cp
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserts++
	m.carts[c.UserID] = copyCart(c)
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockRepository) stored(userID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

type mockCache struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return m.err
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return m.err
}

func (m *mockCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

type mockCatalog map[string]*domain.Product

func (m mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("product %s", id)
	}
	return p, nil
}

func testCatalog() mockCatalog {
	return mockCatalog{
		"dosa": {
			ID: "dosa", Name: "Masala Dosa", BasePrice: decimal.NewFromInt(80), IsActive: true,
			Customizations: map[string]domain.CustomizationGroup{
				"type": {Enabled: true, Options: []domain.Option{{Name: "masala", PriceModifier: decimal.NewFromInt(20)}}},
			},
		},
		"lassi": {ID: "lassi", Name: "Mango Lassi", BasePrice: decimal.NewFromInt(90), IsActive: false},
	}
}

func newTestService(repo *mockRepository, c *mockCache) *CartService {
	return NewCartService(repo, c, testCatalog(), zap.NewNop())
}

func TestGetCart_FromRepoFillsCache(t *testing.T) {
	stored := domain.NewCart("123")
	require.NoError(t, stored.AddItem(testCatalog()["dosa"], nil, 5))
	mockC := &mockCache{}

	sut := newTestService(newMockRepository(stored), mockC)
	ret, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, 5, ret.Items[0].Quantity)

	require.Eventually(t, func() bool {
		return mockC.getCart() != nil
	}, 100*time.Millisecond, 10*time.Millisecond, "cart was not set in cache")
}

func TestGetCart_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.err = fmt.Errorf("database error")
	mockC := &mockCache{}

	sut := newTestService(repo, mockC)
	ret, err := sut.GetCart(context.Background(), "123")

	require.ErrorContains(t, err, "database error")
	assert.Nil(t, ret)
	assert.Nil(t, mockC.getCart())
}

func TestGetCart_CacheHit(t *testing.T) {
	cached := domain.NewCart("123")
	require.NoError(t, cached.AddItem(testCatalog()["dosa"], nil, 3))
	repo := newMockRepository()
	repo.err = fmt.Errorf("repo must not be called")

	sut := newTestService(repo, &mockCache{cart: cached})
	ret, err := sut.GetCart(context.Background(), "123")

	require.NoError(t, err)
	assert.Equal(t, 3, ret.Items[0].Quantity)
}

func TestGetCart_CacheErrorFallsBackToRepo(t *testing.T) {
	stored := domain.NewCart("123")
	require.NoError(t, stored.AddItem(testCatalog()["dosa"], nil, 1))

	sut := newTestService(newMockRepository(stored), &mockCache{err: fmt.Errorf("redis down")})
	ret, err := sut.GetCart(context.Background(), "123")

	require.NoError(t, err)
	assert.Len(t, ret.Items, 1)
}

func TestGetCart_CartNotFound_ReturnsEmptyCart(t *testing.T) {
	sut := newTestService(newMockRepository(), &mockCache{})

	ret, err := sut.GetCart(context.Background(), "123")

	require.NoError(t, err)
	assert.Equal(t, "123", ret.UserID)
	assert.Empty(t, ret.Items)
	assert.True(t, ret.Total().IsZero())
}

func TestAddItem_DosaScenario(t *testing.T) {
	repo := newMockRepository()
	sut := newTestService(repo, &mockCache{})
	ctx := context.Background()

	cart, err := sut.AddItem(ctx, "123", "dosa", domain.Selection{"type": "masala"}, 2)
	require.NoError(t, err)
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(200)))

	cart, err = sut.AddItem(ctx, "123", "dosa", domain.Selection{"type": "masala"}, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(300)))

	cart, err = sut.RemoveItem(ctx, "123", 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Empty(t, repo.stored("123").Items)
}

func TestAddItem_InvalidatesCache(t *testing.T) {
	mockC := &mockCache{cart: domain.NewCart("123")}
	sut := newTestService(newMockRepository(), mockC)

	_, err := sut.AddItem(context.Background(), "123", "dosa", nil, 1)
	require.NoError(t, err)

	assert.Nil(t, mockC.getCart())
}

func TestAddItem_Rejections(t *testing.T) {
	repo := newMockRepository()
	sut := newTestService(repo, &mockCache{})
	ctx := context.Background()

	_, err := sut.AddItem(ctx, "123", "lassi", nil, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = sut.AddItem(ctx, "123", "ghost", nil, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = sut.AddItem(ctx, "123", "dosa", nil, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, 0, repo.upserts)
}

func TestPrice_UsesCatalogAndStoresNothing(t *testing.T) {
	repo := newMockRepository()
	mockC := &mockCache{}
	sut := newTestService(repo, mockC)

	cart, err := sut.Price(context.Background(), []domain.ItemRequest{
		{ProductID: "dosa", Selection: domain.Selection{"type": "masala"}, Quantity: 2},
		{ProductID: "dosa", Selection: domain.Selection{"type": "masala"}, Quantity: 1},
		{ProductID: "dosa", Quantity: 1},
	})

	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(380)))
	assert.Equal(t, 0, repo.upserts)
	assert.Nil(t, mockC.getCart())
}

func TestPrice_Rejections(t *testing.T) {
	sut := newTestService(newMockRepository(), &mockCache{})
	ctx := context.Background()

	_, err := sut.Price(ctx, []domain.ItemRequest{{ProductID: "lassi", Quantity: 1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = sut.Price(ctx, []domain.ItemRequest{{ProductID: "ghost", Quantity: 1}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = sut.Price(ctx, []domain.ItemRequest{{ProductID: "dosa", Quantity: 0}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = sut.Price(ctx, make([]domain.ItemRequest, maxPricedItems+1))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	cart, err := sut.Price(ctx, nil)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestAddItem_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.err = fmt.Errorf("database error")
	sut := newTestService(repo, &mockCache{})

	_, err := sut.AddItem(context.Background(), "123", "dosa", nil, 5)
	require.ErrorContains(t, err, "database error")
}

func TestSetQuantity(t *testing.T) {
	stored := domain.NewCart("123")
	require.NoError(t, stored.AddItem(testCatalog()["dosa"], domain.Selection{"type": "masala"}, 1))
	repo := newMockRepository(stored)
	sut := newTestService(repo, &mockCache{})
	ctx := context.Background()

	cart, err := sut.SetQuantity(ctx, "123", 0, 4)
	require.NoError(t, err)
	assert.True(t, cart.Items[0].LineTotal.Equal(decimal.NewFromInt(400)))

	_, err = sut.SetQuantity(ctx, "123", 3, 1)
	assert.ErrorIs(t, err, apperr.ErrIndex)
	assert.Equal(t, 4, repo.stored("123").Items[0].Quantity)

	cart, err = sut.SetQuantity(ctx, "123", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestRemoveItem_OutOfRangeWritesNothing(t *testing.T) {
	repo := newMockRepository()
	sut := newTestService(repo, &mockCache{})

	_, err := sut.RemoveItem(context.Background(), "123", 0)

	assert.ErrorIs(t, err, apperr.ErrIndex)
	assert.Equal(t, 0, repo.upserts)
}

func TestClearCart(t *testing.T) {
	stored := domain.NewCart("123")
	require.NoError(t, stored.AddItem(testCatalog()["dosa"], nil, 2))
	repo := newMockRepository(stored)
	mockC := &mockCache{cart: stored}
	sut := newTestService(repo, mockC)

	require.NoError(t, sut.ClearCart(context.Background(), "123"))
	assert.Nil(t, repo.stored("123"))
	assert.Nil(t, mockC.getCart())

	// clearing again is a no-op
	require.NoError(t, sut.ClearCart(context.Background(), "123"))
}

func TestClearCart_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.err = fmt.Errorf("database error")
	sut := newTestService(repo, &mockCache{})

	err := sut.ClearCart(context.Background(), "123")
	require.ErrorContains(t, err, "database error")
}

func TestAddItem_ConcurrentAddsForSameUserAreSerialized(t *testing.T) {
	repo := newMockRepository()
	sut := newTestService(repo, &mockCache{})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sut.AddItem(context.Background(), "123", "dosa", domain.Selection{"type": "masala"}, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart := repo.stored("123")
	require.Len(t, cart.Items, 1)
	assert.Equal(t, n, cart.Items[0].Quantity)
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(100*n)))
	assert.Equal(t, 0, sut.locks.size())
}

// gatedRepository parks the first GetCart after it has read the store, until release is closed.
type gatedRepository struct {
	*mockRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := g.mockRepository.GetCart(ctx, userID)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return cart, err
}

func TestGetCart_SlowFillDoesNotOutliveConcurrentWrite(t *testing.T) {
	stored := domain.NewCart("123")
	require.NoError(t, stored.AddItem(testCatalog()["dosa"], domain.Selection{"type": "masala"}, 1))
	repo := &gatedRepository{
		mockRepository: newMockRepository(stored),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	sut := NewCartService(repo, &mockCache{}, testCatalog(), zap.NewNop())
	ctx := context.Background()

	readDone := make(chan error, 1)
	go func() {
		_, err := sut.GetCart(ctx, "123")
		readDone <- err
	}()
	<-repo.entered

	writeDone := make(chan error, 1)
	go func() {
		_, err := sut.AddItem(ctx, "123", "dosa", domain.Selection{"type": "masala"}, 4)
		writeDone <- err
	}()
	select {
	case err := <-writeDone:
		// the write got ahead of the parked read; put its result back for the check below
		writeDone <- err
	case <-time.After(50 * time.Millisecond):
	}
	close(repo.release)
	require.NoError(t, <-readDone)
	require.NoError(t, <-writeDone)

	got, err := sut.GetCart(ctx, "123")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 5, got.Items[0].Quantity)
	assert.True(t, got.Total().Equal(decimal.NewFromInt(500)))
}
