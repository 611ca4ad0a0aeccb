package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
)

// MemoryRepository keeps orders in process. It backs tests and single-process runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*memoryEntry
	keys   map[string]uuid.UUID // customer id + idempotency key

	outboxMu sync.Mutex
	outbox   []*domain.OutboxEvent // pending, oldest first
}

type memoryEntry struct {
	mu    sync.Mutex
	order *domain.Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[uuid.UUID]*memoryEntry),
		keys:   make(map[string]uuid.UUID),
	}
}

func idempotencyIndex(customerID, key string) string {
	return customerID + "\x00" + key
}

func (m *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.IdempotencyKey != "" {
		k := idempotencyIndex(order.CustomerID, order.IdempotencyKey)
		if _, ok := m.keys[k]; ok {
			return ErrDuplicateOrder
		}
		m.keys[k] = order.ID
	}
	m.orders[order.ID] = &memoryEntry{order: order.Clone()}
	m.enqueue(event)
	return nil
}

func (m *MemoryRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	e, ok := m.entry(id)
	if !ok {
		return nil, ErrOrderNotFound
	}
	return e.snapshot(), nil
}

func (m *MemoryRepository) GetOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*domain.Order, error) {
	m.mu.RLock()
	id, ok := m.keys[idempotencyIndex(customerID, key)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return m.GetOrderByID(ctx, id)
}

func (m *MemoryRepository) ListOrdersByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool { return o.CustomerID == customerID }, 0), nil
}

func (m *MemoryRepository) ListOrders(_ context.Context, filter ListFilter) ([]*domain.Order, error) {
	filter = filter.Normalize()
	return m.list(func(o *domain.Order) bool {
		return filter.Status == "" || o.Status == filter.Status
	}, filter.Limit), nil
}

// TransitionOrder holds the order's own mutex while validating and applying the change, so
// transitions of different orders never wait on each other.
func (m *MemoryRepository) TransitionOrder(_ context.Context, t Transition) (*domain.Order, domain.StatusChange, error) {
	e, ok := m.entry(t.OrderID)
	if !ok {
		return nil, domain.StatusChange{}, ErrOrderNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.order.Clone()
	change, err := next.TransitionFrom(t.From, t.To, t.Actor, t.At)
	if err != nil {
		return nil, domain.StatusChange{}, err
	}
	e.order = next
	m.enqueue(t.Event)
	return next.Clone(), change, nil
}

func (m *MemoryRepository) UnpublishedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.outboxMu.Lock()
	defer m.outboxMu.Unlock()

	n := len(m.outbox)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]*domain.OutboxEvent, n)
	for i, ev := range m.outbox[:n] {
		cp := *ev
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryRepository) MarkEventPublished(_ context.Context, id uuid.UUID) error {
	m.outboxMu.Lock()
	defer m.outboxMu.Unlock()

	for i, ev := range m.outbox {
		if ev.ID == id {
			m.outbox = append(m.outbox[:i], m.outbox[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryRepository) enqueue(event *domain.OutboxEvent) {
	if event == nil {
		return
	}
	cp := *event
	m.outboxMu.Lock()
	m.outbox = append(m.outbox, &cp)
	m.outboxMu.Unlock()
}

func (m *MemoryRepository) Close() error {
	return nil
}

func (m *MemoryRepository) entry(id uuid.UUID) (*memoryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.orders[id]
	return e, ok
}

func (e *memoryEntry) snapshot() *domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Clone()
}

func (m *MemoryRepository) list(match func(*domain.Order) bool, limit int) []*domain.Order {
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.orders))
	for _, e := range m.orders {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := []*domain.Order{}
	for _, e := range entries {
		if o := e.snapshot(); match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
