package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

var (
	ErrOrderNotFound  = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrDuplicateOrder = errors.New("order with this idempotency key already exists")
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type ListFilter struct {
	Status domain.OrderStatus // empty matches every status
	Limit  int
}

// Normalize applies the default limit and clamps it to the maximum.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Transition is a status change guarded by the status the caller observed. Event, when set, is
// stored together with the change.
type Transition struct {
	OrderID uuid.UUID
	From    domain.OrderStatus
	To      domain.OrderStatus
	Actor   string
	At      time.Time
	Event   *domain.OutboxEvent
}

type OrderRepository interface {
	// CreateOrder stores the order and, when event is not nil, its outbox event in one write.
	CreateOrder(ctx context.Context, order *domain.Order, event *domain.OutboxEvent) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*domain.Order, error)
	// ListOrdersByCustomer returns the customer's orders, newest first.
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
	// ListOrders returns orders across customers, newest first.
	ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, error)
	// TransitionOrder applies a status change atomically per order. Concurrent callers are
	// serialized, and a caller whose From no longer matches the committed status is rejected
	// with a TransitionError carrying the current status.
	TransitionOrder(ctx context.Context, t Transition) (*domain.Order, domain.StatusChange, error)
	OutboxStore
	Close() error
}

// OutboxStore hands stored lifecycle events to the publisher.
type OutboxStore interface {
	// UnpublishedEvents returns pending events in the order they were written.
	UnpublishedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id uuid.UUID) error
}
