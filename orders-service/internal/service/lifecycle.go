// Package service drives the order lifecycle: creation from a checkout snapshot, admin status
// transitions and the authorized read paths.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/repository"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
	"github.com/Shreyas-s47/cloudykitchen/pkg/metrics"
)

type Option func(*Lifecycle)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// Lifecycle stores every change together with its outbox event; the publisher relays the events
// once they are committed.
type Lifecycle struct {
	repo repository.OrderRepository
	log  *zap.Logger
	now  func() time.Time
}

func NewLifecycle(repo repository.OrderRepository, log *zap.Logger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		repo: repo,
		log:  log.Named("lifecycle"),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create places an order for the acting customer. When idempotencyKey matches an order the
// customer already placed, that order is returned with created set to false.
func (l *Lifecycle) Create(ctx context.Context, actor domain.Actor, items []domain.LineItem, address domain.Address, paymentMethod, idempotencyKey string) (order *domain.Order, created bool, err error) {
	if actor.ID == "" {
		return nil, false, apperr.Unauthorized("an authenticated customer is required")
	}
	payment, err := domain.ParsePaymentMethod(paymentMethod)
	if err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		existing, err := l.repo.GetOrderByIdempotencyKey(ctx, actor.ID, idempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	order, err = domain.NewOrder(actor.ID, items, address, payment, idempotencyKey, l.now())
	if err != nil {
		return nil, false, err
	}

	event, err := placedEvent(order)
	if err != nil {
		return nil, false, err
	}

	if err := l.repo.CreateOrder(ctx, order, event); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			// lost a race against a request with the same key
			existing, getErr := l.repo.GetOrderByIdempotencyKey(ctx, actor.ID, idempotencyKey)
			if getErr != nil {
				return nil, false, fmt.Errorf("load order for idempotency key: %w", getErr)
			}
			return existing, false, nil
		}
		logger.WithContext(ctx, l.log).Error("create order failed", zap.String("customer_id", actor.ID), zap.Error(err))
		return nil, false, err
	}
	metrics.RecordOrderCreated()

	logger.WithContext(ctx, l.log).Info("order placed",
		zap.Stringer("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.Int("items", len(order.Items)),
		zap.Stringer("total", order.TotalAmount))
	return order, true, nil
}

// Transition moves an order from expectedStatus, the status the admin last observed, to
// newStatus. Concurrent transitions of the same order are serialized by the repository; a caller
// whose expectedStatus is no longer current gets a TransitionError against the committed status.
func (l *Lifecycle) Transition(ctx context.Context, actor domain.Actor, orderID, expectedStatus, newStatus string) (order *domain.Order, err error) {
	to := domain.OrderStatus(newStatus)
	from := expectedStatus
	defer func() {
		var te *apperr.TransitionError
		if errors.As(err, &te) {
			from = te.From
		}
		metrics.RecordTransition(from, string(to), err)
	}()

	if !actor.IsAdmin() {
		return nil, apperr.Unauthorized("admin role required to change order status")
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, apperr.Validation("unknown order status %q", newStatus)
	}
	expected := domain.OrderStatus(expectedStatus)
	if expected == "" {
		return nil, apperr.Validation("expected status is required")
	}
	if !expected.Valid() {
		return nil, apperr.Validation("unknown order status %q", expectedStatus)
	}

	current, err := l.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	at := l.now()
	event, err := statusChangedEvent(current, domain.StatusChange{From: expected, To: to, Actor: actor.ID, At: at})
	if err != nil {
		return nil, err
	}

	order, change, err := l.repo.TransitionOrder(ctx, repository.Transition{
		OrderID: id,
		From:    expected,
		To:      to,
		Actor:   actor.ID,
		At:      at,
		Event:   event,
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, l.log).Info("order transitioned",
		zap.Stringer("order_id", order.ID),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
		zap.String("actor", actor.ID))
	return order, nil
}

// Get returns the order if the actor owns it or is an admin.
func (l *Lifecycle) Get(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	order, err := l.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanRead(order) {
		return nil, apperr.Unauthorized("order %s belongs to another customer", orderID)
	}
	return order, nil
}

// ListForCustomer returns a customer's orders, newest first. An empty customerID means the actor.
func (l *Lifecycle) ListForCustomer(ctx context.Context, actor domain.Actor, customerID string) ([]*domain.Order, error) {
	if customerID == "" {
		customerID = actor.ID
	}
	if customerID == "" {
		return nil, apperr.Validation("customer id is required")
	}
	if !actor.IsAdmin() && actor.ID != customerID {
		return nil, apperr.Unauthorized("cannot list orders of another customer")
	}
	return l.repo.ListOrdersByCustomer(ctx, customerID)
}

// ListAll returns orders across every customer, newest first, optionally filtered by status.
func (l *Lifecycle) ListAll(ctx context.Context, actor domain.Actor, status string, limit int) ([]*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Unauthorized("admin role required to list all orders")
	}
	filter := repository.ListFilter{Status: domain.OrderStatus(status), Limit: limit}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown order status %q", status)
	}
	if limit < 0 {
		return nil, apperr.Validation("limit must not be negative, got %d", limit)
	}
	return l.repo.ListOrders(ctx, filter.Normalize())
}

func parseOrderID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid order id %q", s)
	}
	return id, nil
}
