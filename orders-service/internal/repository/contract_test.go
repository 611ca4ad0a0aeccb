package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

func newTestOrder(t *testing.T, customerID, key string, createdAt time.Time) *domain.Order {
	t.Helper()
	unit := decimal.NewFromInt(100)
	o, err := domain.NewOrder(customerID, []domain.LineItem{{
		ProductID:   "p-masala-dosa",
		ProductName: "Masala Dosa",
		Quantity:    3,
		Selection:   map[string]string{"type": "masala"},
		UnitPrice:   unit,
		LineTotal:   unit.Mul(decimal.NewFromInt(3)),
	}}, domain.Address{Street: "12 MG Road", City: "Bengaluru", Pincode: "560001"},
		domain.PaymentCashOnDelivery, key, createdAt.UTC().Truncate(time.Microsecond))
	require.NoError(t, err)
	return o
}

func advance(t *testing.T, repo OrderRepository, id uuid.UUID, path ...domain.OrderStatus) {
	t.Helper()
	for _, s := range path {
		current, err := repo.GetOrderByID(context.Background(), id)
		require.NoError(t, err)
		_, _, err = repo.TransitionOrder(context.Background(), Transition{
			OrderID: id, From: current.Status, To: s, Actor: "admin-1", At: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}

func outboxEvent(orderID uuid.UUID, eventType string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: orderID,
		EventType:   eventType,
		Payload:     []byte(`{"type":"` + eventType + `"}`),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// runRepositoryContract exercises the behaviour every OrderRepository must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) OrderRepository) {
	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		order := newTestOrder(t, "cust-1", "", time.Now())

		require.NoError(t, repo.CreateOrder(ctx, order, nil))

		fetched, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, fetched.ID)
		assert.Equal(t, order.CustomerID, fetched.CustomerID)
		assert.True(t, order.TotalAmount.Equal(fetched.TotalAmount))
		assert.Equal(t, domain.StatusPlaced, fetched.Status)
		assert.Equal(t, order.DeliveryAddress, fetched.DeliveryAddress)
		require.Len(t, fetched.Items, 1)
		assert.Equal(t, "masala", fetched.Items[0].Selection["type"])
		assert.True(t, fetched.Items[0].LineTotal.Equal(decimal.NewFromInt(300)))
		assert.Empty(t, fetched.History)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetOrderByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, _, err = repo.TransitionOrder(context.Background(), Transition{
			OrderID: uuid.New(), From: domain.StatusPlaced, To: domain.StatusConfirmed, Actor: "admin-1", At: time.Now(),
		})
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("idempotency key is unique per customer", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		first := newTestOrder(t, "cust-1", "key-1", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, first, nil))

		err := repo.CreateOrder(ctx, newTestOrder(t, "cust-1", "key-1", time.Now()), nil)
		assert.ErrorIs(t, err, ErrDuplicateOrder)

		require.NoError(t, repo.CreateOrder(ctx, newTestOrder(t, "cust-2", "key-1", time.Now()), nil))
		require.NoError(t, repo.CreateOrder(ctx, newTestOrder(t, "cust-1", "", time.Now()), nil))
		require.NoError(t, repo.CreateOrder(ctx, newTestOrder(t, "cust-1", "", time.Now()), nil))

		got, err := repo.GetOrderByIdempotencyKey(ctx, "cust-1", "key-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)

		_, err = repo.GetOrderByIdempotencyKey(ctx, "cust-3", "key-1")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("transition persists status and history", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		order := newTestOrder(t, "cust-1", "", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, order, nil))

		at := time.Now().UTC().Truncate(time.Microsecond)
		updated, change, err := repo.TransitionOrder(ctx, Transition{
			OrderID: order.ID, From: domain.StatusPlaced, To: domain.StatusConfirmed, Actor: "admin-1", At: at,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, updated.Status)
		assert.Equal(t, domain.StatusPlaced, change.From)

		_, _, err = repo.TransitionOrder(ctx, Transition{
			OrderID: order.ID, From: domain.StatusConfirmed, To: domain.StatusDispatched, Actor: "admin-1", At: at,
		})
		require.ErrorIs(t, err, apperr.ErrInvalidTransition)

		fetched, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, fetched.Status)
		require.Len(t, fetched.History, 1)
		assert.Equal(t, domain.StatusConfirmed, fetched.History[0].To)
		assert.Equal(t, "admin-1", fetched.History[0].Actor)
		assert.True(t, at.Equal(fetched.History[0].At))
	})

	t.Run("lists newest first with filters", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)
		var ids []uuid.UUID
		for i := 0; i < 4; i++ {
			o := newTestOrder(t, "cust-1", "", base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, repo.CreateOrder(ctx, o, nil))
			ids = append(ids, o.ID)
		}
		other := newTestOrder(t, "cust-2", "", base.Add(10*time.Minute))
		require.NoError(t, repo.CreateOrder(ctx, other, nil))
		advance(t, repo, ids[1], domain.StatusConfirmed)
		advance(t, repo, ids[3], domain.StatusCancelled)

		mine, err := repo.ListOrdersByCustomer(ctx, "cust-1")
		require.NoError(t, err)
		require.Len(t, mine, 4)
		assert.Equal(t, ids[3], mine[0].ID)
		assert.Equal(t, ids[0], mine[3].ID)
		assert.Len(t, mine[0].History, 1)

		all, err := repo.ListOrders(ctx, ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, other.ID, all[0].ID)

		confirmed, err := repo.ListOrders(ctx, ListFilter{Status: domain.StatusConfirmed})
		require.NoError(t, err)
		require.Len(t, confirmed, 1)
		assert.Equal(t, ids[1], confirmed[0].ID)

		limited, err := repo.ListOrders(ctx, ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		none, err := repo.ListOrdersByCustomer(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("concurrent identical transitions: first committer wins", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder(t, "cust-1", "", time.Now())
		require.NoError(t, repo.CreateOrder(context.Background(), order, nil))
		advance(t, repo, order.ID, domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady)

		errs := raceTransitions(t, repo, order.ID, domain.StatusDispatched, domain.StatusDispatched, domain.StatusDispatched)

		var winners int
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			var te *apperr.TransitionError
			require.True(t, errors.As(err, &te), "unexpected error: %v", err)
			assert.Equal(t, "dispatched", te.From)
		}
		assert.Equal(t, 1, winners)

		fetched, err := repo.GetOrderByID(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDispatched, fetched.Status)
		assert.Len(t, fetched.History, 4)
	})

	t.Run("stale observed status is rejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		order := newTestOrder(t, "cust-1", "", time.Now())
		require.NoError(t, repo.CreateOrder(ctx, order, nil))
		advance(t, repo, order.ID, domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady)

		_, _, err := repo.TransitionOrder(ctx, Transition{
			OrderID: order.ID, From: domain.StatusReady, To: domain.StatusDispatched, Actor: "admin-a", At: time.Now().UTC(),
			Event: outboxEvent(order.ID, "order.status_changed"),
		})
		require.NoError(t, err)

		// admin-b also saw the order ready; cancelling would be legal from dispatched
		_, _, err = repo.TransitionOrder(ctx, Transition{
			OrderID: order.ID, From: domain.StatusReady, To: domain.StatusCancelled, Actor: "admin-b", At: time.Now().UTC(),
			Event: outboxEvent(order.ID, "order.status_changed"),
		})
		var te *apperr.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "dispatched", te.From)

		fetched, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDispatched, fetched.Status)
		assert.Len(t, fetched.History, 4)

		events, err := repo.UnpublishedEvents(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("concurrent dispatch and cancel from ready: exactly one wins", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder(t, "cust-1", "", time.Now())
		require.NoError(t, repo.CreateOrder(context.Background(), order, nil))
		advance(t, repo, order.ID, domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady)

		errs := raceTransitions(t, repo, order.ID, domain.StatusDispatched, domain.StatusCancelled)

		fetched, err := repo.GetOrderByID(context.Background(), order.ID)
		require.NoError(t, err)
		require.Len(t, fetched.History, 4)

		var winner domain.OrderStatus
		for i, target := range []domain.OrderStatus{domain.StatusDispatched, domain.StatusCancelled} {
			if errs[i] == nil {
				require.Empty(t, winner, "both transitions committed")
				winner = target
				continue
			}
			var te *apperr.TransitionError
			require.True(t, errors.As(errs[i], &te), "unexpected error: %v", errs[i])
		}
		require.NotEmpty(t, winner)
		assert.Equal(t, winner, fetched.Status)
		for _, err := range errs {
			var te *apperr.TransitionError
			if errors.As(err, &te) {
				assert.Equal(t, string(winner), te.From)
			}
		}
	})

	t.Run("outbox events follow the committed writes", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		order := newTestOrder(t, "cust-1", "key-9", time.Now())
		placed := outboxEvent(order.ID, "order.placed")
		require.NoError(t, repo.CreateOrder(ctx, order, placed))

		// a duplicate key writes neither the order nor its event
		dup := newTestOrder(t, "cust-1", "key-9", time.Now())
		require.ErrorIs(t, repo.CreateOrder(ctx, dup, outboxEvent(dup.ID, "order.placed")), ErrDuplicateOrder)

		confirmed := outboxEvent(order.ID, "order.status_changed")
		_, _, err := repo.TransitionOrder(ctx, Transition{
			OrderID: order.ID, From: domain.StatusPlaced, To: domain.StatusConfirmed, Actor: "admin-1",
			At: time.Now().UTC(), Event: confirmed,
		})
		require.NoError(t, err)

		// a rejected transition writes no event
		_, _, err = repo.TransitionOrder(ctx, Transition{
			OrderID: order.ID, From: domain.StatusConfirmed, To: domain.StatusDelivered, Actor: "admin-1",
			At: time.Now().UTC(), Event: outboxEvent(order.ID, "order.status_changed"),
		})
		require.ErrorIs(t, err, apperr.ErrInvalidTransition)

		events, err := repo.UnpublishedEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, placed.ID, events[0].ID)
		assert.Equal(t, order.ID, events[0].AggregateID)
		assert.JSONEq(t, string(placed.Payload), string(events[0].Payload))
		assert.Equal(t, confirmed.ID, events[1].ID)

		require.NoError(t, repo.MarkEventPublished(ctx, placed.ID))
		events, err = repo.UnpublishedEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, confirmed.ID, events[0].ID)

		limited, err := repo.UnpublishedEvents(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

// raceTransitions starts one transition per target at once, every caller having observed the
// order in the same state.
func raceTransitions(t *testing.T, repo OrderRepository, id uuid.UUID, targets ...domain.OrderStatus) []error {
	t.Helper()
	current, err := repo.GetOrderByID(context.Background(), id)
	require.NoError(t, err)
	observed := current.Status
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to domain.OrderStatus) {
			defer wg.Done()
			<-start
			_, _, errs[i] = repo.TransitionOrder(context.Background(), Transition{
				OrderID: id, From: observed, To: to, Actor: "admin-1", At: time.Now().UTC(),
			})
		}(i, to)
	}
	close(start)
	wg.Wait()
	return errs
}
