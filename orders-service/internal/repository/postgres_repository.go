package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

// NewRepositoryFromDB wraps an already opened handle.
func NewRepositoryFromDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const orderColumns = `id, customer_id, items, total_amount, currency, delivery_address, payment_method,
	payment_status, status, COALESCE(idempotency_key, ''), created_at, updated_at`

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, event *domain.OutboxEvent) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery address: %w", err)
	}

	query := `INSERT INTO orders (id, customer_id, items, total_amount, currency, delivery_address,
	              payment_method, payment_status, status, idempotency_key, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, insertErr := tx.ExecContext(ctx, query,
		order.ID,
		order.CustomerID,
		itemsJSON,
		order.TotalAmount,
		order.Currency,
		addressJSON,
		order.PaymentMethod,
		order.PaymentStatus,
		order.Status,
		order.IdempotencyKey,
		order.CreatedAt,
		order.UpdatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if order.History, err = loadHistory(ctx, r.db, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 AND idempotency_key = $2`,
		customerID, key)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if order.History, err = loadHistory(ctx, r.db, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC, id`
	return r.listOrders(ctx, query, customerID)
}

func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, error) {
	filter = filter.Normalize()
	if filter.Status != "" {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at DESC, id LIMIT $2`
		return r.listOrders(ctx, query, filter.Status, filter.Limit)
	}
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id LIMIT $1`
	return r.listOrders(ctx, query, filter.Limit)
}

// TransitionOrder locks the order row for the duration of the transaction, so a concurrent
// transition of the same order waits and then checks its precondition against the committed status.
func (r *Repository) TransitionOrder(ctx context.Context, t Transition) (*domain.Order, domain.StatusChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StatusChange{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, t.OrderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, domain.StatusChange{}, err
	}
	if order.History, err = loadHistory(ctx, tx, order.ID); err != nil {
		return nil, domain.StatusChange{}, err
	}

	change, err := order.TransitionFrom(t.From, t.To, t.Actor, t.At)
	if err != nil {
		return nil, domain.StatusChange{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		order.ID, order.Status, order.UpdatedAt); err != nil {
		return nil, domain.StatusChange{}, fmt.Errorf("update order status: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO order_status_history (order_id, from_status, to_status, actor, changed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		order.ID, change.From, change.To, change.Actor, change.At); err != nil {
		return nil, domain.StatusChange{}, fmt.Errorf("insert status history: %w", err)
	}
	if err := insertEvent(ctx, tx, t.Event); err != nil {
		return nil, domain.StatusChange{}, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.StatusChange{}, fmt.Errorf("commit transition: %w", err)
	}
	return order, change, nil
}

func (r *Repository) UnpublishedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM order_events WHERE published_at IS NULL ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventPublished(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE order_events SET published_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark event %s published: %w", id, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, event *domain.OutboxEvent) error {
	if event == nil {
		return nil
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO order_events (id, aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.AggregateID, event.EventType, event.Payload, event.CreatedAt); err != nil {
		return fmt.Errorf("insert %s event: %w", event.EventType, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	byID := map[uuid.UUID]*domain.Order{}
	var ids []string
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.History = []domain.StatusChange{}
		orders = append(orders, order)
		byID[order.ID] = order
		ids = append(ids, order.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	hrows, err := r.db.QueryContext(ctx,
		`SELECT order_id, from_status, to_status, actor, changed_at
		 FROM order_status_history WHERE order_id = ANY($1::uuid[]) ORDER BY id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer hrows.Close()

	for hrows.Next() {
		var (
			orderID uuid.UUID
			c       domain.StatusChange
		)
		if err := hrows.Scan(&orderID, &c.From, &c.To, &c.Actor, &c.At); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.History = append(o.History, c)
		}
	}
	if err := hrows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadHistory(ctx context.Context, q queryer, orderID uuid.UUID) ([]domain.StatusChange, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT from_status, to_status, actor, changed_at
		 FROM order_status_history WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	history := []domain.StatusChange{}
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.From, &c.To, &c.Actor, &c.At); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		history = append(history, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return history, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		itemsJSON   []byte
		addressJSON []byte
	)
	err := s.Scan(
		&order.ID,
		&order.CustomerID,
		&itemsJSON,
		&order.TotalAmount,
		&order.Currency,
		&addressJSON,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.Status,
		&order.IdempotencyKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("unmarshal delivery address: %w", err)
	}
	return &order, nil
}
