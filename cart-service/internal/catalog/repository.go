// Package catalog is the read side of the product catalog: lookups for pricing, storefront
// listings, the low-stock report and the stock decrement applied when an order is confirmed.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

var ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)

const lowStockLimit = 100

type Filter struct {
	Category    string
	Subcategory string
	// IncludeInactive lists disabled products too; the storefront only shows active ones.
	IncludeInactive bool
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `id, name, description, category, subcategory, base_price, image_url,
	customizations, is_active, stock_quantity, min_stock_level, preparation_time, tags`

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context, f Filter) ([]*domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Subcategory != "" {
		where = append(where, "subcategory = ?")
		args = append(args, f.Subcategory)
	}
	if !f.IncludeInactive {
		where = append(where, "is_active = 1")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY category, name"

	return r.queryProducts(ctx, query, args...)
}

// LowStock lists products whose stock is at or below their minimum level, active or not.
func (r *Repository) LowStock(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE stock_quantity <= min_stock_level
		ORDER BY stock_quantity, name
		LIMIT ?`
	return r.queryProducts(ctx, query, lowStockLimit)
}

type StockItem struct {
	ProductID string
	Quantity  int
}

// ApplyStockEvent decrements stock for every item of an order event exactly once. A replayed
// eventID changes nothing and reports applied == false. Stock stops at zero. Items of products
// no longer in the catalog, and items without a positive quantity, are skipped.
func (r *Repository) ApplyStockEvent(ctx context.Context, eventID, orderID string, items []StockItem) (applied bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO stock_events (event_id, order_id) VALUES (?, ?) ON CONFLICT (event_id) DO NOTHING`,
		eventID, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to record stock event: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	} else if n == 0 {
		return false, tx.Rollback()
	}

	for _, it := range items {
		if it.Quantity < 1 {
			continue
		}
		if _, err := decrement(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit stock event: %w", err)
	}
	return true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func decrement(ctx context.Context, db execer, id string, quantity int) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = MAX(stock_quantity - ?, 0), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, quantity, id)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*domain.Product, error) {
	var (
		p              domain.Product
		basePrice      string
		customizations string
		tags           string
	)
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Subcategory,
		&basePrice,
		&p.ImageURL,
		&customizations,
		&p.IsActive,
		&p.StockQuantity,
		&p.MinStockLevel,
		&p.PreparationTime,
		&tags,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if p.BasePrice, err = decimal.NewFromString(basePrice); err != nil {
		return nil, fmt.Errorf("product %s: invalid base price %q: %w", p.ID, basePrice, err)
	}
	if err := json.Unmarshal([]byte(customizations), &p.Customizations); err != nil {
		return nil, fmt.Errorf("product %s: invalid customizations: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("product %s: invalid tags: %w", p.ID, err)
	}
	return &p, nil
}
