package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/domain"
)

// cartDocument is the stored form of a cart. Money is kept as Decimal128 so it round-trips
// without float rounding.
type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Items     []itemDocument     `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type itemDocument struct {
	ProductID    string               `bson:"product_id"`
	ProductName  string               `bson:"product_name"`
	Quantity     int                  `bson:"quantity"`
	Selection    map[string]string    `bson:"selection"`
	SelectionKey string               `bson:"selection_key"`
	UnitPrice    primitive.Decimal128 `bson:"unit_price"`
	LineTotal    primitive.Decimal128 `bson:"line_total"`
}

func toDocument(c *domain.Cart) (*cartDocument, error) {
	doc := &cartDocument{
		UserID:    c.UserID,
		Items:     make([]itemDocument, 0, len(c.Items)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.ID != "" {
		id, err := primitive.ObjectIDFromHex(c.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid cart id %q: %w", c.ID, err)
		}
		doc.ID = id
	}
	for _, it := range c.Items {
		unit, err := primitive.ParseDecimal128(it.UnitPrice.String())
		if err != nil {
			return nil, fmt.Errorf("encode unit price: %w", err)
		}
		total, err := primitive.ParseDecimal128(it.LineTotal.String())
		if err != nil {
			return nil, fmt.Errorf("encode line total: %w", err)
		}
		doc.Items = append(doc.Items, itemDocument{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			Quantity:     it.Quantity,
			Selection:    it.Selection.Clone(),
			SelectionKey: it.Selection.Key(),
			UnitPrice:    unit,
			LineTotal:    total,
		})
	}
	return doc, nil
}

func (d *cartDocument) toDomain() (*domain.Cart, error) {
	c := &domain.Cart{
		UserID:    d.UserID,
		Items:     make([]domain.LineItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if !d.ID.IsZero() {
		c.ID = d.ID.Hex()
	}
	for _, it := range d.Items {
		unit, err := decimal.NewFromString(it.UnitPrice.String())
		if err != nil {
			return nil, fmt.Errorf("decode unit price: %w", err)
		}
		total, err := decimal.NewFromString(it.LineTotal.String())
		if err != nil {
			return nil, fmt.Errorf("decode line total: %w", err)
		}
		c.Items = append(c.Items, domain.LineItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Selection:   domain.Selection(it.Selection).Clone(),
			UnitPrice:   unit,
			LineTotal:   total,
		})
	}
	return c, nil
}
