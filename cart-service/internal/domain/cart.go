package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

type Cart struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"user_id"`
	Items     []LineItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type LineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Selection   Selection       `json:"selection"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ItemRequest is a product, a selection and a quantity as a customer asks for them.
type ItemRequest struct {
	ProductID string    `json:"product_id"`
	Selection Selection `json:"selection"`
	Quantity  int       `json:"quantity"`
}

func NewCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []LineItem{}}
}

// UnitPrice is the base price plus the modifier of every selected option. Categories or options
// the product does not offer, and options of disabled groups, are ignored. The result is never
// negative.
func UnitPrice(p *Product, sel Selection) decimal.Decimal {
	price := p.BasePrice
	for category, option := range sel {
		if mod, ok := p.modifier(category, option); ok {
			price = price.Add(mod)
		}
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// AddItem merges quantity into the line item with the same product and an equal selection, or
// appends a new one. Only the pairs that apply to p are compared and stored.
func (c *Cart) AddItem(p *Product, sel Selection, quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity must be at least 1, got %d", quantity)
	}
	sel = p.Applicable(sel)
	unit := UnitPrice(p, sel)

	for i := range c.Items {
		it := &c.Items[i]
		if it.ProductID == p.ID && it.Selection.Equal(sel) {
			it.Quantity += quantity
			it.ProductName = p.Name
			it.UnitPrice = unit
			it.LineTotal = lineTotal(unit, it.Quantity)
			return nil
		}
	}

	c.Items = append(c.Items, LineItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		Selection:   sel,
		UnitPrice:   unit,
		LineTotal:   lineTotal(unit, quantity),
	})
	return nil
}

// SetQuantity replaces the quantity of the item at index. Zero removes the item.
func (c *Cart) SetQuantity(index, quantity int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	if quantity < 0 {
		return apperr.Validation("quantity must not be negative, got %d", quantity)
	}
	if quantity == 0 {
		return c.RemoveItem(index)
	}
	it := &c.Items[index]
	it.Quantity = quantity
	it.LineTotal = lineTotal(it.UnitPrice, quantity)
	return nil
}

func (c *Cart) RemoveItem(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.Items = append(c.Items[:index], c.Items[index+1:]...)
	return nil
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal)
	}
	return total
}

// Snapshot returns a deep copy of the items that later cart mutations cannot reach.
func (c *Cart) Snapshot() []LineItem {
	out := make([]LineItem, len(c.Items))
	for i, it := range c.Items {
		it.Selection = it.Selection.Clone()
		out[i] = it
	}
	return out
}

func (c *Cart) Clear() {
	c.Items = []LineItem{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) checkIndex(index int) error {
	if index < 0 || index >= len(c.Items) {
		return apperr.Index(index, len(c.Items))
	}
	return nil
}

func lineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}
