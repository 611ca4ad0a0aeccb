package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID              string                        `json:"id"`
	Name            string                        `json:"name"`
	Description     string                        `json:"description"`
	Category        string                        `json:"category"`
	Subcategory     string                        `json:"subcategory,omitempty"`
	BasePrice       decimal.Decimal               `json:"base_price"`
	ImageURL        string                        `json:"image_url,omitempty"`
	Customizations  map[string]CustomizationGroup `json:"customization_options"`
	IsActive        bool                          `json:"is_active"`
	StockQuantity   int                           `json:"stock_quantity"`
	MinStockLevel   int                           `json:"min_stock_level"`
	PreparationTime int                           `json:"preparation_time"` // minutes
	Tags            []string                      `json:"tags"`
}

// CustomizationGroup is one category of choices (size, spice level, ...). Options of a disabled
// group never affect the price.
type CustomizationGroup struct {
	Enabled bool     `json:"enabled"`
	Options []Option `json:"options"`
}

type Option struct {
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// LowStock reports whether the product is at or below its restock threshold.
func (p *Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

// Applicable keeps the pairs of sel that name an option of an enabled group of p.
func (p *Product) Applicable(sel Selection) Selection {
	out := make(Selection, len(sel))
	for category, option := range sel {
		if _, ok := p.modifier(category, option); ok {
			out[category] = option
		}
	}
	return out
}

func (p *Product) modifier(category, option string) (decimal.Decimal, bool) {
	group, ok := p.Customizations[category]
	if !ok || !group.Enabled {
		return decimal.Zero, false
	}
	for _, o := range group.Options {
		if o.Name == option {
			return o.PriceModifier, true
		}
	}
	return decimal.Zero, false
}
