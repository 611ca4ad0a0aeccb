package ordersrpc

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topic carries every order lifecycle event, keyed by order id.
const Topic = "order-events"

const (
	EventOrderPlaced   = "order.placed"
	EventStatusChanged = "order.status_changed"
)

type EventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderEvent struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	FromStatus  string          `json:"from_status,omitempty"`
	Status      string          `json:"status"`
	Actor       string          `json:"actor"`
	Items       []EventItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
