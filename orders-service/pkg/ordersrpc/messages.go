package ordersrpc

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	Quantity    int               `json:"quantity"`
	Selection   map[string]string `json:"selection,omitempty"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	LineTotal   decimal.Decimal   `json:"line_total"`
}

type Address struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Landmark string `json:"landmark,omitempty"`
}

type StatusChange struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	Items           []LineItem      `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	DeliveryAddress Address         `json:"delivery_address"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	Status          string          `json:"order_status"`
	NextStatuses    []string        `json:"next_statuses"`
	History         []StatusChange  `json:"status_history"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CreateOrderRequest struct {
	Items           []LineItem `json:"items"`
	DeliveryAddress Address    `json:"delivery_address"`
	PaymentMethod   string     `json:"payment_method"`
	IdempotencyKey  string     `json:"idempotency_key,omitempty"`
	// ExpectedTotal is the total the caller priced the items at. When set, an order whose total
	// differs is rejected before it is stored.
	ExpectedTotal *decimal.Decimal `json:"expected_total,omitempty"`
}

type CreateOrderResponse struct {
	Order *Order `json:"order"`
	// Created is false when the idempotency key matched an existing order.
	Created bool `json:"created"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type OrderResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersRequest struct {
	CustomerID string `json:"customer_id"`
}

type ListAllOrdersRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

// TransitionOrderRequest moves an order from ExpectedStatus, the status the caller last saw, to
// Status. The change is rejected when the order has moved on in between.
type TransitionOrderRequest struct {
	OrderID        string `json:"order_id"`
	ExpectedStatus string `json:"expected_status"`
	Status         string `json:"order_status"`
}
