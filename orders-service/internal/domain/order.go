package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

const Currency = "INR"

type PaymentMethod string

const PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"

// ParsePaymentMethod normalizes the accepted spellings. Only cash on delivery is offered.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cod", string(PaymentCashOnDelivery):
		return PaymentCashOnDelivery, nil
	default:
		return "", apperr.Validation("unsupported payment method %q", s)
	}
}

type PaymentStatus string

const PaymentPending PaymentStatus = "pending"

type LineItem struct {
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	Quantity    int               `json:"quantity"`
	Selection   map[string]string `json:"selection,omitempty"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	LineTotal   decimal.Decimal   `json:"line_total"`
}

func (li LineItem) validate(i int) error {
	if li.ProductID == "" {
		return apperr.Validation("item %d: product id is required", i)
	}
	if li.Quantity < 1 {
		return apperr.Validation("item %d: quantity must be at least 1, got %d", i, li.Quantity)
	}
	if li.UnitPrice.IsNegative() {
		return apperr.Validation("item %d: unit price must not be negative", i)
	}
	if want := li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))); !want.Equal(li.LineTotal) {
		return apperr.Validation("item %d: line total %s does not equal %s x %d", i, li.LineTotal, li.UnitPrice, li.Quantity)
	}
	return nil
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

func (a Address) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Street) == "" {
		missing = append(missing, "street")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.Pincode) == "" {
		missing = append(missing, "pincode")
	}
	if len(missing) > 0 {
		return apperr.Validation("delivery address is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type StatusChange struct {
	From  OrderStatus `json:"from"`
	To    OrderStatus `json:"to"`
	Actor string      `json:"actor"`
	At    time.Time   `json:"at"`
}

type Order struct {
	ID              uuid.UUID
	CustomerID      string
	Items           []LineItem
	TotalAmount     decimal.Decimal
	Currency        string
	DeliveryAddress Address
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          OrderStatus
	History         []StatusChange
	IdempotencyKey  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder validates a checkout snapshot and builds an order in the placed state. The items are
// copied, so the caller's slice and selection maps stay independent of the order.
func NewOrder(customerID string, items []LineItem, address Address, payment PaymentMethod, idempotencyKey string, now time.Time) (*Order, error) {
	if customerID == "" {
		return nil, apperr.Validation("customer id is required")
	}
	if len(items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	if payment != PaymentCashOnDelivery {
		return nil, apperr.Validation("unsupported payment method %q", payment)
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}

	copied := make([]LineItem, len(items))
	for i, li := range items {
		if err := li.validate(i); err != nil {
			return nil, err
		}
		li.Selection = cloneSelection(li.Selection)
		copied[i] = li
	}

	return &Order{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Items:           copied,
		TotalAmount:     ItemsTotal(copied),
		Currency:        Currency,
		DeliveryAddress: address,
		PaymentMethod:   payment,
		PaymentStatus:   PaymentPending,
		Status:          StatusPlaced,
		History:         []StatusChange{},
		IdempotencyKey:  idempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ItemsTotal is the sum of the line totals, the amount an order built from items is charged.
func ItemsTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.LineTotal)
	}
	return total
}

// Transition moves the order to status to and records the change. On error the order is left
// untouched.
func (o *Order) Transition(to OrderStatus, actor string, at time.Time) (StatusChange, error) {
	if !to.Valid() {
		return StatusChange{}, apperr.Validation("unknown order status %q", to)
	}
	if !CanTransitionTo(o.Status, to) {
		return StatusChange{}, &apperr.TransitionError{From: o.Status.String(), To: to.String()}
	}

	change := StatusChange{From: o.Status, To: to, Actor: actor, At: at}
	o.Status = to
	o.UpdatedAt = at
	o.History = append(o.History, change)
	return change, nil
}

// TransitionFrom is Transition guarded by the status the caller last observed. When the order
// has moved on since then the change is rejected against the current status.
func (o *Order) TransitionFrom(expected, to OrderStatus, actor string, at time.Time) (StatusChange, error) {
	if o.Status != expected {
		return StatusChange{}, &apperr.TransitionError{From: o.Status.String(), To: to.String()}
	}
	return o.Transition(to, actor, at)
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = make([]LineItem, len(o.Items))
	for i, li := range o.Items {
		li.Selection = cloneSelection(li.Selection)
		cp.Items[i] = li
	}
	cp.History = append([]StatusChange(nil), o.History...)
	if cp.History == nil {
		cp.History = []StatusChange{}
	}
	return &cp
}

func cloneSelection(s map[string]string) map[string]string {
	if s == nil {
		return nil
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
