package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
)

func dosaItem(qty int) LineItem {
	unit := decimal.NewFromInt(100)
	return LineItem{
		ProductID:   "p-masala-dosa",
		ProductName: "Masala Dosa",
		Quantity:    qty,
		Selection:   map[string]string{"type": "masala"},
		UnitPrice:   unit,
		LineTotal:   unit.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func homeAddress() Address {
	return Address{Name: "Asha", Phone: "9000000000", Street: "12 MG Road", City: "Bengaluru", Pincode: "560001"}
}

func TestNewOrder(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []LineItem{dosaItem(3)}

	o, err := NewOrder("cust-1", items, homeAddress(), PaymentCashOnDelivery, "key-1", now)
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPlaced, o.Status)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "INR", o.Currency)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, "key-1", o.IdempotencyKey)
	assert.Equal(t, now, o.CreatedAt)
	assert.Empty(t, o.History)

	items[0].Quantity = 99
	items[0].Selection["type"] = "plain"
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, "masala", o.Items[0].Selection["type"])
}

func TestNewOrder_Validation(t *testing.T) {
	bad := dosaItem(2)
	bad.LineTotal = decimal.NewFromInt(150)
	zero := dosaItem(1)
	zero.Quantity = 0
	zero.LineTotal = decimal.Zero

	cases := []struct {
		name    string
		items   []LineItem
		address Address
		payment PaymentMethod
	}{
		{"no items", nil, homeAddress(), PaymentCashOnDelivery},
		{"line total mismatch", []LineItem{bad}, homeAddress(), PaymentCashOnDelivery},
		{"zero quantity", []LineItem{zero}, homeAddress(), PaymentCashOnDelivery},
		{"missing pincode", []LineItem{dosaItem(1)}, Address{Street: "x", City: "y"}, PaymentCashOnDelivery},
		{"card payment", []LineItem{dosaItem(1)}, homeAddress(), PaymentMethod("card")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrder("cust-1", tc.items, tc.address, tc.payment, "", time.Now())
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestAddress_ValidateListsMissingFields(t *testing.T) {
	err := Address{City: "Pune"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "street, pincode")
}

func TestParsePaymentMethod(t *testing.T) {
	for _, in := range []string{"cod", "COD", "cash_on_delivery", ""} {
		pm, err := ParsePaymentMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, PaymentCashOnDelivery, pm)
	}
	_, err := ParsePaymentMethod("upi")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestOrderScenario_SkippingStepsFails(t *testing.T) {
	o, err := NewOrder("cust-1", []LineItem{dosaItem(3)}, homeAddress(), PaymentCashOnDelivery, "", time.Now())
	require.NoError(t, err)
	require.True(t, o.TotalAmount.Equal(decimal.NewFromInt(300)))

	_, err = o.Transition(StatusConfirmed, "admin-1", time.Now())
	require.NoError(t, err)

	_, err = o.Transition(StatusDispatched, "admin-1", time.Now())
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Len(t, o.History, 1)
}

func TestTransitionFrom_RejectsStaleObservation(t *testing.T) {
	o, err := NewOrder("cust-1", []LineItem{dosaItem(1)}, homeAddress(), PaymentCashOnDelivery, "", time.Now())
	require.NoError(t, err)
	for _, s := range []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady, StatusDispatched} {
		_, err := o.Transition(s, "admin-1", time.Now())
		require.NoError(t, err)
	}

	// cancelling is legal from dispatched, but the caller decided while the order was ready
	_, err = o.TransitionFrom(StatusReady, StatusCancelled, "admin-2", time.Now())

	var te *apperr.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dispatched", te.From)
	assert.Equal(t, "cancelled", te.To)
	assert.Equal(t, StatusDispatched, o.Status)
	assert.Len(t, o.History, 4)

	change, err := o.TransitionFrom(StatusDispatched, StatusDelivered, "admin-2", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, change.From)
}

func TestOrder_Clone(t *testing.T) {
	o, err := NewOrder("cust-1", []LineItem{dosaItem(1)}, homeAddress(), PaymentCashOnDelivery, "", time.Now())
	require.NoError(t, err)

	cp := o.Clone()
	_, err = cp.Transition(StatusConfirmed, "admin-1", time.Now())
	require.NoError(t, err)
	cp.Items[0].Selection["type"] = "plain"

	assert.Equal(t, StatusPlaced, o.Status)
	assert.Empty(t, o.History)
	assert.Equal(t, "masala", o.Items[0].Selection["type"])
}

func TestActor(t *testing.T) {
	o := &Order{CustomerID: "cust-1"}

	assert.True(t, Actor{ID: "cust-1", Role: RoleCustomer}.CanRead(o))
	assert.False(t, Actor{ID: "cust-2", Role: RoleCustomer}.CanRead(o))
	assert.True(t, Actor{ID: "ops", Role: RoleAdmin}.CanRead(o))
	assert.False(t, Actor{}.CanRead(&Order{}))
}
