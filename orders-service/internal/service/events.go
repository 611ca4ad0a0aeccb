package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
)

func placedEvent(o *domain.Order) (*domain.OutboxEvent, error) {
	return newOutboxEvent(ordersrpc.EventOrderPlaced, o, domain.StatusChange{
		To:    o.Status,
		Actor: o.CustomerID,
		At:    o.CreatedAt,
	})
}

func statusChangedEvent(o *domain.Order, change domain.StatusChange) (*domain.OutboxEvent, error) {
	return newOutboxEvent(ordersrpc.EventStatusChanged, o, change)
}

func newOutboxEvent(eventType string, o *domain.Order, change domain.StatusChange) (*domain.OutboxEvent, error) {
	items := make([]ordersrpc.EventItem, len(o.Items))
	for i, li := range o.Items {
		items[i] = ordersrpc.EventItem{ProductID: li.ProductID, Quantity: li.Quantity}
	}
	ev := ordersrpc.OrderEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		OrderID:     o.ID.String(),
		CustomerID:  o.CustomerID,
		FromStatus:  string(change.From),
		Status:      string(change.To),
		Actor:       change.Actor,
		Items:       items,
		TotalAmount: o.TotalAmount,
		OccurredAt:  change.At,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &domain.OutboxEvent{
		ID:          uuid.MustParse(ev.EventID),
		AggregateID: o.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   change.At,
	}, nil
}
