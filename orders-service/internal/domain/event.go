package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a lifecycle event stored in the same write as the change that produced it.
// The publisher relays pending events to the broker and marks them published.
type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID uuid.UUID // order id, used as the message key
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
