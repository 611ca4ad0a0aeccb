// Package publisher relays stored order lifecycle events to Kafka.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(log *zap.Logger, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  ordersrpc.Topic,
		Balancer:               &kafka.Hash{}, // same order, same partition
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, log: log.Named("publisher")}
}

// Publish writes one stored event, keyed by its order id.
func (p *KafkaPublisher) Publish(ctx context.Context, ev *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(ev.AggregateID.String()),
		Value: ev.Payload, // already JSON from the store
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event for order %s: %w", ev.EventType, ev.AggregateID, err)
	}
	p.log.Debug("event published",
		zap.String("event_type", ev.EventType),
		zap.Stringer("event_id", ev.ID),
		zap.Stringer("order_id", ev.AggregateID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
