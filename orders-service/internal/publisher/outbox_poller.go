package publisher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/domain"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/repository"
)

const outboxBatchSize = 100

type eventPublisher interface {
	Publish(ctx context.Context, ev *domain.OutboxEvent) error
}

// OutboxPoller moves committed events from the store to the broker. Delivery is at least once:
// an event whose mark fails is published again on the next tick.
type OutboxPoller struct {
	store     repository.OutboxStore
	publisher eventPublisher
	interval  time.Duration
	log       *zap.Logger
}

func NewOutboxPoller(store repository.OutboxStore, publisher eventPublisher, interval time.Duration, log *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		store:     store,
		publisher: publisher,
		interval:  interval,
		log:       log.Named("outbox"),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents publishes pending events in write order and returns how many were
// relayed. It stops at the first failure so later events of the same order never overtake it.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.store.UnpublishedEvents(ctx, outboxBatchSize)
	if err != nil {
		p.log.Error("fetch unpublished events failed", zap.Error(err))
		return 0
	}

	var relayed int
	for _, ev := range events {
		if err := p.publisher.Publish(ctx, ev); err != nil {
			p.log.Warn("publish event failed, will retry",
				zap.Stringer("event_id", ev.ID),
				zap.String("event_type", ev.EventType),
				zap.Error(err))
			return relayed
		}
		if err := p.store.MarkEventPublished(ctx, ev.ID); err != nil {
			p.log.Error("mark event published failed", zap.Stringer("event_id", ev.ID), zap.Error(err))
			return relayed
		}
		relayed++
	}
	return relayed
}
