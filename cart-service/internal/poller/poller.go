// Package poller consumes order lifecycle events and applies their catalog side effects.
package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/catalog"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
)

const (
	groupID      = "cart-service-stock"
	retryBackoff = time.Second
)

type StockStore interface {
	ApplyStockEvent(ctx context.Context, eventID, orderID string, items []catalog.StockItem) (bool, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Poller decrements catalog stock when an order is confirmed.
type Poller struct {
	stock  StockStore
	reader messageReader
	log    *zap.Logger
}

func NewPoller(stock StockStore, log *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    ordersrpc.Topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{stock: stock, reader: reader, log: log.Named("poller")}
}

// Run consumes until ctx is cancelled. A message is committed only after its side effect is
// stored; failures are retried with a fixed backoff.
func (p *Poller) Run(ctx context.Context) {
	for {
		m, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("fetch message failed", zap.Error(err))
			if !sleep(ctx, retryBackoff) {
				return
			}
			continue
		}

		for {
			err := p.handleMessage(ctx, m)
			if err == nil {
				break
			}
			p.log.Error("handle order event failed",
				zap.String("key", string(m.Key)),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			if !sleep(ctx, retryBackoff) {
				return
			}
		}

		if err := p.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			p.log.Warn("commit message failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", zap.Error(err))
	}
}

// handleMessage returns an error only for failures worth retrying. Malformed events are logged
// and dropped.
func (p *Poller) handleMessage(ctx context.Context, m kafka.Message) error {
	if eventType(m) != ordersrpc.EventStatusChanged {
		return nil
	}

	var ev ordersrpc.OrderEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.log.Warn("dropping malformed order event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if ev.Status != "confirmed" || ev.OrderID == "" {
		return nil
	}

	items := make([]catalog.StockItem, 0, len(ev.Items))
	for _, it := range ev.Items {
		items = append(items, catalog.StockItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	// an order is confirmed at most once, so order id and status identify the side effect even
	// when the event itself is published twice
	applied, err := p.stock.ApplyStockEvent(ctx, ev.OrderID+":"+ev.Status, ev.OrderID, items)
	if err != nil {
		return err
	}
	if !applied {
		p.log.Debug("stock already applied", zap.String("order_id", ev.OrderID))
		return nil
	}
	p.log.Info("stock decremented", zap.String("order_id", ev.OrderID), zap.Int("items", len(items)))
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
