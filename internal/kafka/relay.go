package kafka

import (
	"context"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/logger"
)

const relayBatch = 100

type Outbox interface {
	Pending(ctx context.Context, limit int) ([]domain.Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

type Publisher interface {
	PublishEvents(ctx context.Context, events []domain.Event) error
}

// Relay drains the outbox to Kafka. Delivery is at least once: a crash between
// publish and mark republishes the batch.
type Relay struct {
	outbox   Outbox
	pub      Publisher
	interval time.Duration
}

func NewRelay(outbox Outbox, pub Publisher, interval time.Duration) *Relay {
	return &Relay{outbox: outbox, pub: pub, interval: interval}
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	logger.Info("outbox relay starting", "interval", r.interval)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("outbox flush failed", "err", err)
				break
			}
			if n < relayBatch {
				break
			}
		}
		select {
		case <-ctx.Done():
			logger.Info("outbox relay stopped")
			return
		case <-t.C:
		}
	}
}

// Flush publishes one batch and returns how many events went out.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.outbox.Pending(ctx, relayBatch)
	if err != nil || len(events) == 0 {
		return 0, err
	}
	if err := r.pub.PublishEvents(ctx, events); err != nil {
		return 0, err
	}
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
		return 0, err
	}
	logger.Debug("outbox events published", "count", len(events))
	return len(events), nil
}
