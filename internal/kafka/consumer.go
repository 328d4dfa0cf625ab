package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// CouponFinalizer records coupon usage for an order at most once.
type CouponFinalizer interface {
	FinalizeCouponUsage(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// fetchCommitter is the part of *kafka.Reader the finalize loop needs.
type fetchCommitter interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

const consumerBackoff = 300 * time.Millisecond

// StartFinalizeConsumer re-drives coupon finalization from order.created
// events. Finalization is idempotent per order, so replays are harmless.
func StartFinalizeConsumer(ctx context.Context, svc CouponFinalizer, cfg ConsumerConfig) *kafka.Reader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.Brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go func() {
		defer r.Close()
		consume(ctx, r, svc, consumerBackoff)
	}()
	return r
}

// consume handles messages one at a time. A message that fails transiently is
// retried until it succeeds or ctx ends; the next one is fetched only after it
// has been committed.
func consume(ctx context.Context, r fetchCommitter, svc CouponFinalizer, backoff time.Duration) {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka fetch error", "err", err)
			if !sleep(ctx, backoff) {
				return
			}
			continue
		}

		for handleMessage(ctx, svc, m) != nil {
			if !sleep(ctx, backoff) {
				return
			}
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka commit failed", "offset", m.Offset, "err", err)
		}
	}
}

// sleep waits for d and reports false when ctx ended first.
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

// handleMessage returns an error only when the message should be retried.
func handleMessage(ctx context.Context, svc CouponFinalizer, m kafka.Message) error {
	var ev domain.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		logger.Warn("kafka invalid json, skipping", "offset", m.Offset, "err", err)
		return nil
	}
	if ev.Type != domain.EventOrderCreated {
		return nil
	}
	if _, ok := ev.Payload["coupon_code"]; !ok {
		return nil
	}
	applied, err := svc.FinalizeCouponUsage(ctx, ev.OrderID)
	if err != nil {
		if _, rejected := domain.CouponRejection(err); rejected || errors.Is(err, domain.ErrNotFound) {
			logger.Warn("coupon finalize rejected", "order_id", ev.OrderID, "err", err)
			return nil
		}
		logger.Warn("coupon finalize failed, will retry", "order_id", ev.OrderID, "err", err)
		return err
	}
	if applied {
		logger.Info("coupon usage recovered from event", "order_id", ev.OrderID)
	}
	return nil
}
