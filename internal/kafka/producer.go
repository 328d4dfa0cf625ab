package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (p *Producer) Close() error {
	return p.w.Close()
}

// PublishEvents writes events keyed by order id so one order's events stay
// on one partition in order.
func (p *Producer) PublishEvents(ctx context.Context, events []domain.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.OrderID.String()),
			Value: b,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
				{Key: "event-type", Value: []byte(ev.Type)},
				{Key: "event-id", Value: []byte(ev.ID)},
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.w.WriteMessages(ctx, msgs...)
}
