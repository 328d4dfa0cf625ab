package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository exposes the events written alongside order changes.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(p *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: p}
}

// Pending returns unpublished events oldest first. ULIDs sort by creation time.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, order_id, payload, occurred_at
		FROM dealer.order_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			ev      domain.Event
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.OrderID, &payload, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE dealer.order_events SET published_at = $2
		WHERE id = ANY($1) AND published_at IS NULL`, ids, at)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}
