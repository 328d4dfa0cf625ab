package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	mu        sync.Mutex
	events    []domain.Event
	published map[string]bool
	markErr   error
}

func newFakeOutbox(n int) *fakeOutbox {
	o := &fakeOutbox{published: make(map[string]bool)}
	id := uuid.New()
	for i := 0; i < n; i++ {
		o.events = append(o.events, domain.Event{ID: fmt.Sprintf("ev-%04d", i), Type: domain.EventOrderCreated, OrderID: id})
	}
	return o
}

func (o *fakeOutbox) Pending(_ context.Context, limit int) ([]domain.Event, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.Event
	for _, ev := range o.events {
		if !o.published[ev.ID] && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (o *fakeOutbox) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.markErr != nil {
		return o.markErr
	}
	for _, id := range ids {
		o.published[id] = true
	}
	return nil
}

type fakePublisher struct {
	mu    sync.Mutex
	sent  []domain.Event
	calls int
	err   error
}

func (p *fakePublisher) PublishEvents(_ context.Context, events []domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, events...)
	return nil
}

func TestRelayFlush(t *testing.T) {
	outbox := newFakeOutbox(3)
	pub := &fakePublisher{}
	r := NewRelay(outbox, pub, time.Second)

	n, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, pub.sent, 3)

	n, err = r.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, pub.calls)
}

func TestRelayFlush_PublishFailureKeepsEventsPending(t *testing.T) {
	outbox := newFakeOutbox(2)
	pub := &fakePublisher{err: errors.New("broker down")}
	r := NewRelay(outbox, pub, time.Second)

	_, err := r.Flush(context.Background())
	require.Error(t, err)

	pending, _ := outbox.Pending(context.Background(), relayBatch)
	assert.Len(t, pending, 2)
}

func TestRelayFlush_MarkFailureRepublishes(t *testing.T) {
	outbox := newFakeOutbox(1)
	outbox.markErr = errors.New("db gone")
	pub := &fakePublisher{}
	r := NewRelay(outbox, pub, time.Second)

	_, err := r.Flush(context.Background())
	require.Error(t, err)

	outbox.markErr = nil
	_, err = r.Flush(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.sent, 2, "at least once delivery resends the batch")
}

func TestRelayRun_DrainsFullBatches(t *testing.T) {
	outbox := newFakeOutbox(relayBatch*2 + 5)
	pub := &fakePublisher{}
	r := NewRelay(outbox, pub, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.sent) == relayBatch*2+5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
