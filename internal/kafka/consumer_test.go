package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinalizer struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeFinalizer) FinalizeCouponUsage(_ context.Context, id uuid.UUID) (bool, error) {
	f.calls = append(f.calls, id)
	return f.err == nil, f.err
}

func message(t *testing.T, ev domain.Event) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(ev.OrderID.String()), Value: b}
}

func TestHandleMessage(t *testing.T) {
	id := uuid.New()
	withCoupon := domain.Event{Type: domain.EventOrderCreated, OrderID: id, Payload: map[string]any{"coupon_code": "SAVE50"}}
	noCoupon := domain.Event{Type: domain.EventOrderCreated, OrderID: id, Payload: map[string]any{"buyer_id": "b"}}
	statusEvent := domain.Event{Type: domain.EventGroupStatusChanged, OrderID: id, Payload: map[string]any{"coupon_code": "X"}}

	t.Run("finalizes coupon orders", func(t *testing.T) {
		f := &fakeFinalizer{}
		require.NoError(t, handleMessage(context.Background(), f, message(t, withCoupon)))
		assert.Equal(t, []uuid.UUID{id}, f.calls)
	})

	t.Run("ignores other events", func(t *testing.T) {
		f := &fakeFinalizer{}
		require.NoError(t, handleMessage(context.Background(), f, message(t, noCoupon)))
		require.NoError(t, handleMessage(context.Background(), f, message(t, statusEvent)))
		require.NoError(t, handleMessage(context.Background(), f, kafka.Message{Value: []byte("{not json")}))
		assert.Empty(t, f.calls)
	})

	t.Run("skips permanent failures", func(t *testing.T) {
		for _, err := range []error{
			&domain.CouponRejectedError{Reason: domain.ReasonUsageLimitReached, Message: "limit"},
			fmt.Errorf("%w: order", domain.ErrNotFound),
		} {
			f := &fakeFinalizer{err: err}
			assert.NoError(t, handleMessage(context.Background(), f, message(t, withCoupon)))
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		f := &fakeFinalizer{err: errors.New("connection refused")}
		assert.Error(t, handleMessage(context.Background(), f, message(t, withCoupon)))
	})
}

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

type flakyFinalizer struct {
	calls    []uuid.UUID
	failures int
}

func (f *flakyFinalizer) FinalizeCouponUsage(_ context.Context, id uuid.UUID) (bool, error) {
	f.calls = append(f.calls, id)
	if f.failures > 0 {
		f.failures--
		return false, errors.New("connection reset")
	}
	return true, nil
}

func TestConsumeRetriesSameMessage(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{cancel: cancel, queue: []kafka.Message{
		message(t, domain.Event{Type: domain.EventOrderCreated, OrderID: first, Payload: map[string]any{"coupon_code": "SAVE50"}}),
		message(t, domain.Event{Type: domain.EventOrderCreated, OrderID: second, Payload: map[string]any{"coupon_code": "SAVE50"}}),
	}}
	f := &flakyFinalizer{failures: 1}

	consume(ctx, r, f, time.Millisecond)

	assert.Equal(t, []uuid.UUID{first, first, second}, f.calls)
	require.Len(t, r.committed, 2)
	assert.Equal(t, first.String(), string(r.committed[0].Key))
	assert.Equal(t, second.String(), string(r.committed[1].Key))
}

func TestConsumeStopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{cancel: cancel, queue: []kafka.Message{
		message(t, domain.Event{Type: domain.EventOrderCreated, OrderID: uuid.New(), Payload: map[string]any{"coupon_code": "SAVE50"}}),
	}}
	f := &flakyFinalizer{failures: 1 << 30}

	done := make(chan struct{})
	go func() {
		consume(ctx, r, f, time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not return after cancel")
	}
	assert.Empty(t, r.committed)
}
