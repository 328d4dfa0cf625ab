package idempotency

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore_Lifecycle(t *testing.T) {
	store := NewRedisStore(redisClient(t))
	ctx := context.Background()
	key := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = store.Release(ctx, key) })

	state, _, err := store.Reserve(ctx, key, "fp-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationNew, state)

	state, _, err = store.Reserve(ctx, key, "fp-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationPending, state)

	_, _, err = store.Reserve(ctx, key, "fp-2", time.Minute)
	assert.ErrorIs(t, err, ErrFingerprintMismatch)

	require.NoError(t, store.Save(ctx, key, Record{
		Fingerprint: "fp-1",
		Status:      http.StatusCreated,
		Headers:     http.Header{"Content-Type": {"application/json"}},
		Body:        []byte(`{"ok":true}`),
	}, time.Minute))

	state, rec, err := store.Reserve(ctx, key, "fp-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationCompleted, state)
	assert.Equal(t, http.StatusCreated, rec.Status)
	assert.Equal(t, `{"ok":true}`, string(rec.Body))
	assert.Equal(t, "application/json", rec.Headers.Get("Content-Type"))

	require.NoError(t, store.Release(ctx, key))
	state, _, err = store.Reserve(ctx, key, "fp-2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationNew, state)
}
