package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "idem:"
)

type ReservationState int

const (
	ReservationNew ReservationState = iota
	ReservationCompleted
	ReservationPending
)

// ErrFingerprintMismatch means the key was already used for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for a different request")

// Record is what the store keeps per key.
type Record struct {
	Fingerprint string      `json:"fingerprint"`
	Completed   bool        `json:"completed"`
	Status      int         `json:"status,omitempty"`
	Headers     http.Header `json:"headers,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

type Store interface {
	// Reserve claims key for fingerprint. It returns the stored record when
	// the key was already claimed.
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (ReservationState, Record, error)
	Save(ctx context.Context, key string, rec Record, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (ReservationState, Record, error) {
	pending, err := json.Marshal(Record{Fingerprint: fingerprint})
	if err != nil {
		return 0, Record{}, err
	}
	ok, err := s.client.SetNX(ctx, redisKey(key), pending, ttl).Result()
	if err != nil {
		return 0, Record{}, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return ReservationNew, Record{}, nil
	}

	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			return s.Reserve(ctx, key, fingerprint, ttl)
		}
		return 0, Record{}, fmt.Errorf("load idempotency key: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, Record{}, fmt.Errorf("decode idempotency record: %w", err)
	}
	if rec.Fingerprint != fingerprint {
		return 0, Record{}, ErrFingerprintMismatch
	}
	if rec.Completed {
		return ReservationCompleted, rec, nil
	}
	return ReservationPending, rec, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	rec.Completed = true
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(key), raw, ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKey(key)).Err()
}

func redisKey(key string) string {
	return keyPrefix + key
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
