package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tmcfarland/authgate/internal/models"
)

const stateKeyPrefix = "authgate:state:"

// casRetries bounds optimistic retry on contended keys before giving up.
// Sized to absorb a full burst of simultaneous failures against one email.
const casRetries = 32

// RedisStore keeps rate limit state in Redis as JSON payloads with a
// retention TTL, for deployments where the gate runs on multiple instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a RedisStore with the given retention TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func stateKey(email string) string {
	return stateKeyPrefix + email
}

// Get returns the state for an email, or models.ErrNotFound when the key is
// absent or already reaped by its TTL.
func (s *RedisStore) Get(ctx context.Context, email string) (*models.RateLimitState, error) {
	data, err := s.client.Get(ctx, stateKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	state, err := decodeState(data)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// Update applies a mutation under an optimistic WATCH transaction. The
// callback receives the current state, or a zero state when the key is
// absent, and its result is written back with a fresh retention TTL.
// Contended writes retry; losing every retry surfaces as an update conflict.
func (s *RedisStore) Update(ctx context.Context, email string, apply func(models.RateLimitState) models.RateLimitState) (models.RateLimitState, error) {
	key := stateKey(email)

	for i := 0; i < casRetries; i++ {
		var next models.RateLimitState

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current := models.RateLimitState{}

			data, err := tx.Get(ctx, key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil {
				current, err = decodeState(data)
				if err != nil {
					return err
				}
			}

			next = apply(current)
			next.Email = email
			next.UpdatedAt = s.now()

			payload, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to encode state: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, s.retention(next))
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return models.RateLimitState{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		return next, nil
	}

	return models.RateLimitState{}, models.ErrUpdateConflict
}

// Delete removes the state for an email. Missing keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, stateKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteExpired is a no-op; Redis reaps expired keys through their TTLs.
func (s *RedisStore) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// HealthCheck verifies the Redis connection.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// retention keeps state alive for the configured TTL, extended past the end
// of any active lockout so attempt counts survive into the next streak.
func (s *RedisStore) retention(state models.RateLimitState) time.Duration {
	if state.LockoutUntil != nil {
		if until := state.LockoutUntil.Sub(s.now()); until > 0 {
			return until + s.ttl
		}
	}
	return s.ttl
}

func decodeState(data []byte) (models.RateLimitState, error) {
	var state models.RateLimitState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.RateLimitState{}, fmt.Errorf("%w: corrupt state payload: %v", models.ErrStoreUnavailable, err)
	}
	return state, nil
}
