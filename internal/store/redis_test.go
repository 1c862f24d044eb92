package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/tmcfarland/authgate/internal/models"
	"github.com/tmcfarland/authgate/internal/store"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisStoreGet_ReturnsNotFoundForFreshKey(t *testing.T) {
	_, client := newTestRedis(t)
	s := store.NewRedisStore(client, time.Hour)

	state, err := s.Get(context.Background(), "fresh@example.com")

	assert.Nil(t, state)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedisStoreUpdate_RoundTripsState(t *testing.T) {
	_, client := newTestRedis(t)
	s := store.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	lockout := time.Now().Add(5 * time.Minute).UTC()
	written, err := s.Update(ctx, "user@example.com", func(cur models.RateLimitState) models.RateLimitState {
		cur.Attempts = 5
		cur.WindowStart = time.Now().UTC()
		cur.LockoutUntil = &lockout
		return cur
	})
	assert.NoError(t, err)
	assert.Equal(t, 5, written.Attempts)

	read, err := s.Get(ctx, "user@example.com")
	assert.NoError(t, err)
	assert.Equal(t, 5, read.Attempts)
	assert.Equal(t, "user@example.com", read.Email)
	if assert.NotNil(t, read.LockoutUntil) {
		assert.WithinDuration(t, lockout, *read.LockoutUntil, time.Second)
	}
}

func TestRedisStoreUpdate_IncrementsAcrossCalls(t *testing.T) {
	_, client := newTestRedis(t)
	s := store.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Update(ctx, "user@example.com", func(cur models.RateLimitState) models.RateLimitState {
			cur.Attempts++
			return cur
		})
		assert.NoError(t, err)
	}

	state, err := s.Get(ctx, "user@example.com")
	assert.NoError(t, err)
	assert.Equal(t, 3, state.Attempts)
}

func TestRedisStoreUpdate_ConcurrentIncrementsAllLand(t *testing.T) {
	_, client := newTestRedis(t)
	s := store.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "user@example.com", func(cur models.RateLimitState) models.RateLimitState {
				cur.Attempts++
				return cur
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := s.Get(ctx, "user@example.com")
	assert.NoError(t, err)
	assert.Equal(t, workers, state.Attempts)
}

func TestRedisStoreDelete_RemovesKey(t *testing.T) {
	_, client := newTestRedis(t)
	s := store.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, err := s.Update(ctx, "user@example.com", func(cur models.RateLimitState) models.RateLimitState {
		cur.Attempts = 1
		return cur
	})
	assert.NoError(t, err)

	assert.NoError(t, s.Delete(ctx, "user@example.com"))

	_, err = s.Get(ctx, "user@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedisStoreUpdate_StateExpiresAfterRetention(t *testing.T) {
	mr, client := newTestRedis(t)
	s := store.NewRedisStore(client, time.Minute)
	ctx := context.Background()

	_, err := s.Update(ctx, "user@example.com", func(cur models.RateLimitState) models.RateLimitState {
		cur.Attempts = 2
		return cur
	})
	assert.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = s.Get(ctx, "user@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedisStoreUpdate_LockoutExtendsRetention(t *testing.T) {
	mr, client := newTestRedis(t)
	s := store.NewRedisStore(client, time.Minute)
	ctx := context.Background()

	lockout := time.Now().Add(10 * time.Minute)
	_, err := s.Update(ctx, "user@example.com", func(cur models.RateLimitState) models.RateLimitState {
		cur.Attempts = 5
		cur.LockoutUntil = &lockout
		return cur
	})
	assert.NoError(t, err)

	// Past the base TTL but inside the lockout horizon.
	mr.FastForward(5 * time.Minute)

	state, err := s.Get(ctx, "user@example.com")
	assert.NoError(t, err)
	assert.Equal(t, 5, state.Attempts)
}
