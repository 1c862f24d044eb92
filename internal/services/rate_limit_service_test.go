package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tmcfarland/authgate/internal/models"
	"github.com/tmcfarland/authgate/internal/services"
	"github.com/tmcfarland/authgate/internal/store"
)

func testConfig() services.RateLimitConfig {
	return services.RateLimitConfig{
		MaxFailedAttempts: 5,
		BaseLockout:       1 * time.Minute,
		MaxLockout:        1 * time.Hour,
		AttemptTTL:        2 * time.Hour,
	}
}

// newClockedService returns a service over an in-memory store whose clock is
// frozen at a fixed instant. Advance the returned pointer to move time.
func newClockedService(config services.RateLimitConfig) (*services.RateLimitService, *store.MemoryStore, *time.Time) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	memory := store.NewMemoryStore(24 * time.Hour)

	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	service := services.NewRateLimitService(memory, config, logger)
	service.SetClock(func() time.Time { return current })

	return service, memory, &current
}

func TestRateLimitServiceCheck_AllowsFreshEmail(t *testing.T) {
	service, _, _ := newClockedService(testConfig())

	decision := service.Check(context.Background(), "fresh@example.com")

	assert.True(t, decision.Allowed)
	assert.Zero(t, decision.Attempts)
	assert.Zero(t, decision.RemainingSeconds)
	assert.Zero(t, decision.LockoutMinutes)
}

func TestRateLimitServiceCheck_AllowsUnderThreshold(t *testing.T) {
	service, _, _ := newClockedService(testConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		service.Record(ctx, "user@example.com", false)
	}

	decision := service.Check(ctx, "user@example.com")

	assert.True(t, decision.Allowed)
	assert.Equal(t, 4, decision.Attempts)
}

func TestRateLimitServiceCheck_LocksAfterThresholdFailures(t *testing.T) {
	service, _, _ := newClockedService(testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		service.Record(ctx, "user@example.com", false)
	}

	decision := service.Check(ctx, "user@example.com")

	assert.False(t, decision.Allowed)
	assert.Equal(t, 5, decision.Attempts)
	assert.Equal(t, 1, decision.LockoutMinutes)
	assert.Equal(t, 60, decision.RemainingSeconds)
}

func TestRateLimitServiceCheck_RemainingSecondsStaysPositive(t *testing.T) {
	service, _, clock := newClockedService(testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		service.Record(ctx, "user@example.com", false)
	}

	// 100ms of lockout left rounds up, never down to zero.
	*clock = clock.Add(59*time.Second + 900*time.Millisecond)

	decision := service.Check(ctx, "user@example.com")

	assert.False(t, decision.Allowed)
	assert.Equal(t, 1, decision.RemainingSeconds)
	assert.Equal(t, 1, decision.LockoutMinutes)
}

func TestRateLimitServiceCheck_LockoutExpiresLazily(t *testing.T) {
	service, _, clock := newClockedService(testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		service.Record(ctx, "user@example.com", false)
	}

	*clock = clock.Add(61 * time.Second)

	decision := service.Check(ctx, "user@example.com")

	assert.True(t, decision.Allowed)
	// The block lifts but the streak survives for escalation.
	assert.Equal(t, 5, decision.Attempts)
}

func TestRateLimitServiceRecord_SuccessResetsState(t *testing.T) {
	service, memory, _ := newClockedService(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		service.Record(ctx, "user@example.com", false)
	}
	service.Record(ctx, "user@example.com", true)

	decision := service.Check(ctx, "user@example.com")
	assert.True(t, decision.Allowed)
	assert.Zero(t, decision.Attempts)

	_, err := memory.Get(ctx, "user@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRateLimitService_EscalatesAfterExpiredLockout(t *testing.T) {
	service, _, clock := newClockedService(testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		service.Record(ctx, "user@example.com", false)
	}

	// Wait out the first lockout, then fail again.
	*clock = clock.Add(2 * time.Minute)
	service.Record(ctx, "user@example.com", false)

	decision := service.Check(ctx, "user@example.com")

	assert.False(t, decision.Allowed)
	assert.Equal(t, 6, decision.Attempts)
	assert.Equal(t, 2, decision.LockoutMinutes)
	assert.Equal(t, 120, decision.RemainingSeconds)
}

func TestRateLimitService_LockoutCappedAtMax(t *testing.T) {
	config := testConfig()
	config.MaxLockout = 4 * time.Minute
	service, _, _ := newClockedService(config)
	ctx := context.Background()

	// Eight straight failures would escalate to 8 minutes uncapped.
	for i := 0; i < 8; i++ {
		service.Record(ctx, "user@example.com", false)
	}

	decision := service.Check(ctx, "user@example.com")

	assert.False(t, decision.Allowed)
	assert.Equal(t, 4, decision.LockoutMinutes)
	assert.Equal(t, 240, decision.RemainingSeconds)
}

func TestRateLimitServiceCheck_FailsOpenOnStoreError(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	broken := &services.MockStateStore{
		GetFunc: func(ctx context.Context, email string) (*models.RateLimitState, error) {
			return nil, models.ErrStoreUnavailable
		},
	}
	service := services.NewRateLimitService(broken, testConfig(), logger)

	decision := service.Check(context.Background(), "user@example.com")

	assert.True(t, decision.Allowed)
	assert.Zero(t, decision.Attempts)
}

func TestRateLimitServiceRecord_DropsStoreErrorSilently(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	broken := &services.MockStateStore{
		UpdateFunc: func(ctx context.Context, email string, apply func(models.RateLimitState) models.RateLimitState) (models.RateLimitState, error) {
			return models.RateLimitState{}, errors.New("connection refused")
		},
		DeleteFunc: func(ctx context.Context, email string) error {
			return errors.New("connection refused")
		},
	}
	service := services.NewRateLimitService(broken, testConfig(), logger)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		service.Record(ctx, "user@example.com", false)
		service.Record(ctx, "user@example.com", true)
	})
}

func TestRateLimitServiceRecord_ConcurrentFailuresAllCount(t *testing.T) {
	service, memory, _ := newClockedService(testConfig())
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			service.Record(ctx, "user@example.com", false)
		}()
	}
	wg.Wait()

	state, err := memory.Get(ctx, "user@example.com")
	assert.NoError(t, err)
	assert.Equal(t, workers, state.Attempts)
}
