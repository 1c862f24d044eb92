package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmcfarland/authgate/internal/models"
)

func TestStateRepository_ConcurrentUpdatesSerialize(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	states, _ := InitializeRepositories(testDB.DB, 2*time.Hour)
	email := TestEmail("concurrent")

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := states.Update(ctx, email, func(cur models.RateLimitState) models.RateLimitState {
				cur.Attempts++
				return cur
			})
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	state, err := states.Get(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, workers, state.Attempts, "every concurrent increment must be counted")
}

func TestStateRepository_UpdateSeesCommittedState(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	states, _ := InitializeRepositories(testDB.DB, 2*time.Hour)
	email := TestEmail("readback")

	until := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Millisecond)
	_, err := states.Update(ctx, email, func(cur models.RateLimitState) models.RateLimitState {
		cur.Attempts = 5
		cur.WindowStart = time.Now().UTC()
		cur.LockoutUntil = &until
		return cur
	})
	require.NoError(t, err)

	state, err := states.Get(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 5, state.Attempts)
	require.NotNil(t, state.LockoutUntil)
	assert.WithinDuration(t, until, *state.LockoutUntil, time.Second)
}

func TestStateRepository_DeleteExpiredPreservesLockedRows(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	states, _ := InitializeRepositories(testDB.DB, 2*time.Hour)

	staleEmail := TestEmail("stale")
	lockedEmail := TestEmail("locked")

	require.NoError(t, SeedStaleState(ctx, testDB.Pool, staleEmail, 3, 3*time.Hour))
	require.NoError(t, SeedLockedState(ctx, testDB.Pool, lockedEmail, 7, 10*time.Minute))

	removed, err := states.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = states.Get(ctx, staleEmail)
	assert.ErrorIs(t, err, models.ErrNotFound)

	state, err := states.Get(ctx, lockedEmail)
	require.NoError(t, err)
	assert.Equal(t, 7, state.Attempts, "locked rows must survive the sweep")
}

func TestStateRepository_GetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	states, _ := InitializeRepositories(testDB.DB, 2*time.Hour)

	_, err := states.Get(ctx, TestEmail("missing"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAttemptLogRepository_AppendAndExpire(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	_, attempts := InitializeRepositories(testDB.DB, 2*time.Hour)

	now := time.Now().UTC()
	expired := &models.AttemptRecord{
		ID:             uuid.New().String(),
		Email:          TestEmail("old"),
		ClientID:       "fp-expired",
		IdentitySource: models.SourceFingerprint,
		Success:        false,
		AttemptedAt:    now.Add(-3 * time.Hour),
		ExpiresAt:      now.Add(-1 * time.Hour),
	}
	fresh := &models.AttemptRecord{
		ID:             uuid.New().String(),
		Email:          TestEmail("new"),
		ClientID:       "fp-fresh",
		IdentitySource: models.SourceFingerprint,
		Success:        true,
		AttemptedAt:    now,
		ExpiresAt:      now.Add(2 * time.Hour),
	}

	require.NoError(t, attempts.Append(ctx, expired))
	require.NoError(t, attempts.Append(ctx, fresh))

	removed, err := attempts.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	count, err := CountAttemptRows(ctx, testDB.Pool, fresh.Email)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "unexpired attempts must survive the sweep")
}
