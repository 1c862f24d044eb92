package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tmcfarland/authgate/internal/database"
	"github.com/tmcfarland/authgate/internal/models"
)

// StateRepository persists rate limit state in PostgreSQL, one row per email.
type StateRepository struct {
	db        *database.DB
	retention time.Duration
}

// NewStateRepository creates a StateRepository. Unlocked rows untouched for
// longer than retention are eligible for cleanup.
func NewStateRepository(db *database.DB, retention time.Duration) *StateRepository {
	return &StateRepository{db: db, retention: retention}
}

// Get returns the state row for an email, mapped to models.ErrNotFound when
// no row exists.
func (r *StateRepository) Get(ctx context.Context, email string) (*models.RateLimitState, error) {
	query := `
		SELECT email, attempts, window_start, lockout_until, updated_at
		FROM gate_states
		WHERE email = $1
	`

	var state models.RateLimitState
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&state.Email,
		&state.Attempts,
		&state.WindowStart,
		&state.LockoutUntil,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &state, nil
}

// Update applies a mutation under a row lock. The row is seeded first so two
// first-time writers contend on the same lock instead of racing the upsert;
// the callback then sees the committed state, or a zero state for a fresh
// email, and its result is written back. Concurrent updates serialize on the
// row, so no increment is ever lost.
func (r *StateRepository) Update(ctx context.Context, email string, apply func(models.RateLimitState) models.RateLimitState) (models.RateLimitState, error) {
	var next models.RateLimitState

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		seed := `
			INSERT INTO gate_states (email, attempts, window_start, lockout_until, updated_at)
			VALUES ($1, 0, $2, NULL, NOW())
			ON CONFLICT (email) DO NOTHING
		`
		if _, err := tx.Exec(ctx, seed, email, time.Time{}); err != nil {
			return err
		}

		lock := `
			SELECT email, attempts, window_start, lockout_until, updated_at
			FROM gate_states
			WHERE email = $1
			FOR UPDATE
		`
		var current models.RateLimitState
		err := tx.QueryRow(ctx, lock, email).Scan(
			&current.Email,
			&current.Attempts,
			&current.WindowStart,
			&current.LockoutUntil,
			&current.UpdatedAt,
		)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		next = apply(current)
		next.Email = email

		write := `
			UPDATE gate_states
			SET attempts = $2, window_start = $3, lockout_until = $4, updated_at = NOW()
			WHERE email = $1
			RETURNING updated_at
		`
		return tx.QueryRow(ctx, write, email, next.Attempts, next.WindowStart, next.LockoutUntil).Scan(&next.UpdatedAt)
	})
	if err != nil {
		return models.RateLimitState{}, database.MapPostgresError(err)
	}

	return next, nil
}

// Delete removes the state row for an email. Missing rows are not an error.
func (r *StateRepository) Delete(ctx context.Context, email string) error {
	query := `DELETE FROM gate_states WHERE email = $1`

	if _, err := r.db.Pool.Exec(ctx, query, email); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// DeleteExpired removes unlocked rows past the retention window and returns
// the number deleted. Rows with an active lockout are never removed.
func (r *StateRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM gate_states
		WHERE (lockout_until IS NULL OR lockout_until <= NOW())
		AND updated_at < $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, time.Now().Add(-r.retention))
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return tag.RowsAffected(), nil
}

// HealthCheck verifies database connectivity.
func (r *StateRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
