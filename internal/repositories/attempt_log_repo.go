package repositories

import (
	"context"

	"github.com/tmcfarland/authgate/internal/database"
	"github.com/tmcfarland/authgate/internal/models"
)

// AttemptLogRepository appends authentication attempts to the audit table.
// The gate only ever writes here; reads belong to reporting tools.
type AttemptLogRepository struct {
	db *database.DB
}

// NewAttemptLogRepository creates a new AttemptLogRepository
func NewAttemptLogRepository(db *database.DB) *AttemptLogRepository {
	return &AttemptLogRepository{db: db}
}

// Append records a single attempt in the database
func (r *AttemptLogRepository) Append(ctx context.Context, attempt *models.AttemptRecord) error {
	query := `
		INSERT INTO auth_attempts (id, email, client_id, identity_source, success, attempted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.Email,
		attempt.ClientID,
		attempt.IdentitySource,
		attempt.Success,
		attempt.AttemptedAt,
		attempt.ExpiresAt,
	)

	return database.MapPostgresError(err)
}

// DeleteExpired removes attempt rows past their retention timestamp and
// returns the number deleted.
func (r *AttemptLogRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM auth_attempts WHERE expires_at < NOW()`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return tag.RowsAffected(), nil
}
