package models

import "time"

// AttemptRecord is a single authentication attempt in the append-only log.
// Records are written for audit purposes and never read back by the gate.
type AttemptRecord struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	ClientID       string         `db:"client_id"`
	IdentitySource IdentitySource `db:"identity_source"`
	Success        bool           `db:"success"`
	AttemptedAt    time.Time      `db:"attempted_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
}
