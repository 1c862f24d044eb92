package models

import "time"

// RateLimitState is the per-email counter the gate persists between attempts.
// Email alone keys the state; client identity is recorded alongside attempts
// but never participates in key uniqueness, since legitimate users move
// between networks mid-flow.
type RateLimitState struct {
	Email        string     `db:"email" json:"email"`
	Attempts     int        `db:"attempts" json:"attempts"`
	WindowStart  time.Time  `db:"window_start" json:"window_start"`
	LockoutUntil *time.Time `db:"lockout_until" json:"lockout_until,omitempty"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Locked reports whether the state carries a lockout that is still in the
// future at the given instant. Expired lockouts are treated as absent;
// nothing clears them eagerly.
func (s *RateLimitState) Locked(now time.Time) bool {
	return s.LockoutUntil != nil && s.LockoutUntil.After(now)
}

// RateLimitDecision is the gate's answer for a single attempt check.
// When Allowed is false, RemainingSeconds is always positive.
type RateLimitDecision struct {
	Allowed          bool `json:"allowed"`
	RemainingSeconds int  `json:"remaining_seconds"`
	Attempts         int  `json:"attempts"`
	LockoutMinutes   int  `json:"lockout_time_minutes"`
}
