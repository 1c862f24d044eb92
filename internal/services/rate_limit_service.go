package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/tmcfarland/authgate/internal/models"
)

// StateStore defines the interface for rate limit state persistence
type StateStore interface {
	Get(ctx context.Context, email string) (*models.RateLimitState, error)
	Update(ctx context.Context, email string, apply func(models.RateLimitState) models.RateLimitState) (models.RateLimitState, error)
	Delete(ctx context.Context, email string) error
}

// RateLimitConfig holds configuration for rate limiting behavior
type RateLimitConfig struct {
	MaxFailedAttempts int           // failures before the first lockout
	BaseLockout       time.Duration // first lockout length
	MaxLockout        time.Duration // cap on escalated lockouts
	AttemptTTL        time.Duration // retention for state and attempt records
}

// RateLimitService decides whether authentication attempts may proceed and
// tracks failure streaks per email. Email alone keys the state; client
// identity stays out of the key so users who switch networks mid-streak
// cannot shed their counter.
type RateLimitService struct {
	store  StateStore
	config RateLimitConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(store StateStore, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the service's time source. Call before use; intended
// for tests that walk attempts across lockout boundaries.
func (s *RateLimitService) SetClock(now func() time.Time) {
	s.now = now
}

// Check reports whether an attempt for the email may proceed right now.
// Lockouts expire lazily against the wall clock; no background timer ever
// flips state. Storage failures allow the attempt through, so an outage
// degrades to no rate limiting rather than locking everyone out.
func (s *RateLimitService) Check(ctx context.Context, email string) models.RateLimitDecision {
	state, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.RateLimitDecision{Allowed: true}
		}
		// Fail open for availability - storage errors shouldn't block legitimate users
		s.logger.Error("rate limit state read failed, allowing attempt",
			slog.String("email", email),
			slog.Any("error", err))
		return models.RateLimitDecision{Allowed: true}
	}

	now := s.now()
	if state.Locked(now) {
		remaining := state.LockoutUntil.Sub(now)
		return models.RateLimitDecision{
			Allowed:          false,
			RemainingSeconds: ceilSeconds(remaining),
			Attempts:         state.Attempts,
			LockoutMinutes:   ceilMinutes(remaining),
		}
	}

	// An expired lockout clears the block but keeps the attempt count, so
	// the next streak escalates instead of starting over.
	return models.RateLimitDecision{Allowed: true, Attempts: state.Attempts}
}

// Record folds an attempt outcome into the email's state. Success discards
// the streak entirely; failure increments it atomically and arms or extends
// the lockout once the threshold is reached. Storage failures are logged
// and dropped so recording never blocks an auth flow.
func (s *RateLimitService) Record(ctx context.Context, email string, success bool) {
	if success {
		if err := s.store.Delete(ctx, email); err != nil {
			s.logger.Warn("failed to reset rate limit state",
				slog.String("email", email),
				slog.Any("error", err))
		}
		return
	}

	now := s.now()
	state, err := s.store.Update(ctx, email, func(cur models.RateLimitState) models.RateLimitState {
		if cur.Attempts == 0 {
			cur.WindowStart = now
		}
		cur.Attempts++
		if cur.Attempts >= s.config.MaxFailedAttempts {
			until := now.Add(s.lockoutDuration(cur.Attempts))
			cur.LockoutUntil = &until
		}
		return cur
	})
	if err != nil {
		s.logger.Warn("failed to record failed attempt",
			slog.String("email", email),
			slog.Any("error", err))
		return
	}

	if state.Locked(now) {
		s.logger.Warn("account rate limited",
			slog.String("email", email),
			slog.Int("failed_attempts", state.Attempts),
			slog.Time("lockout_until", *state.LockoutUntil))
	}
}

// lockoutDuration doubles the base lockout for every failure past the
// threshold, capped at the configured maximum. The count never resets while
// state is retained, so repeated streaks keep escalating.
func (s *RateLimitService) lockoutDuration(attempts int) time.Duration {
	over := attempts - s.config.MaxFailedAttempts
	if over < 0 {
		over = 0
	}

	lockout := s.config.BaseLockout
	for i := 0; i < over; i++ {
		lockout *= 2
		if lockout >= s.config.MaxLockout || lockout <= 0 {
			return s.config.MaxLockout
		}
	}
	if lockout > s.config.MaxLockout {
		return s.config.MaxLockout
	}
	return lockout
}

// ceilSeconds rounds a remaining lockout up to whole seconds, never below 1
// so a denial always carries a positive wait.
func ceilSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func ceilMinutes(d time.Duration) int {
	mins := int(math.Ceil(d.Minutes()))
	if mins < 1 {
		mins = 1
	}
	return mins
}
