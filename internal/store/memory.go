package store

import (
	"context"
	"sync"
	"time"

	"github.com/tmcfarland/authgate/internal/models"
)

// MemoryStore keeps rate limit state in a mutex-guarded map. It is the
// default backend for single-instance deployments and tests; state does not
// survive restarts.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]models.RateLimitState
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore creates a MemoryStore. Unlocked entries older than ttl are
// treated as absent and reaped by DeleteExpired.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		states: make(map[string]models.RateLimitState),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the state for an email, or models.ErrNotFound when no live
// state exists. Expired entries are removed lazily.
func (s *MemoryStore) Get(ctx context.Context, email string) (*models.RateLimitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	if s.expired(state) {
		delete(s.states, email)
		return nil, models.ErrNotFound
	}

	copied := state
	return &copied, nil
}

// Update applies a mutation to the state under the store lock. The callback
// receives the current state, or a zero state when none exists, and its
// result replaces the entry. Concurrent updates to the same email serialize
// here, so no increment is ever lost.
func (s *MemoryStore) Update(ctx context.Context, email string, apply func(models.RateLimitState) models.RateLimitState) (models.RateLimitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.states[email]
	if !ok || s.expired(current) {
		current = models.RateLimitState{}
	}

	next := apply(current)
	next.Email = email
	next.UpdatedAt = s.now()
	s.states[email] = next

	return next, nil
}

// Delete removes the state for an email. Missing entries are not an error.
func (s *MemoryStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, email)
	return nil
}

// DeleteExpired sweeps entries past their retention window and returns the
// number removed. Entries with an active lockout are never reaped.
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for email, state := range s.states {
		if s.expired(state) {
			delete(s.states, email)
			removed++
		}
	}

	return removed, nil
}

// HealthCheck reports the store as always available.
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) expired(state models.RateLimitState) bool {
	now := s.now()
	if state.Locked(now) {
		return false
	}
	return now.Sub(state.UpdatedAt) >= s.ttl
}
