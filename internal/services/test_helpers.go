package services

import (
	"context"

	"github.com/tmcfarland/authgate/internal/identity"
	"github.com/tmcfarland/authgate/internal/models"
)

// MockStateStore implements StateStore for testing
type MockStateStore struct {
	GetFunc    func(ctx context.Context, email string) (*models.RateLimitState, error)
	UpdateFunc func(ctx context.Context, email string, apply func(models.RateLimitState) models.RateLimitState) (models.RateLimitState, error)
	DeleteFunc func(ctx context.Context, email string) error
}

func (m *MockStateStore) Get(ctx context.Context, email string) (*models.RateLimitState, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockStateStore) Update(ctx context.Context, email string, apply func(models.RateLimitState) models.RateLimitState) (models.RateLimitState, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, email, apply)
	}
	return apply(models.RateLimitState{Email: email}), nil
}

func (m *MockStateStore) Delete(ctx context.Context, email string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, email)
	}
	return nil
}

// MockIdentityResolver implements IdentityResolver for testing
type MockIdentityResolver struct {
	ResolveFunc func(ctx context.Context, sig identity.Signals) models.ClientIdentity
}

func (m *MockIdentityResolver) Resolve(ctx context.Context, sig identity.Signals) models.ClientIdentity {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, sig)
	}
	return models.ClientIdentity{Value: "fp-test", Source: models.SourceFingerprint}
}

// MockAttemptLog implements AttemptLog for testing
type MockAttemptLog struct {
	AppendFunc func(ctx context.Context, attempt *models.AttemptRecord) error
}

func (m *MockAttemptLog) Append(ctx context.Context, attempt *models.AttemptRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, attempt)
	}
	return nil
}
