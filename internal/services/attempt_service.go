package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tmcfarland/authgate/internal/identity"
	"github.com/tmcfarland/authgate/internal/models"
	"github.com/tmcfarland/authgate/pkg/logger"
)

// IdentityResolver produces a best-effort client identity from environment
// signals. Implementations never fail and never return an empty value.
type IdentityResolver interface {
	Resolve(ctx context.Context, sig identity.Signals) models.ClientIdentity
}

// AttemptLog appends attempts to the durable audit trail. Append-only; the
// gate never reads these records back.
type AttemptLog interface {
	Append(ctx context.Context, attempt *models.AttemptRecord) error
}

// CredentialCheck is the caller's own verification step, run only after the
// gate allows the attempt. It returns whether the credentials were valid.
type CredentialCheck func(ctx context.Context) (bool, error)

// SubmitResult carries the outcome of a gated authentication attempt.
type SubmitResult struct {
	Decision      models.RateLimitDecision
	Identity      models.ClientIdentity
	Authenticated bool
}

// AttemptService orchestrates a single authentication attempt: resolve the
// client identity, consult the gate, run the caller's credential check, and
// record the outcome exactly once.
type AttemptService struct {
	gate     *RateLimitService
	resolver IdentityResolver
	log      AttemptLog
	audit    *logger.AuditLogger
	logger   *slog.Logger
	now      func() time.Time
}

// NewAttemptService creates a new AttemptService. The attempt log is
// optional; pass nil when the gate runs without durable attempt storage.
func NewAttemptService(gate *RateLimitService, resolver IdentityResolver, log AttemptLog, audit *logger.AuditLogger, lg *slog.Logger) *AttemptService {
	return &AttemptService{
		gate:     gate,
		resolver: resolver,
		log:      log,
		audit:    audit,
		logger:   lg,
		now:      time.Now,
	}
}

// CheckRateLimit answers whether an attempt for the email may proceed.
// Identity is carried into the audit trail but never into the decision.
func (s *AttemptService) CheckRateLimit(ctx context.Context, email string, clientID models.ClientIdentity) models.RateLimitDecision {
	decision := s.gate.Check(ctx, email)
	if !decision.Allowed {
		s.audit.LogGateDenied(logger.AuditEvent{
			Email:          email,
			ClientID:       clientID.Value,
			IdentitySource: string(clientID.Source),
			Attempts:       decision.Attempts,
			LockoutMinutes: decision.LockoutMinutes,
		})
	}
	return decision
}

// RecordAttempt folds an attempt outcome into the gate state and the audit
// trail. Fire and forget: every failure is logged and swallowed, so callers
// never block on recording.
func (s *AttemptService) RecordAttempt(ctx context.Context, email string, clientID models.ClientIdentity, success bool) {
	s.gate.Record(ctx, email, success)

	now := s.now()
	record := &models.AttemptRecord{
		ID:             uuid.New().String(),
		Email:          email,
		ClientID:       clientID.Value,
		IdentitySource: clientID.Source,
		Success:        success,
		AttemptedAt:    now,
		ExpiresAt:      now.Add(s.gate.config.AttemptTTL),
	}
	if s.log != nil {
		if err := s.log.Append(ctx, record); err != nil {
			s.logger.Warn("failed to append attempt record",
				slog.String("email", email),
				slog.Any("error", err))
		}
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		Email:          email,
		ClientID:       clientID.Value,
		IdentitySource: string(clientID.Source),
		Success:        success,
	})
}

// ClientIdentity resolves the caller's identity from environment signals.
// Total: always returns a usable, non-empty identity.
func (s *AttemptService) ClientIdentity(ctx context.Context, sig identity.Signals) models.ClientIdentity {
	return s.resolver.Resolve(ctx, sig)
}

// Submit runs one gated authentication attempt end to end. Denied attempts
// short-circuit before the credential check ever runs. Allowed attempts are
// recorded exactly once whatever happens inside the check, including a
// panic, which is re-raised after recording.
func (s *AttemptService) Submit(ctx context.Context, email string, sig identity.Signals, verify CredentialCheck) (SubmitResult, error) {
	clientID := s.resolver.Resolve(ctx, sig)

	decision := s.gate.Check(ctx, email)
	if !decision.Allowed {
		s.audit.LogGateDenied(logger.AuditEvent{
			Email:          email,
			ClientID:       clientID.Value,
			IdentitySource: string(clientID.Source),
			Attempts:       decision.Attempts,
			LockoutMinutes: decision.LockoutMinutes,
		})
		return SubmitResult{Decision: decision, Identity: clientID}, nil
	}

	success := false
	defer func() {
		s.RecordAttempt(ctx, email, clientID, success)
	}()

	ok, err := verify(ctx)
	if err != nil {
		return SubmitResult{Decision: decision, Identity: clientID}, err
	}
	success = ok

	return SubmitResult{Decision: decision, Identity: clientID, Authenticated: ok}, nil
}
