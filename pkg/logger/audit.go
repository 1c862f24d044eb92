package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types emitted by the gate.
const (
	EventAttemptRecorded = "attempt_recorded"
	EventAttemptDenied   = "attempt_denied"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType      string
	Email          string
	ClientID       string
	IdentitySource string
	Success        bool
	Attempts       int
	LockoutMinutes int
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs a recorded authentication attempt. The email is
// masked before it reaches the log stream.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", EventAttemptRecorded),
		slog.Bool("success", event.Success),
		slog.String("email", SanitizedEmail(event.Email)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}
	if event.IdentitySource != "" {
		attrs = append(attrs, slog.String("identity_source", event.IdentitySource))
	}
	if event.Attempts > 0 {
		attrs = append(attrs, slog.Int("attempts", event.Attempts))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogGateDenied logs an attempt the gate short-circuited before any
// credential check ran.
func (al *AuditLogger) LogGateDenied(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "gate"),
		slog.String("event_type", EventAttemptDenied),
		slog.String("email", SanitizedEmail(event.Email)),
		slog.Int("attempts", event.Attempts),
		slog.Int("lockout_minutes", event.LockoutMinutes),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}
	if event.IdentitySource != "" {
		attrs = append(attrs, slog.String("identity_source", event.IdentitySource))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}
