package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event. Address carries the
// anonymized form only; raw client addresses stay out of the audit
// stream.
type AuditEvent struct {
	EventType   string
	TenantID    string
	AccountID   string
	Address     string
	Success     bool
	Reason      string
	LockedUntil time.Time
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

// LogLoginAttempt logs sign-in attempts
func (al *AuditLogger) LogLoginAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("account_id", MaskedAccountID(event.AccountID)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", event.TenantID))
	}
	if event.Address != "" {
		attrs = append(attrs, slog.String("address", event.Address))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogLockout logs the start of an account lockout
func (al *AuditLogger) LogLockout(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", "lockout_started"),
		slog.String("account_id", MaskedAccountID(event.AccountID)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", event.TenantID))
	}
	if event.Address != "" {
		attrs = append(attrs, slog.String("address", event.Address))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if !event.LockedUntil.IsZero() {
		attrs = append(attrs, slog.String("locked_until", event.LockedUntil.UTC().Format(time.RFC3339)))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}
