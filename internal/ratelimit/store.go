package ratelimit

import (
	"context"
	"time"

	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
)

// AttemptStore is the persistence seam for recorded sign-in attempts.
// Implementations persist records verbatim and never interpret them;
// window and lockout semantics live in the Engine.
//
// Both listing orders are strict total orders on CreatedAt; ties break
// by insertion order, so the newest-first and oldest-first views are
// exact reverses of each other.
type AttemptStore interface {
	// Insert appends one attempt record. CreatedAt is supplied by the
	// caller and stored as-is, never reassigned by the backend.
	Insert(ctx context.Context, attempt *models.LoginAttempt) error

	// ListRecentByAccount returns up to limit records for the account
	// with CreatedAt >= since, newest first. A non-positive limit
	// returns all matching records.
	ListRecentByAccount(ctx context.Context, accountID string, since time.Time, limit int) ([]models.LoginAttempt, error)

	// CountFailuresByAddress returns the number of failed attempts
	// recorded for the anonymized address with CreatedAt >= since.
	CountFailuresByAddress(ctx context.Context, address string, since time.Time) (int, error)

	// ListByAccountSince returns every record for the account with
	// CreatedAt >= since, oldest first.
	ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]models.LoginAttempt, error)

	// PurgeOlderThan deletes records with CreatedAt before cutoff and
	// reports how many were removed. Idempotent.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
