package models

import "time"

// LoginAttempt is one recorded sign-in attempt. Address carries the
// anonymized form only; the raw client address is never persisted.
type LoginAttempt struct {
	ID        int64     `db:"id"`
	TenantID  *string   `db:"tenant_id"`
	AccountID string    `db:"account_id"`
	Address   *string   `db:"address"`
	Success   bool      `db:"success"`
	CreatedAt time.Time `db:"created_at"`
}
