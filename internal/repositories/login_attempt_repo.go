package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/marchalgreen/Rundeklar-sub004/internal/database"
	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
)

// LoginAttemptRepository is the PostgreSQL attempt store, the default
// backend when the service shares its primary database. Errors are
// returned untranslated: the engine treats any store failure as fatal
// to the decision, so no mapping to sentinel errors happens here.
type LoginAttemptRepository struct {
	db *database.DB
}

var _ ratelimit.AttemptStore = (*LoginAttemptRepository)(nil)

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Insert appends one attempt record. created_at is the engine's clock
// reading, deliberately not the database's CURRENT_TIMESTAMP.
func (r *LoginAttemptRepository) Insert(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (tenant_id, account_id, address, success, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return r.db.Pool.QueryRow(ctx, query,
		attempt.TenantID,
		attempt.AccountID,
		attempt.Address,
		attempt.Success,
		attempt.CreatedAt,
	).Scan(&attempt.ID)
}

// ListRecentByAccount returns up to limit attempts for an account since
// the given instant, newest first. Ties on created_at break by id so
// the order mirrors insertion.
func (r *LoginAttemptRepository) ListRecentByAccount(ctx context.Context, accountID string, since time.Time, limit int) ([]models.LoginAttempt, error) {
	query := `
		SELECT id, tenant_id, account_id, address, success, created_at
		FROM login_attempts
		WHERE account_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC
	`
	args := []any{accountID, since}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoginAttempts(rows)
}

// CountFailuresByAddress returns the number of failed attempts recorded
// for an anonymized address since the given instant.
func (r *LoginAttemptRepository) CountFailuresByAddress(ctx context.Context, address string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE address = $1 AND success = false AND created_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, address, since).Scan(&count)
	return count, err
}

// ListByAccountSince returns every attempt for an account since the
// given instant, oldest first; the episode deriver walks this order.
func (r *LoginAttemptRepository) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]models.LoginAttempt, error) {
	query := `
		SELECT id, tenant_id, account_id, address, success, created_at
		FROM login_attempts
		WHERE account_id = $1 AND created_at >= $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoginAttempts(rows)
}

// PurgeOlderThan removes attempts recorded before cutoff and reports
// how many rows were deleted.
func (r *LoginAttemptRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanLoginAttempts(rows pgx.Rows) ([]models.LoginAttempt, error) {
	var attempts []models.LoginAttempt
	for rows.Next() {
		var attempt models.LoginAttempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.TenantID,
			&attempt.AccountID,
			&attempt.Address,
			&attempt.Success,
			&attempt.CreatedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}
