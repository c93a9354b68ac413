package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
)

// SQLiteLoginAttemptStore keeps the attempt log in an embedded SQLite
// file. Single-node installs use it to keep high-churn login writes off
// the primary database. Instants are stored as integer nanoseconds so
// that range queries and the insertion-order tie-break cost one index
// walk.
type SQLiteLoginAttemptStore struct {
	db *sql.DB
}

var _ ratelimit.AttemptStore = (*SQLiteLoginAttemptStore)(nil)

func NewSQLiteLoginAttemptStore(path string) (*SQLiteLoginAttemptStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening attempt store: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent logins.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	store := &SQLiteLoginAttemptStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteLoginAttemptStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS login_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT,
			account_id TEXT NOT NULL,
			address TEXT,
			success INTEGER NOT NULL,
			created_at_ns INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_login_attempts_account
			ON login_attempts (account_id, created_at_ns);
		CREATE INDEX IF NOT EXISTS idx_login_attempts_address
			ON login_attempts (address, created_at_ns) WHERE success = 0;
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing attempt schema: %w", err)
	}
	return nil
}

func (s *SQLiteLoginAttemptStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteLoginAttemptStore) Insert(ctx context.Context, attempt *models.LoginAttempt) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO login_attempts (tenant_id, account_id, address, success, created_at_ns)
		VALUES (?, ?, ?, ?, ?)`,
		attempt.TenantID,
		attempt.AccountID,
		attempt.Address,
		attempt.Success,
		attempt.CreatedAt.UnixNano(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	attempt.ID = id
	return nil
}

func (s *SQLiteLoginAttemptStore) ListRecentByAccount(ctx context.Context, accountID string, since time.Time, limit int) ([]models.LoginAttempt, error) {
	query := `
		SELECT id, tenant_id, account_id, address, success, created_at_ns
		FROM login_attempts
		WHERE account_id = ? AND created_at_ns >= ?
		ORDER BY created_at_ns DESC, id DESC
	`
	args := []any{accountID, since.UnixNano()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteAttempts(rows)
}

func (s *SQLiteLoginAttemptStore) CountFailuresByAddress(ctx context.Context, address string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE address = ? AND success = 0 AND created_at_ns >= ?`,
		address, since.UnixNano(),
	).Scan(&count)
	return count, err
}

func (s *SQLiteLoginAttemptStore) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]models.LoginAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, account_id, address, success, created_at_ns
		FROM login_attempts
		WHERE account_id = ? AND created_at_ns >= ?
		ORDER BY created_at_ns ASC, id ASC`,
		accountID, since.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteAttempts(rows)
}

func (s *SQLiteLoginAttemptStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE created_at_ns < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanSQLiteAttempts(rows *sql.Rows) ([]models.LoginAttempt, error) {
	var attempts []models.LoginAttempt
	for rows.Next() {
		var attempt models.LoginAttempt
		var createdAtNs int64
		if err := rows.Scan(
			&attempt.ID,
			&attempt.TenantID,
			&attempt.AccountID,
			&attempt.Address,
			&attempt.Success,
			&createdAtNs,
		); err != nil {
			return nil, err
		}
		attempt.CreatedAt = time.Unix(0, createdAtNs).UTC()
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}
