package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"banking-session-core/internal/session/domain"
)

// PostgresStore is a network-backed Store implementation over the
// sessions table, for deployments that need session state to survive the
// process. Drop-in replacement for MemoryStore behind the Store
// interface; the manager does not know which one it has.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store backed by db. The schema comes from
// the embedded migrations (see internal/db).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put implements Store as an upsert by session ID.
func (s *PostgresStore) Put(ctx context.Context, rec *domain.SessionRecord) error {
	perms, err := json.Marshal(rec.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, device_id, origin_address, client_fingerprint,
			created_at, last_accessed_at, expires_at, status,
			permissions, login_method, risk_score, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			last_accessed_at = EXCLUDED.last_accessed_at,
			expires_at = EXCLUDED.expires_at,
			status = EXCLUDED.status,
			permissions = EXCLUDED.permissions,
			risk_score = EXCLUDED.risk_score,
			metadata = EXCLUDED.metadata
	`, rec.ID, rec.UserID, rec.DeviceID, rec.OriginAddress, rec.ClientFingerprint,
		rec.CreatedAt, rec.LastAccessedAt, rec.ExpiresAt, string(rec.Status),
		perms, string(rec.LoginMethod), rec.RiskScore, meta)
	return err
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, device_id, origin_address, client_fingerprint,
		       created_at, last_accessed_at, expires_at, status,
		       permissions, login_method, risk_score, metadata
		FROM sessions
		WHERE id = $1
	`, sessionID)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Remove implements Store. Removing an absent ID is a no-op.
func (s *PostgresStore) Remove(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}

// ListByUser implements Store.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*domain.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, device_id, origin_address, client_fingerprint,
		       created_at, last_accessed_at, expires_at, status,
		       permissions, login_method, risk_score, metadata
		FROM sessions
		WHERE user_id = $1
		ORDER BY last_accessed_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Sweep implements Store: one UPDATE...RETURNING for expiry transitions,
// one DELETE for terminal records past retention. Each statement is its
// own bounded unit of work; no long-held application lock.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time, retention time.Duration) (SweepResult, error) {
	var res SweepResult

	rows, err := s.db.QueryContext(ctx, `
		UPDATE sessions SET status = $1
		WHERE status = $2 AND expires_at <= $3
		RETURNING id, user_id, device_id, origin_address, client_fingerprint,
		          created_at, last_accessed_at, expires_at, status,
		          permissions, login_method, risk_score, metadata
	`, string(domain.StatusExpired), string(domain.StatusActive), now)
	if err != nil {
		return res, err
	}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return res, err
		}
		res.Expired = append(res.Expired, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, err
	}

	del, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE status <> $1 AND last_accessed_at < $2
	`, string(domain.StatusActive), now.Add(-retention))
	if err != nil {
		return res, err
	}
	if n, err := del.RowsAffected(); err == nil {
		res.Removed = int(n)
	}
	return res, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.SessionRecord, error) {
	var (
		rec         domain.SessionRecord
		status      string
		loginMethod string
		perms       []byte
		meta        []byte
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.DeviceID, &rec.OriginAddress, &rec.ClientFingerprint,
		&rec.CreatedAt, &rec.LastAccessedAt, &rec.ExpiresAt, &status,
		&perms, &loginMethod, &rec.RiskScore, &meta,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.SessionStatus(status)
	rec.LoginMethod = domain.LoginMethod(loginMethod)
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &rec.Permissions); err != nil {
			return nil, fmt.Errorf("unmarshal permissions: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}
