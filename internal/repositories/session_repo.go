package repositories

import (
	"context"
	"time"

	"github.com/calebmartin/corkboard/internal/database"
	"github.com/calebmartin/corkboard/internal/models"
	"github.com/jackc/pgx/v5"
)

type SessionRepository struct {
	q Querier
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{q: db.Pool}
}

// WithTx returns a repository bound to an open transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	return &SessionRepository{q: tx}
}

const sessionColumns = `id, user_id, refresh_token_hash, created_at, last_used_at, expires_at, revoked_at, user_agent, ip`

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var s models.Session

	err := scanner.Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash,
		&s.CreatedAt, &s.LastUsedAt, &s.ExpiresAt, &s.RevokedAt,
		&s.UserAgent, &s.IP,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, refresh_token_hash, created_at, last_used_at, expires_at, user_agent, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		session.ID, session.UserID, session.RefreshTokenHash,
		session.CreatedAt, session.LastUsedAt, session.ExpiresAt,
		session.UserAgent, session.IP,
	)
	return database.MapPostgresError(err)
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSessionRow(r.q.QueryRow(ctx, query, id))
}

// Rotate swaps in a new refresh token hash, conditional on the presented
// hash still being current and the session alive. This single UPDATE is the
// serialization point for concurrent refreshes: of two racing calls with
// the same token exactly one matches, the other sees rotated=false and
// treats the token as reused. Never touches created_at (the hard-cap
// anchor).
func (r *SessionRepository) Rotate(ctx context.Context, id, expectedHash, newHash string, newExpiresAt, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET refresh_token_hash = $1, last_used_at = $2, expires_at = $3
		WHERE id = $4 AND refresh_token_hash = $5 AND revoked_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, newHash, now, newExpiresAt, id, expectedHash)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() == 1, nil
}

// Revoke is idempotent: the revoked_at IS NULL guard means the first
// revocation timestamp is never overwritten.
func (r *SessionRepository) Revoke(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`

	_, err := r.q.Exec(ctx, query, now, id)
	return database.MapPostgresError(err)
}

// RevokeAllForUser terminates every live session for a user (password
// reset, admin ban). Same idempotent semantics as Revoke.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) error {
	query := `UPDATE sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`

	_, err := r.q.Exec(ctx, query, now, userID)
	return database.MapPostgresError(err)
}

// ListForUser returns a user's sessions, newest first (admin console view).
func (r *SessionRepository) ListForUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}
