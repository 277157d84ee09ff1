package repositories

import (
	"context"
	"time"

	"github.com/calebmartin/corkboard/internal/database"
	"github.com/calebmartin/corkboard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PasswordResetRepository struct {
	q Querier
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{q: db.Pool}
}

// WithTx returns a repository bound to an open transaction.
func (r *PasswordResetRepository) WithTx(tx pgx.Tx) *PasswordResetRepository {
	return &PasswordResetRepository{q: tx}
}

func (r *PasswordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	token.ID = uuid.New().String()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used_at, created_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt,
		token.UsedAt, token.CreatedAt, token.IP, token.UserAgent,
	)
	return database.MapPostgresError(err)
}

func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at, ip, user_agent
		FROM password_reset_tokens
		WHERE token_hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var t models.PasswordResetToken
	err := r.q.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt,
		&t.UsedAt, &t.CreatedAt, &t.IP, &t.UserAgent,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &t, nil
}

// CountByIPSince feeds the per-IP throttle. Tombstone rows count too; that
// is the point of writing them.
func (r *PasswordResetRepository) CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM password_reset_tokens WHERE ip = $1 AND created_at >= $2`

	var count int
	if err := r.q.QueryRow(ctx, query, ip, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// CountByUserSince feeds the per-user throttle.
func (r *PasswordResetRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM password_reset_tokens WHERE user_id = $1 AND created_at >= $2`

	var count int
	if err := r.q.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// InvalidateActiveForUser marks any outstanding un-used tokens as used; a
// new request supersedes older ones so only the freshest link works.
func (r *PasswordResetRepository) InvalidateActiveForUser(ctx context.Context, userID string, now time.Time) error {
	query := `UPDATE password_reset_tokens SET used_at = $1 WHERE user_id = $2 AND used_at IS NULL`

	_, err := r.q.Exec(ctx, query, now, userID)
	return database.MapPostgresError(err)
}

// MarkUsed consumes a token. The used_at IS NULL guard makes redemption
// single-use even under concurrent confirm calls: only one caller gets
// consumed=true.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `UPDATE password_reset_tokens SET used_at = $1 WHERE id = $2 AND used_at IS NULL`

	result, err := r.q.Exec(ctx, query, now, id)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return result.RowsAffected() == 1, nil
}
