package repositories

import (
	"context"
	"time"

	"github.com/calebmartin/corkboard/internal/database"
	"github.com/calebmartin/corkboard/internal/models"
)

type ModerationRepository struct {
	q Querier
}

func NewModerationRepository(db *database.DB) *ModerationRepository {
	return &ModerationRepository{q: db.Pool}
}

// Get returns the moderation row for a user, ErrNotFound when none exists.
// Rows are created lazily by moderation actions, so most users have none.
func (r *ModerationRepository) Get(ctx context.Context, userID string) (*models.ModerationStatus, error) {
	query := `
		SELECT user_id, status, reason, suspended_until, updated_at
		FROM moderation_statuses WHERE user_id = $1
	`

	var status models.ModerationStatus
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&status.UserID, &status.Status, &status.Reason, &status.SuspendedUntil, &status.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &status, nil
}

// Set upserts a moderation row (admin actions and test seeding).
func (r *ModerationRepository) Set(ctx context.Context, status *models.ModerationStatus) error {
	query := `
		INSERT INTO moderation_statuses (user_id, status, reason, suspended_until, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status, reason = EXCLUDED.reason,
		    suspended_until = EXCLUDED.suspended_until, updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		status.UserID, status.Status, status.Reason, status.SuspendedUntil, time.Now(),
	)
	return database.MapPostgresError(err)
}

// ClearExpiredSuspension flips a lapsed suspension back to active. Guarded
// on status so a racing admin re-suspend is not clobbered.
func (r *ModerationRepository) ClearExpiredSuspension(ctx context.Context, userID string, now time.Time) error {
	query := `
		UPDATE moderation_statuses
		SET status = $1, reason = NULL, suspended_until = NULL, updated_at = $2
		WHERE user_id = $3 AND status = $4
		  AND suspended_until IS NOT NULL AND suspended_until <= $2
	`

	_, err := r.q.Exec(ctx, query, models.ModerationActive, now, userID, models.ModerationSuspended)
	return database.MapPostgresError(err)
}
