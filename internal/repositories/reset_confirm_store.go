package repositories

import (
	"context"
	"time"

	"github.com/calebmartin/corkboard/internal/database"
	"github.com/jackc/pgx/v5"
)

// ResetConfirmStore runs the password-reset confirmation as one
// transaction: consume the token, swap the digest, revoke every session.
// Either all three land or none do.
type ResetConfirmStore struct {
	db       *database.DB
	users    *UserRepository
	sessions *SessionRepository
	resets   *PasswordResetRepository
}

func NewResetConfirmStore(db *database.DB, users *UserRepository, sessions *SessionRepository, resets *PasswordResetRepository) *ResetConfirmStore {
	return &ResetConfirmStore{db: db, users: users, sessions: sessions, resets: resets}
}

// ConfirmReset returns consumed=false when the token was already used (a
// concurrent confirm won); nothing else is written in that case.
func (s *ResetConfirmStore) ConfirmReset(ctx context.Context, tokenID, userID, newDigest string, now time.Time) (bool, error) {
	var consumed bool

	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		ok, err := s.resets.WithTx(tx).MarkUsed(ctx, tokenID, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := s.users.WithTx(tx).UpdatePasswordDigest(ctx, userID, newDigest); err != nil {
			return err
		}
		if err := s.sessions.WithTx(tx).RevokeAllForUser(ctx, userID, now); err != nil {
			return err
		}

		consumed = true
		return nil
	})

	return consumed, err
}
