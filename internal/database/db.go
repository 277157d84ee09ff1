package database

import (
	"context"
	"errors"

	"github.com/calebmartin/corkboard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres constraint names from the migrations, used to turn a 23505 into
// the field-specific conflict the register flow reports.
const (
	constraintUsersEmailLower    = "users_email_lower_key"
	constraintUsersUsernameLower = "users_username_lower_key"
)

func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch pgErr.ConstraintName {
			case constraintUsersEmailLower:
				return models.ErrEmailTaken
			case constraintUsersUsernameLower:
				return models.ErrUsernameTaken
			}
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	return err
}

// WithTransaction runs fn inside a transaction: commit when fn returns nil,
// rollback otherwise.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return runInTx(ctx, db.Pool, fn)
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// The result must be named: the deferred closure assigns the commit error
// into it, so a failed commit reaches the caller instead of being reported
// as success.
func runInTx(ctx context.Context, conn txBeginner, fn func(pgx.Tx) error) (err error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	return fn(tx)
}
