package repositories

import (
	"context"
	"time"

	"github.com/calebmartin/corkboard/internal/database"
	"github.com/calebmartin/corkboard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	q Querier
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// WithTx returns a repository bound to an open transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `id, email, username, first_name, last_name, password_digest, is_admin, is_superadmin, created_at, updated_at`

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Username, &user.FirstName, &user.LastName,
		&user.PasswordDigest, &user.IsAdmin, &user.IsSuperadmin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.q.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively; callers pass already-normalized
// input but the index comparison stays LOWER() either way.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUserRow(r.q.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`
	return scanUserRow(r.q.QueryRow(ctx, query, username))
}

// Create inserts a new user. The LOWER() unique indexes are the authority
// on uniqueness; a concurrent duplicate registration surfaces here as
// ErrEmailTaken/ErrUsernameTaken regardless of any earlier lookup.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, username, first_name, last_name, password_digest, is_admin, is_superadmin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.q.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.FirstName, user.LastName,
		user.PasswordDigest, user.IsAdmin, user.IsSuperadmin,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *UserRepository) UpdatePasswordDigest(ctx context.Context, id, digest string) error {
	query := `UPDATE users SET password_digest = $1, updated_at = $2 WHERE id = $3`

	result, err := r.q.Exec(ctx, query, digest, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
