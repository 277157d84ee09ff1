package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/calebmartin/corkboard/internal/auth"
	"github.com/calebmartin/corkboard/internal/models"
	pkgauth "github.com/calebmartin/corkboard/pkg/auth"
	pkglogger "github.com/calebmartin/corkboard/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc              func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc           func(ctx context.Context, email string) (*models.User, error)
	GetByUsernameFunc        func(ctx context.Context, username string) (*models.User, error)
	CreateFunc               func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordDigestFunc func(ctx context.Context, id, digest string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	user.ID = "user_" + user.Username
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

func (m *MockUserRepository) UpdatePasswordDigest(ctx context.Context, id, digest string) error {
	if m.UpdatePasswordDigestFunc != nil {
		return m.UpdatePasswordDigestFunc(ctx, id, digest)
	}
	return nil
}

// MockModerationRepository implements ModerationRepository for testing
type MockModerationRepository struct {
	GetFunc                    func(ctx context.Context, userID string) (*models.ModerationStatus, error)
	ClearExpiredSuspensionFunc func(ctx context.Context, userID string, now time.Time) error
}

func (m *MockModerationRepository) Get(ctx context.Context, userID string) (*models.ModerationStatus, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockModerationRepository) ClearExpiredSuspension(ctx context.Context, userID string, now time.Time) error {
	if m.ClearExpiredSuspensionFunc != nil {
		return m.ClearExpiredSuspensionFunc(ctx, userID, now)
	}
	return nil
}

// FakeSessionRepository is an in-memory session ledger with the same
// conditional-rotation semantics as the SQL implementation. Used where the
// tests need real state across calls (rotation, reuse, revocation).
type FakeSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewFakeSessionRepository() *FakeSessionRepository {
	return &FakeSessionRepository{sessions: make(map[string]*models.Session)}
}

func (f *FakeSessionRepository) Create(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *FakeSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *FakeSessionRepository) Rotate(ctx context.Context, id, expectedHash, newHash string, newExpiresAt, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return false, nil
	}
	if session.RevokedAt != nil || session.RefreshTokenHash != expectedHash {
		return false, nil
	}
	session.RefreshTokenHash = newHash
	session.ExpiresAt = newExpiresAt
	session.LastUsedAt = now
	return true, nil
}

func (f *FakeSessionRepository) Revoke(ctx context.Context, id string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return models.ErrNotFound
	}
	if session.RevokedAt == nil {
		session.RevokedAt = &now
	}
	return nil
}

func (f *FakeSessionRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc                  func(ctx context.Context, token *models.PasswordResetToken) error
	GetByTokenHashFunc          func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	CountByIPSinceFunc          func(ctx context.Context, ip string, since time.Time) (int, error)
	CountByUserSinceFunc        func(ctx context.Context, userID string, since time.Time) (int, error)
	InvalidateActiveForUserFunc func(ctx context.Context, userID string, now time.Time) error
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return nil
}

func (m *MockPasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	if m.CountByIPSinceFunc != nil {
		return m.CountByIPSinceFunc(ctx, ip, since)
	}
	return 0, nil
}

func (m *MockPasswordResetRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if m.CountByUserSinceFunc != nil {
		return m.CountByUserSinceFunc(ctx, userID, since)
	}
	return 0, nil
}

func (m *MockPasswordResetRepository) InvalidateActiveForUser(ctx context.Context, userID string, now time.Time) error {
	if m.InvalidateActiveForUserFunc != nil {
		return m.InvalidateActiveForUserFunc(ctx, userID, now)
	}
	return nil
}

// MockResetConfirmer implements ResetConfirmer for testing
type MockResetConfirmer struct {
	ConfirmResetFunc func(ctx context.Context, tokenID, userID, newDigest string, now time.Time) (bool, error)
}

func (m *MockResetConfirmer) ConfirmReset(ctx context.Context, tokenID, userID, newDigest string, now time.Time) (bool, error) {
	if m.ConfirmResetFunc != nil {
		return m.ConfirmResetFunc(ctx, tokenID, userID, newDigest, now)
	}
	return true, nil
}

// MockResetMailer implements ResetMailer for testing
type MockResetMailer struct {
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
	Sent                       []string // tokens handed to the mailer
}

func (m *MockResetMailer) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	m.Sent = append(m.Sent, token)
	return nil
}

// Test fixtures

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-at-least-16-chars", 15*time.Minute, 30*24*time.Hour, 10*time.Minute)
}

// NewTestUser creates a user with the given password already hashed.
func NewTestUser(id, email, username, password string) *models.User {
	digest, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	now := time.Now()
	return &models.User{
		ID:             id,
		Email:          email,
		Username:       username,
		FirstName:      "Test",
		LastName:       "User",
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
