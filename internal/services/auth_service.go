package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calebmartin/corkboard/internal/auth"
	"github.com/calebmartin/corkboard/internal/models"
	pkgauth "github.com/calebmartin/corkboard/pkg/auth"
	pkglogger "github.com/calebmartin/corkboard/pkg/logger"
	"github.com/google/uuid"
)

// UserRepository defines the credential-store operations the auth flows need
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordDigest(ctx context.Context, id, digest string) error
}

// ModerationRepository defines the moderation-status operations
type ModerationRepository interface {
	Get(ctx context.Context, userID string) (*models.ModerationStatus, error)
	ClearExpiredSuspension(ctx context.Context, userID string, now time.Time) error
}

// SessionRepository defines the session-ledger operations
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Rotate(ctx context.Context, id, expectedHash, newHash string, newExpiresAt, now time.Time) (bool, error)
	Revoke(ctx context.Context, id string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) error
}

// AuthService orchestrates register, login, refresh, reauth and logout
type AuthService struct {
	users       UserRepository
	moderation  ModerationRepository
	sessions    SessionRepository
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time

	refreshTTL    time.Duration // sliding window
	refreshMaxTTL time.Duration // hard cap anchored to session creation
}

// NewAuthService creates a new AuthService. The clock is injected so expiry
// behavior is testable; pass time.Now in production.
func NewAuthService(
	users UserRepository,
	moderation ModerationRepository,
	sessions SessionRepository,
	tm *auth.TokenManager,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	refreshTTL, refreshMaxTTL time.Duration,
	now func() time.Time,
) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:         users,
		moderation:    moderation,
		sessions:      sessions,
		tm:            tm,
		logger:        logger,
		auditLogger:   auditLogger,
		refreshTTL:    refreshTTL,
		refreshMaxTTL: refreshMaxTTL,
		now:           now,
	}
}

// UserResponse is the public user projection (never carries the digest)
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AuthResponse carries the user projection plus the freshly minted token
// pair; the handler moves the tokens into cookies and strips them from the
// body.
type AuthResponse struct {
	User         *UserResponse
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// Register creates a new user account. No session is created; the caller
// logs in afterwards.
func (s *AuthService) Register(ctx context.Context, email, username, firstName, lastName, password string) (*UserResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.ToLower(strings.TrimSpace(username))

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	// Pre-checks give field-specific conflicts; the LOWER() unique indexes
	// remain the authority if a duplicate registration races past them.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, models.ErrUsernameTaken
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	digest, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.users.Create(ctx, &models.User{
		Email:          email,
		Username:       username,
		FirstName:      strings.TrimSpace(firstName),
		LastName:       strings.TrimSpace(lastName),
		PasswordDigest: digest,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "user_registered",
		UserID:    created.ID,
		Success:   true,
	})

	return userModelToResponse(created), nil
}

// Login authenticates a user and opens a new session. Missing user and
// wrong password collapse to the same generic ErrUnauthorized; moderation
// blocks return a typed error the handler surfaces as an actionable 403.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ip,
				FailureReason: "invalid_credentials",
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !pkgauth.VerifyPassword(user.PasswordDigest, password) {
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ip,
			FailureReason: "invalid_credentials",
		})
		return nil, models.ErrUnauthorized
	}

	if err := s.checkModeration(ctx, user.ID, ip); err != nil {
		return nil, err
	}

	resp, err := s.openSession(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ip,
		Success:   true,
	})
	return resp, nil
}

// checkModeration applies the ban/suspend gate. An expired suspension
// self-heals here, on the login attempt that notices it; there is no
// background sweep.
func (s *AuthService) checkModeration(ctx context.Context, userID, ip string) error {
	status, err := s.moderation.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil // no row means active
		}
		s.logger.Error("failed to get moderation status", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	reason := ""
	if status.Reason != nil {
		reason = *status.Reason
	}

	switch status.Status {
	case models.ModerationBanned:
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        userID,
			IPAddress:     ip,
			FailureReason: "account_banned",
		})
		return &models.ModerationError{Code: models.CodeAccountBanned, Reason: reason}

	case models.ModerationSuspended:
		now := s.now()
		if status.SuspensionExpired(now) {
			// Deadline has passed: clear and let the login proceed.
			if err := s.moderation.ClearExpiredSuspension(ctx, userID, now); err != nil {
				s.logger.Error("failed to clear expired suspension", slog.String("user_id", userID), slog.Any("error", err))
				return models.ErrInternalServer
			}
			s.logger.Info("expired suspension cleared on login", slog.String("user_id", userID))
			return nil
		}

		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        userID,
			IPAddress:     ip,
			FailureReason: "account_suspended",
		})
		return &models.ModerationError{
			Code:           models.CodeAccountSuspended,
			Reason:         reason,
			SuspendedUntil: status.SuspendedUntil,
		}
	}

	return nil
}

// openSession creates the ledger row and mints the bound token pair.
func (s *AuthService) openSession(ctx context.Context, user *models.User, ip, userAgent string) (*AuthResponse, error) {
	sessionID := uuid.New().String()

	accessToken, err := s.tm.Sign(models.TokenKindAccess, user.ID, user.Email, sessionID)
	if err != nil {
		s.logger.Error("failed to sign access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tm.Sign(models.TokenKindRefresh, user.ID, "", sessionID)
	if err != nil {
		s.logger.Error("failed to sign refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	err = s.sessions.Create(ctx, &models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: pkgauth.HashToken(refreshToken),
		CreatedAt:        now,
		LastUsedAt:       now,
		ExpiresAt:        s.sessionExpiry(now, now),
		UserAgent:        userAgent,
		IP:               ip,
	})
	if err != nil {
		s.logger.Error("failed to create session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		User:         userModelToResponse(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
	}, nil
}

// sessionExpiry computes min(now+sliding, createdAt+cap). The cap anchors
// to session creation, so continuous refreshing cannot extend a session
// forever.
func (s *AuthService) sessionExpiry(createdAt, now time.Time) time.Time {
	sliding := now.Add(s.refreshTTL)
	ceiling := createdAt.Add(s.refreshMaxTTL)
	if ceiling.Before(sliding) {
		return ceiling
	}
	return sliding
}

// Refresh redeems a refresh token for a new access+refresh pair. A
// presented token whose hash no longer matches the ledger is treated as
// stolen and kills the whole session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.Verify(models.TokenKindRefresh, refreshToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionNotFound
		}
		s.logger.Error("failed to get session", slog.String("session_id", claims.SessionID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()

	if session.IsRevoked() {
		return nil, models.ErrSessionRevoked
	}

	if session.IsExpired(now) || session.PastHardCap(now, s.refreshMaxTTL) {
		s.revokeQuietly(ctx, session.ID, now)
		return nil, models.ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.revokeQuietly(ctx, session.ID, now)
			return nil, models.ErrUserGone
		}
		s.logger.Error("failed to get user for refresh", slog.String("user_id", session.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	newRefreshToken, err := s.tm.Sign(models.TokenKindRefresh, user.ID, "", session.ID)
	if err != nil {
		s.logger.Error("failed to sign refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Atomic conditional rotation keyed on the presented hash. Two
	// concurrent refreshes with the same token resolve here: one rotates,
	// the other lands in the reuse branch below.
	rotated, err := s.sessions.Rotate(ctx,
		session.ID,
		pkgauth.HashToken(refreshToken),
		pkgauth.HashToken(newRefreshToken),
		s.sessionExpiry(session.CreatedAt, now),
		now,
	)
	if err != nil {
		s.logger.Error("failed to rotate session", slog.String("session_id", session.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !rotated {
		// Stale token: either replayed after rotation or it lost a race.
		// Both are evidence of a second holder, so the session dies.
		s.revokeQuietly(ctx, session.ID, now)
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "refresh_reuse_detected",
			UserID:        session.UserID,
			IPAddress:     session.IP,
			FailureReason: "refresh_token_reuse",
		})
		return nil, models.ErrTokenReuse
	}

	accessToken, err := s.tm.Sign(models.TokenKindAccess, user.ID, user.Email, session.ID)
	if err != nil {
		s.logger.Error("failed to sign access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		User:         userModelToResponse(user),
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		SessionID:    session.ID,
	}, nil
}

// Reauth re-verifies the password for an already-authenticated user and
// mints a short-lived step-up token bound to the same session.
func (s *AuthService) Reauth(ctx context.Context, userID, sessionID, password string) (string, time.Duration, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", 0, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for reauth", slog.String("user_id", userID), slog.Any("error", err))
		return "", 0, models.ErrInternalServer
	}

	if !pkgauth.VerifyPassword(user.PasswordDigest, password) {
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "reauth_failed",
			UserID:        userID,
			FailureReason: "invalid_credentials",
		})
		return "", 0, models.ErrUnauthorized
	}

	token, err := s.tm.Sign(models.TokenKindReauth, user.ID, "", sessionID)
	if err != nil {
		s.logger.Error("failed to sign reauth token", slog.String("user_id", userID), slog.Any("error", err))
		return "", 0, models.ErrInternalServer
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "reauth_success",
		UserID:    userID,
		Success:   true,
	})
	return token, s.tm.TTL(models.TokenKindReauth), nil
}

// Logout revokes the session referenced by the refresh token. Best effort:
// a missing or invalid token is not an error, the caller's cookies get
// cleared regardless.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	claims, err := s.tm.Verify(models.TokenKindRefresh, refreshToken)
	if err != nil {
		return
	}

	if err := s.sessions.Revoke(ctx, claims.SessionID, s.now()); err != nil {
		s.logger.Error("failed to revoke session on logout", slog.String("session_id", claims.SessionID), slog.Any("error", err))
		return
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    claims.UserID,
		Success:   true,
	})
}

// ForceRevokeUserSessions terminates every live session for a user. Hook
// for moderation actions (ban/suspend) and the admin console.
func (s *AuthService) ForceRevokeUserSessions(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAllForUser(ctx, userID, s.now()); err != nil {
		s.logger.Error("failed to revoke user sessions", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "sessions_force_revoked",
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// GetUser returns the public projection for an authenticated user.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return userModelToResponse(user), nil
}

func (s *AuthService) revokeQuietly(ctx context.Context, sessionID string, now time.Time) {
	if err := s.sessions.Revoke(ctx, sessionID, now); err != nil {
		s.logger.Error("failed to revoke session", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}
