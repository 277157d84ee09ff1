package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calebmartin/corkboard/internal/models"
	pkgauth "github.com/calebmartin/corkboard/pkg/auth"
	pkglogger "github.com/calebmartin/corkboard/pkg/logger"
)

// Abuse throttles for reset requests. Exceeding either silently no-ops so
// the endpoint stays enumeration-proof.
const (
	maxResetRequestsPerIPPerHour   = 10
	maxResetRequestsPerUserPerHour = 3
	throttleWindow                 = time.Hour
)

// PasswordResetRepository defines the reset-ledger operations
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error)
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error)
	InvalidateActiveForUser(ctx context.Context, userID string, now time.Time) error
}

// ResetConfirmer runs the confirm transaction (consume token, update
// digest, revoke all sessions).
type ResetConfirmer interface {
	ConfirmReset(ctx context.Context, tokenID, userID, newDigest string, now time.Time) (bool, error)
}

// ResetMailer delivers the raw token out-of-band
type ResetMailer interface {
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// PasswordResetService implements the forgot-password / reset-password flow
type PasswordResetService struct {
	users       UserRepository
	resets      PasswordResetRepository
	confirmer   ResetConfirmer
	mailer      ResetMailer
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	tokenTTL    time.Duration
	production  bool
	now         func() time.Time
}

func NewPasswordResetService(
	users UserRepository,
	resets PasswordResetRepository,
	confirmer ResetConfirmer,
	mailer ResetMailer,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	tokenTTL time.Duration,
	production bool,
	now func() time.Time,
) *PasswordResetService {
	if now == nil {
		now = time.Now
	}
	return &PasswordResetService{
		users:       users,
		resets:      resets,
		confirmer:   confirmer,
		mailer:      mailer,
		logger:      logger,
		auditLogger: auditLogger,
		tokenTTL:    tokenTTL,
		production:  production,
		now:         now,
	}
}

// RequestReset issues a one-time reset token for the account behind the
// email, if any. Every outcome except an infrastructure failure on the
// token write itself looks identical to the caller.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, ip, userAgent string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	now := s.now()

	// Throttle checks degrade to "not throttled" on failure: abuse
	// bookkeeping must never block a legitimate reset.
	if s.countByIP(ctx, ip, now) >= maxResetRequestsPerIPPerHour {
		s.logger.Warn("reset request throttled by ip", slog.String("ip", ip))
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.writeTombstone(ctx, ip, userAgent, now)
			return nil
		}
		s.logger.Error("failed to look up user for reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if s.countByUser(ctx, user.ID, now) >= maxResetRequestsPerUserPerHour {
		s.logger.Warn("reset request throttled by user", slog.String("user_id", user.ID))
		return nil
	}

	// A fresh request supersedes any outstanding token for the user.
	if err := s.resets.InvalidateActiveForUser(ctx, user.ID, now); err != nil {
		s.logger.Error("failed to invalidate prior reset tokens", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, tokenHash, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := now.Add(s.tokenTTL)
	err = s.resets.Create(ctx, &models.PasswordResetToken{
		UserID:    &user.ID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		IP:        ip,
		UserAgent: userAgent,
	})
	if err != nil {
		// The write is the primary flow: pretending success here would
		// leave the user waiting for a link that cannot exist.
		s.logger.Error("failed to store reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, token, expiresAt); err != nil {
		s.logger.Error("failed to send reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !s.production {
		// Development side channel only; the raw token never reaches a
		// production log or response.
		s.logger.Debug("password reset token issued", slog.String("token", token))
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "password_reset_requested",
		UserID:    user.ID,
		IPAddress: ip,
		Success:   true,
	})
	return nil
}

// ConfirmReset redeems a token and sets a new password. All lookup
// failures collapse to ErrResetInvalid. On success, every session the user
// holds anywhere is revoked in the same transaction.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, email, token, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	now := s.now()

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	reset, err := s.resets.GetByTokenHash(ctx, pkgauth.HashToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrResetInvalid
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !reset.Redeemable(now) {
		return models.ErrResetInvalid
	}

	user, err := s.users.GetByID(ctx, *reset.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrResetInvalid
		}
		s.logger.Error("failed to get user for reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if user.Email != email {
		return models.ErrResetInvalid
	}

	digest, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	consumed, err := s.confirmer.ConfirmReset(ctx, reset.ID, user.ID, digest, now)
	if err != nil {
		s.logger.Error("failed to confirm reset", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !consumed {
		// A concurrent confirm got there first; single-use holds.
		return models.ErrResetInvalid
	}

	s.logger.Info("password reset completed", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "password_reset_completed",
		UserID:    user.ID,
		Success:   true,
	})
	return nil
}

func (s *PasswordResetService) countByIP(ctx context.Context, ip string, now time.Time) int {
	count, err := s.resets.CountByIPSince(ctx, ip, now.Add(-throttleWindow))
	if err != nil {
		s.logger.Warn("ip throttle check failed, treating as not throttled", slog.Any("error", err))
		return 0
	}
	return count
}

func (s *PasswordResetService) countByUser(ctx context.Context, userID string, now time.Time) int {
	count, err := s.resets.CountByUserSince(ctx, userID, now.Add(-throttleWindow))
	if err != nil {
		s.logger.Warn("user throttle check failed, treating as not throttled", slog.Any("error", err))
		return 0
	}
	return count
}

// writeTombstone records a reset request against an unknown email so the
// per-IP throttle still counts it. The row is born used and never
// redeemable. Best effort: bookkeeping failure is not the caller's problem.
func (s *PasswordResetService) writeTombstone(ctx context.Context, ip, userAgent string, now time.Time) {
	_, tokenHash, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.Warn("failed to generate tombstone token", slog.Any("error", err))
		return
	}

	usedAt := now
	err = s.resets.Create(ctx, &models.PasswordResetToken{
		UserID:    nil,
		TokenHash: tokenHash,
		ExpiresAt: now,
		UsedAt:    &usedAt,
		CreatedAt: now,
		IP:        ip,
		UserAgent: userAgent,
	})
	if err != nil {
		s.logger.Warn("failed to write reset tombstone", slog.Any("error", err))
	}
}
