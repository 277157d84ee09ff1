package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Uniqueness conflicts, distinguished so the handler can name the field
	ErrEmailTaken    = fmt.Errorf("%w: email taken", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("%w: username taken", ErrConflict)

	// Refresh terminal states. All map to 401 with a reason code; the
	// session they reference is already, or is about to be, revoked.
	ErrSessionNotFound = fmt.Errorf("%w: session not found", ErrUnauthorized)
	ErrSessionRevoked  = fmt.Errorf("%w: session revoked", ErrUnauthorized)
	ErrSessionExpired  = fmt.Errorf("%w: session expired", ErrUnauthorized)
	ErrTokenReuse      = fmt.Errorf("%w: refresh token reuse detected", ErrUnauthorized)
	ErrUserGone        = fmt.Errorf("%w: user not found", ErrUnauthorized)

	// Password reset failures collapse to this one value externally.
	ErrResetInvalid = errors.New("invalid or expired reset token")
)

// Moderation block codes surfaced to the client (403 is actionable, unlike
// the deliberately generic 401s).
const (
	CodeAccountBanned    = "ACCOUNT_BANNED"
	CodeAccountSuspended = "ACCOUNT_SUSPENDED"
)

// ModerationError carries the machine-readable block details for banned or
// suspended accounts.
type ModerationError struct {
	Code           string
	Reason         string
	SuspendedUntil *time.Time
}

func (e *ModerationError) Error() string {
	return fmt.Sprintf("account blocked: %s", e.Code)
}

func (e *ModerationError) Is(target error) bool {
	return target == ErrForbidden
}
