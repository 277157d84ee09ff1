package models

import (
	"time"
)

// PasswordResetToken is a one-time reset credential, stored hashed.
// UserID is nil for tombstone rows written when the requested email matched
// no account; those rows only exist so per-IP throttling has something to
// count and are never redeemable.
type PasswordResetToken struct {
	ID        string
	UserID    *string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
	IP        string
	UserAgent string
}

// Redeemable reports whether the token can still be consumed.
func (t *PasswordResetToken) Redeemable(now time.Time) bool {
	return t.UserID != nil && t.UsedAt == nil && t.ExpiresAt.After(now)
}
