package models

import (
	"time"
)

// Session is the server-side ledger entry behind a refresh token. Only the
// SHA-256 hash of the current refresh token is stored; rotation overwrites
// it, so at most one refresh token is redeemable per session.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	CreatedAt        time.Time // hard-cap anchor, never touched by rotation
	LastUsedAt       time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	UserAgent        string
	IP               string
}

// IsRevoked reports whether the session has been terminated.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired checks the sliding expiry against the given instant.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// PastHardCap checks the ceiling anchored to session creation.
func (s *Session) PastHardCap(now time.Time, maxTTL time.Duration) bool {
	return !s.CreatedAt.Add(maxTTL).After(now)
}
