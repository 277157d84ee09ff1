package models

import (
	"time"
)

// Moderation status values.
const (
	ModerationActive    = "active"
	ModerationSuspended = "suspended"
	ModerationBanned    = "banned"
)

// ModerationStatus is a 1:1 companion row for a user, created lazily by
// admin actions. A missing row means the account is active.
type ModerationStatus struct {
	UserID         string
	Status         string
	Reason         *string
	SuspendedUntil *time.Time
	UpdatedAt      time.Time
}

// SuspensionExpired reports whether a suspension has a deadline that has
// already passed. Indefinite suspensions (nil deadline) never expire.
func (m *ModerationStatus) SuspensionExpired(now time.Time) bool {
	return m.Status == ModerationSuspended &&
		m.SuspendedUntil != nil &&
		!m.SuspendedUntil.After(now)
}
