package models

import (
	"time"
)

type User struct {
	ID             string
	Email          string // stored lowercase
	Username       string // stored lowercase, 3-20 chars, [A-Za-z0-9_]
	FirstName      string
	LastName       string
	PasswordDigest string
	IsAdmin        bool
	IsSuperadmin   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
