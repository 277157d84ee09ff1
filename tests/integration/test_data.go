package integration

import (
	"fmt"
	"time"
)

// UniqueUser generates unique test credentials using a timestamp so
// parallel tests never collide on the case-insensitive unique indexes.
func UniqueUser(suffix string) (email, username, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	username = fmt.Sprintf("user_%d_%s", ts, suffix)
	password = "correct-horse-battery"
	return
}
