package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingGuard_EnforcesFloor(t *testing.T) {
	guard := NewTimingGuard(30*time.Millisecond, 0)

	start := time.Now()
	guard.Equalize(start)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestTimingGuard_NoSleepPastFloor(t *testing.T) {
	guard := NewTimingGuard(5*time.Millisecond, 0)

	start := time.Now().Add(-time.Second)
	before := time.Now()
	guard.Equalize(start)
	assert.Less(t, time.Since(before), 5*time.Millisecond)
}

func TestTimingGuard_NilSafe(t *testing.T) {
	var guard *TimingGuard
	guard.Equalize(time.Now()) // must not panic
}

func TestCryptoRandDuration_Bounds(t *testing.T) {
	for range 100 {
		d := cryptoRandDuration(10 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 10*time.Millisecond)
	}
	assert.Zero(t, cryptoRandDuration(0))
}
