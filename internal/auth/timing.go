package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingGuard pads enumeration-sensitive handlers (login, forgot-password)
// to a shared latency floor so the hit and miss paths fall into the same
// timing class.
type TimingGuard struct {
	floor  time.Duration
	jitter time.Duration
}

// NewTimingGuard creates a guard with the given latency floor and random
// jitter ceiling.
func NewTimingGuard(floor, jitter time.Duration) *TimingGuard {
	return &TimingGuard{floor: floor, jitter: jitter}
}

// Equalize sleeps until at least floor (+ random jitter) has elapsed since
// start. If the work already took longer than the floor, only jitter is
// added.
func (g *TimingGuard) Equalize(start time.Time) {
	if g == nil {
		return
	}

	target := g.floor + cryptoRandDuration(g.jitter)
	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// cryptoRandDuration returns a secure random duration in [0, max).
// crypto/rand rather than math/rand: the jitter masks a security-relevant
// signal.
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}
