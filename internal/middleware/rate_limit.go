package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds per-IP rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// CredentialRateLimit covers the endpoints that accept a password or issue
// reset tokens. Low on purpose: a browser user never needs more than a
// handful of attempts per minute.
func CredentialRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 10}
}

// RefreshRateLimit covers /refresh, which well-behaved clients call once
// per access-token expiry but may burst on tab restore.
func RefreshRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 60}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Too many requests"}`))
		}),
	)
}
