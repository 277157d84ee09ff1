package auth

import (
	"fmt"
	"time"

	"github.com/calebmartin/corkboard/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager mints and verifies the three token kinds: access (minutes),
// refresh (days, sliding), reauth (step-up, ~10 minutes). All are HS256
// signed with a single server secret; the kind claim is enforced on both
// ends so tokens cannot cross purposes.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	reauthTTL  time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessTTL, refreshTTL, reauthTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		reauthTTL:  reauthTTL,
	}
}

// TTL returns the lifetime configured for a token kind.
func (tm *TokenManager) TTL(kind string) time.Duration {
	switch kind {
	case models.TokenKindAccess:
		return tm.accessTTL
	case models.TokenKindRefresh:
		return tm.refreshTTL
	case models.TokenKindReauth:
		return tm.reauthTTL
	}
	return 0
}

// Sign mints a token of the given kind bound to a user and session. Email
// is only carried on access tokens; refresh and reauth tokens hold the
// minimum needed to re-identify the session.
func (tm *TokenManager) Sign(kind, userID, email, sessionID string) (string, error) {
	ttl := tm.TTL(kind)
	if ttl <= 0 {
		return "", fmt.Errorf("unknown token kind: %q", kind)
	}
	if kind != models.TokenKindAccess {
		email = ""
	}

	now := time.Now()
	claims := &models.TokenClaims{
		Kind:      kind,
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return token, nil
}

// Verify checks signature, expiry and kind. Every failure collapses to
// ErrUnauthorized: callers must not be able to tell a forged token from a
// lapsed one.
func (tm *TokenManager) Verify(kind, tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Kind != kind || claims.UserID == "" || claims.SessionID == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
