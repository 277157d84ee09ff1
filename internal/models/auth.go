package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token kinds minted by the codec. The kind is embedded in the claims and
// checked on verification, so an access token can never stand in for a
// refresh or reauth token.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
	TokenKindReauth  = "reauth"
)

type TokenClaims struct {
	Kind      string `json:"kind"`
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
