package auth

import (
	"testing"
	"time"

	"github.com/calebmartin/corkboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-secret-at-least-32-chars-long!!", 15*time.Minute, 30*24*time.Hour, 10*time.Minute)
}

func TestTokenManager_SignAndVerify(t *testing.T) {
	tm := newTestTokenManager()

	for _, kind := range []string{models.TokenKindAccess, models.TokenKindRefresh, models.TokenKindReauth} {
		token, err := tm.Sign(kind, "user123", "bob@example.com", "session456")
		require.NoError(t, err, kind)

		claims, err := tm.Verify(kind, token)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, claims.Kind)
		assert.Equal(t, "user123", claims.UserID)
		assert.Equal(t, "session456", claims.SessionID)
	}
}

func TestTokenManager_EmailOnlyOnAccessTokens(t *testing.T) {
	tm := newTestTokenManager()

	access, err := tm.Sign(models.TokenKindAccess, "user123", "bob@example.com", "sid")
	require.NoError(t, err)
	claims, err := tm.Verify(models.TokenKindAccess, access)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)

	refresh, err := tm.Sign(models.TokenKindRefresh, "user123", "bob@example.com", "sid")
	require.NoError(t, err)
	claims, err = tm.Verify(models.TokenKindRefresh, refresh)
	require.NoError(t, err)
	assert.Empty(t, claims.Email)
}

func TestTokenManager_KindMismatchRejected(t *testing.T) {
	tm := newTestTokenManager()

	access, err := tm.Sign(models.TokenKindAccess, "user123", "", "sid")
	require.NoError(t, err)

	_, err = tm.Verify(models.TokenKindRefresh, access)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = tm.Verify(models.TokenKindReauth, access)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_ExpiredTokenRejected(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-32-chars-long!!", -1*time.Minute, 30*24*time.Hour, 10*time.Minute)

	token, err := tm.Sign(models.TokenKindAccess, "user123", "", "sid")
	require.NoError(t, err)

	_, err = tm.Verify(models.TokenKindAccess, token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_TamperedTokenRejected(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.Sign(models.TokenKindAccess, "user123", "", "sid")
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, err = tm.Verify(models.TokenKindAccess, tampered)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_WrongSecretRejected(t *testing.T) {
	tm := newTestTokenManager()
	other := NewTokenManager("a-completely-different-secret-value!", 15*time.Minute, 30*24*time.Hour, 10*time.Minute)

	token, err := other.Sign(models.TokenKindAccess, "user123", "", "sid")
	require.NoError(t, err)

	_, err = tm.Verify(models.TokenKindAccess, token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_GarbageRejected(t *testing.T) {
	tm := newTestTokenManager()

	for _, garbage := range []string{"", "not.a.jwt", "a.b"} {
		_, err := tm.Verify(models.TokenKindAccess, garbage)
		assert.ErrorIs(t, err, models.ErrUnauthorized, "token: %q", garbage)
	}
}

func TestTokenManager_UnknownKind(t *testing.T) {
	tm := newTestTokenManager()
	_, err := tm.Sign("banana", "user123", "", "sid")
	assert.Error(t, err)
}
