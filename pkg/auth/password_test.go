package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_ProducesPHCFormat(t *testing.T) {
	digest, err := HashPassword("correcthorsebattery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$v=19$m=19456,t=2,p=1$"))
}

func TestHashPassword_EmptyPassword(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestVerifyPassword_Match(t *testing.T) {
	digest, err := HashPassword("correcthorsebattery")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(digest, "correcthorsebattery"))
}

func TestVerifyPassword_Mismatch(t *testing.T) {
	digest, err := HashPassword("correcthorsebattery")
	require.NoError(t, err)
	assert.False(t, VerifyPassword(digest, "wronghorse"))
}

func TestVerifyPassword_UniqueSalts(t *testing.T) {
	d1, err := HashPassword("correcthorsebattery")
	require.NoError(t, err)
	d2, err := HashPassword("correcthorsebattery")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
	assert.True(t, VerifyPassword(d1, "correcthorsebattery"))
	assert.True(t, VerifyPassword(d2, "correcthorsebattery"))
}

func TestVerifyPassword_MalformedDigest(t *testing.T) {
	malformed := []string{
		"",
		"not-a-digest",
		"$argon2id$v=19$m=19456,t=2,p=1$short",
		"$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=abc,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!",
	}

	for _, digest := range malformed {
		assert.False(t, VerifyPassword(digest, "anything"), "digest: %q", digest)
	}
}

func TestGenerateResetToken(t *testing.T) {
	token, hash, err := GenerateResetToken()
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, HashToken(token), hash)
	assert.Len(t, hash, 64) // sha256 hex

	token2, hash2, err := GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
	assert.NotEqual(t, hash, hash2)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("correcthorsebattery"))
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("a", 129)))
	assert.Error(t, ValidatePassword("Password123"))
}
