package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestSetAuthCookies_SecurityAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	config := CookieConfig{Secure: true, SameSite: "strict"}

	SetAccessTokenCookie(rec, "acc", 15*time.Minute, config)
	SetRefreshTokenCookie(rec, "ref", 30*24*time.Hour, config)
	SetReauthTokenCookie(rec, "rea", 10*time.Minute, config)

	for _, name := range []string{AccessCookieName, RefreshCookieName, ReauthCookieName} {
		c := findCookie(t, rec, name)
		assert.True(t, c.HttpOnly, name)
		assert.True(t, c.Secure, name)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite, name)
	}
}

func TestSetRefreshTokenCookie_PathScoped(t *testing.T) {
	rec := httptest.NewRecorder()
	SetRefreshTokenCookie(rec, "ref", time.Hour, CookieConfig{})

	c := findCookie(t, rec, RefreshCookieName)
	assert.Equal(t, "/api/auth", c.Path)
}

func TestClearAuthCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearAuthCookies(rec, CookieConfig{Secure: true, SameSite: "lax"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 3)
	for _, c := range cookies {
		assert.Empty(t, c.Value, c.Name)
		assert.Negative(t, c.MaxAge, c.Name)
	}
}

func TestReadCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "tok"})

	assert.Equal(t, "tok", ReadCookie(r, RefreshCookieName))
	assert.Empty(t, ReadCookie(r, AccessCookieName))
}
