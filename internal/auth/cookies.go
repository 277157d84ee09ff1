package auth

import (
	"net/http"
	"time"
)

// Cookie names for the three token kinds.
const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
	ReauthCookieName  = "reauth_token"

	// The refresh cookie only travels to the endpoints that can consume it.
	refreshCookiePath = "/api/auth"
)

// CookieConfig holds cookie security settings shared by all auth cookies
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetAccessTokenCookie sets the access token in an httpOnly cookie
func SetAccessTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration, config CookieConfig) {
	setTokenCookie(w, AccessCookieName, token, "/", maxAge, config)
}

// SetRefreshTokenCookie sets the refresh token, path-scoped to /api/auth
func SetRefreshTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration, config CookieConfig) {
	setTokenCookie(w, RefreshCookieName, token, refreshCookiePath, maxAge, config)
}

// SetReauthTokenCookie sets the short-lived step-up token
func SetReauthTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration, config CookieConfig) {
	setTokenCookie(w, ReauthCookieName, token, "/", maxAge, config)
}

func setTokenCookie(w http.ResponseWriter, name, value, path string, maxAge time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   config.Domain,
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearAuthCookies expires all three auth cookies. Called on logout and on
// every terminal refresh failure.
func ClearAuthCookies(w http.ResponseWriter, config CookieConfig) {
	clearCookie(w, AccessCookieName, "/", config)
	clearCookie(w, RefreshCookieName, refreshCookiePath, config)
	clearCookie(w, ReauthCookieName, "/", config)
}

func clearCookie(w http.ResponseWriter, name, path string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ReadCookie retrieves a named cookie value, empty string if absent
func ReadCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
