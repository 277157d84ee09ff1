package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/calebmartin/corkboard/internal/auth"
	"github.com/calebmartin/corkboard/internal/models"
	"github.com/calebmartin/corkboard/internal/services"
	pkghttp "github.com/calebmartin/corkboard/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, email, username, firstName, lastName, password string) (*services.UserResponse, error)
	Login(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	Reauth(ctx context.Context, userID, sessionID, password string) (string, time.Duration, error)
	Logout(ctx context.Context, refreshToken string)
	GetUser(ctx context.Context, userID string) (*services.UserResponse, error)
}

// PasswordResetServiceInterface defines the interface for the reset flow
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email, ip, userAgent string) error
	ConfirmReset(ctx context.Context, email, token, newPassword string) error
}

// AuthHandler maps the /api/auth surface onto the auth services and owns
// all cookie writes.
type AuthHandler struct {
	service      AuthServiceInterface
	resetService PasswordResetServiceInterface
	tm           *auth.TokenManager
	cookieConfig auth.CookieConfig
	timing       *auth.TimingGuard
	ipConfig     *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service AuthServiceInterface,
	resetService PasswordResetServiceInterface,
	tm *auth.TokenManager,
	cookieConfig auth.CookieConfig,
	timing *auth.TimingGuard,
	ipConfig *pkghttp.IPConfig,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		resetService: resetService,
		tm:           tm,
		cookieConfig: cookieConfig,
		timing:       timing,
		ipConfig:     ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,min=3,max=20,username_chars"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Password  string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ReauthRequest represents the request body for step-up re-authentication
type ReauthRequest struct {
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for confirming a reset
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type userEnvelope struct {
	User *services.UserResponse `json:"user"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Register handles user registration. No cookies: the caller logs in next.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Username, req.FirstName, req.LastName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmailTaken):
			pkghttp.WriteConflict(w, "EMAIL_TAKEN", "An account with this email already exists")
		case errors.Is(err, models.ErrUsernameTaken):
			pkghttp.WriteConflict(w, "USERNAME_TAKEN", "This username is already in use")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userEnvelope{User: user})
}

// Login handles user login. Unknown email and wrong password produce the
// same response; moderation blocks are the one deliberate exception.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, ip, userAgent)
	if err != nil {
		h.timing.Equalize(start)

		var modErr *models.ModerationError
		switch {
		case errors.As(err, &modErr):
			details := map[string]any{"reason": modErr.Reason}
			if modErr.SuspendedUntil != nil {
				details["suspended_until"] = modErr.SuspendedUntil.UnixMilli()
			}
			pkghttp.WriteForbidden(w, modErr.Code, "Account access restricted", details)
		case errors.Is(err, models.ErrUnauthorized):
			writeInvalidCredentials(w)
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.setSessionCookies(w, resp)
	h.timing.Equalize(start)
	pkghttp.WriteJSON(w, http.StatusOK, userEnvelope{User: resp.User})
}

// refreshFailureCode maps the refresh terminal states to their reason codes
func refreshFailureCode(err error) string {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, models.ErrSessionRevoked):
		return "SESSION_REVOKED"
	case errors.Is(err, models.ErrSessionExpired):
		return "SESSION_EXPIRED"
	case errors.Is(err, models.ErrTokenReuse):
		return "REFRESH_TOKEN_REUSE_DETECTED"
	case errors.Is(err, models.ErrUserGone):
		return "USER_NOT_FOUND"
	default:
		return "INVALID_REFRESH_TOKEN"
	}
}

// Refresh rotates the refresh token. Every terminal failure clears the
// auth cookies before returning 401.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := auth.ReadCookie(r, auth.RefreshCookieName)

	resp, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			auth.ClearAuthCookies(w, h.cookieConfig)
			pkghttp.WriteError(w, http.StatusUnauthorized, refreshFailureCode(err), "Authentication failed")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.setSessionCookies(w, resp)
	pkghttp.WriteJSON(w, http.StatusOK, userEnvelope{User: resp.User})
}

// Reauth proves recent password re-entry and sets the short-lived step-up
// cookie. Requires a valid access token.
func (h *AuthHandler) Reauth(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ReauthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	token, ttl, err := h.service.Reauth(r.Context(), claims.UserID, claims.SessionID, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			writeInvalidCredentials(w)
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetReauthTokenCookie(w, token, ttl, h.cookieConfig)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"expires_in_sec": int(ttl.Seconds()),
	})
}

// Logout revokes the session behind the refresh cookie, best effort. The
// response is 200 {ok:true} no matter what; the cookies always get cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken := auth.ReadCookie(r, auth.RefreshCookieName); refreshToken != "" {
		h.service.Logout(r.Context(), refreshToken)
	}

	auth.ClearAuthCookies(w, h.cookieConfig)
	pkghttp.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// ForgotPassword accepts a reset request. The response shape is identical
// whether or not the email matched an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	err := h.resetService.RequestReset(r.Context(), req.Email, ip, userAgent)
	h.timing.Equalize(start)
	if err != nil {
		// Only infrastructure failure on the token write path lands here;
		// lookup outcomes never do.
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// ResetPassword confirms a reset with the emailed token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.resetService.ConfirmReset(r.Context(), req.Email, req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrResetInvalid):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_or_expired", "Invalid or expired reset token")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// setSessionCookies installs the access and refresh cookies from a login
// or refresh response.
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, resp *services.AuthResponse) {
	auth.SetAccessTokenCookie(w, resp.AccessToken, h.tm.TTL(models.TokenKindAccess), h.cookieConfig)
	auth.SetRefreshTokenCookie(w, resp.RefreshToken, h.tm.TTL(models.TokenKindRefresh), h.cookieConfig)
}

// writeInvalidCredentials is the single generic 401 for credential
// failures; login and reauth share it byte for byte.
func writeInvalidCredentials(w http.ResponseWriter) {
	pkghttp.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
}
