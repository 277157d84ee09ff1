package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calebmartin/corkboard/internal/auth"
	"github.com/calebmartin/corkboard/internal/models"
	"github.com/calebmartin/corkboard/internal/services"
	pkghttp "github.com/calebmartin/corkboard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc func(ctx context.Context, email, username, firstName, lastName, password string) (*services.UserResponse, error)
	LoginFunc    func(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResponse, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	ReauthFunc   func(ctx context.Context, userID, sessionID, password string) (string, time.Duration, error)
	LogoutFunc   func(ctx context.Context, refreshToken string)
	GetUserFunc  func(ctx context.Context, userID string) (*services.UserResponse, error)
}

func (m *MockAuthService) Register(ctx context.Context, email, username, firstName, lastName, password string) (*services.UserResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, username, firstName, lastName, password)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ip, userAgent)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Reauth(ctx context.Context, userID, sessionID, password string) (string, time.Duration, error) {
	if m.ReauthFunc != nil {
		return m.ReauthFunc(ctx, userID, sessionID, password)
	}
	return "", 0, models.ErrUnauthorized
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, refreshToken)
	}
}

func (m *MockAuthService) GetUser(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, userID)
	}
	return nil, models.ErrUnauthorized
}

// MockResetService implements PasswordResetServiceInterface for testing
type MockResetService struct {
	RequestResetFunc func(ctx context.Context, email, ip, userAgent string) error
	ConfirmResetFunc func(ctx context.Context, email, token, newPassword string) error
}

func (m *MockResetService) RequestReset(ctx context.Context, email, ip, userAgent string) error {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email, ip, userAgent)
	}
	return nil
}

func (m *MockResetService) ConfirmReset(ctx context.Context, email, token, newPassword string) error {
	if m.ConfirmResetFunc != nil {
		return m.ConfirmResetFunc(ctx, email, token, newPassword)
	}
	return nil
}

func newTestHandler(service AuthServiceInterface, resetService PasswordResetServiceInterface) *AuthHandler {
	tm := auth.NewTokenManager("test-secret-at-least-16-chars", 15*time.Minute, 30*24*time.Hour, 10*time.Minute)
	return NewAuthHandler(
		service,
		resetService,
		tm,
		auth.CookieConfig{SameSite: "lax"},
		auth.NewTimingGuard(0, 0),
		&pkghttp.IPConfig{},
	)
}

func testUserResponse() *services.UserResponse {
	return &services.UserResponse{
		ID:       "user_1",
		Email:    "alice@example.com",
		Username: "alice",
	}
}

func testAuthResponse() *services.AuthResponse {
	return &services.AuthResponse{
		User:         testUserResponse(),
		AccessToken:  "signed-access",
		RefreshToken: "signed-refresh",
		SessionID:    "session_1",
	}
}

func cookieByName(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_Success_SetsCookies(t *testing.T) {
	handler := newTestHandler(&MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResponse, error) {
			return testAuthResponse(), nil
		},
	}, &MockResetService{})

	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"correct-horse-battery"}`))
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	access := cookieByName(t, cookies, auth.AccessCookieName)
	refresh := cookieByName(t, cookies, auth.RefreshCookieName)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.Equal(t, "signed-access", access.Value)
	assert.Equal(t, "signed-refresh", refresh.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "/api/auth", refresh.Path)

	// Tokens ride only in cookies, never in the body
	assert.NotContains(t, w.Body.String(), "signed-refresh")
	assert.NotContains(t, w.Body.String(), "signed-access")
	assert.Contains(t, w.Body.String(), `"email":"alice@example.com"`)
}

func TestLogin_GenericFailureBodiesAreIdentical(t *testing.T) {
	handler := newTestHandler(&MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResponse, error) {
			return nil, models.ErrUnauthorized
		},
	}, &MockResetService{})

	bodies := make([]string, 0, 2)
	for _, payload := range []string{
		`{"email":"nobody@example.com","password":"whatever-password"}`,
		`{"email":"alice@example.com","password":"wrong-password-here"}`,
	} {
		req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(payload))
		w := httptest.NewRecorder()
		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		bodies = append(bodies, w.Body.String())
	}

	assert.Equal(t, bodies[0], bodies[1], "unknown email and wrong password must be indistinguishable")
	assert.Contains(t, bodies[0], "INVALID_CREDENTIALS")
}

func TestLogin_ModerationBlockIs403(t *testing.T) {
	until := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	handler := newTestHandler(&MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResponse, error) {
			return nil, &models.ModerationError{
				Code:           models.CodeAccountSuspended,
				Reason:         "spam listings",
				SuspendedUntil: &until,
			}
		},
	}, &MockResetService{})

	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"correct-horse-battery"}`))
	w := httptest.NewRecorder()
	handler.Login(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ACCOUNT_SUSPENDED")
	assert.Contains(t, w.Body.String(), "spam listings")
	assert.Contains(t, w.Body.String(), "suspended_until")
}

func TestLogin_InvalidBody(t *testing.T) {
	handler := newTestHandler(&MockAuthService{}, &MockResetService{})

	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"not-an-email","password":"x"}`))
	w := httptest.NewRecorder()
	handler.Login(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_Created(t *testing.T) {
	handler := newTestHandler(&MockAuthService{
		RegisterFunc: func(ctx context.Context, email, username, firstName, lastName, password string) (*services.UserResponse, error) {
			return testUserResponse(), nil
		},
	}, &MockResetService{})

	body := `{"email":"alice@example.com","username":"alice","first_name":"Alice","last_name":"Smith","password":"correct-horse-battery"}`
	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.Register(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Result().Cookies(), "registration does not log the user in")
}

func TestRegister_Conflicts(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"email taken", models.ErrEmailTaken, "EMAIL_TAKEN"},
		{"username taken", models.ErrUsernameTaken, "USERNAME_TAKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(&MockAuthService{
				RegisterFunc: func(ctx context.Context, email, username, firstName, lastName, password string) (*services.UserResponse, error) {
					return nil, tt.err
				},
			}, &MockResetService{})

			body := `{"email":"alice@example.com","username":"alice","first_name":"A","last_name":"B","password":"correct-horse-battery"}`
			req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
			w := httptest.NewRecorder()
			handler.Register(w, req)

			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestRegister_BadUsername(t *testing.T) {
	handler := newTestHandler(&MockAuthService{}, &MockResetService{})

	body := `{"email":"alice@example.com","username":"al ice!","first_name":"A","last_name":"B","password":"correct-horse-battery"}`
	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefresh_Success(t *testing.T) {
	handler := newTestHandler(&MockAuthService{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
			assert.Equal(t, "old-refresh", refreshToken)
			return testAuthResponse(), nil
		},
	}, &MockResetService{})

	req := httptest.NewRequest("POST", "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshCookieName, Value: "old-refresh"})
	w := httptest.NewRecorder()
	handler.Refresh(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	refresh := cookieByName(t, w.Result().Cookies(), auth.RefreshCookieName)
	require.NotNil(t, refresh)
	assert.Equal(t, "signed-refresh", refresh.Value)
}

func TestRefresh_FailureClearsCookiesWithReasonCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"not found", models.ErrSessionNotFound, "SESSION_NOT_FOUND"},
		{"revoked", models.ErrSessionRevoked, "SESSION_REVOKED"},
		{"expired", models.ErrSessionExpired, "SESSION_EXPIRED"},
		{"reuse", models.ErrTokenReuse, "REFRESH_TOKEN_REUSE_DETECTED"},
		{"user gone", models.ErrUserGone, "USER_NOT_FOUND"},
		{"bad token", models.ErrUnauthorized, "INVALID_REFRESH_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(&MockAuthService{
				RefreshFunc: func(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
					return nil, tt.err
				},
			}, &MockResetService{})

			req := httptest.NewRequest("POST", "/api/auth/refresh", nil)
			req.AddCookie(&http.Cookie{Name: auth.RefreshCookieName, Value: "stale"})
			w := httptest.NewRecorder()
			handler.Refresh(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)

			refresh := cookieByName(t, w.Result().Cookies(), auth.RefreshCookieName)
			require.NotNil(t, refresh, "terminal refresh failure must clear cookies")
			assert.Empty(t, refresh.Value)
			assert.Negative(t, refresh.MaxAge)
		})
	}
}

func TestReauth_SetsStepUpCookie(t *testing.T) {
	handler := newTestHandler(&MockAuthService{
		ReauthFunc: func(ctx context.Context, userID, sessionID, password string) (string, time.Duration, error) {
			assert.Equal(t, "user_1", userID)
			assert.Equal(t, "session_1", sessionID)
			return "signed-reauth", 10 * time.Minute, nil
		},
	}, &MockResetService{})

	req := httptest.NewRequest("POST", "/api/auth/reauth", strings.NewReader(`{"password":"correct-horse-battery"}`))
	claims := &models.TokenClaims{UserID: "user_1", SessionID: "session_1"}
	req = req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
	w := httptest.NewRecorder()
	handler.Reauth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"expires_in_sec":600`)

	reauth := cookieByName(t, w.Result().Cookies(), auth.ReauthCookieName)
	require.NotNil(t, reauth)
	assert.Equal(t, "signed-reauth", reauth.Value)
	assert.True(t, reauth.HttpOnly)
}

func TestReauth_WrongPasswordIsGeneric401(t *testing.T) {
	handler := newTestHandler(&MockAuthService{
		ReauthFunc: func(ctx context.Context, userID, sessionID, password string) (string, time.Duration, error) {
			return "", 0, models.ErrUnauthorized
		},
	}, &MockResetService{})

	req := httptest.NewRequest("POST", "/api/auth/reauth", strings.NewReader(`{"password":"wrong-password-here"}`))
	claims := &models.TokenClaims{UserID: "user_1", SessionID: "session_1"}
	req = req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
	w := httptest.NewRecorder()
	handler.Reauth(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
}

func TestLogout_AlwaysSucceedsAndClearsCookies(t *testing.T) {
	loggedOut := ""
	handler := newTestHandler(&MockAuthService{
		LogoutFunc: func(ctx context.Context, refreshToken string) {
			loggedOut = refreshToken
		},
	}, &MockResetService{})

	// With a refresh cookie
	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshCookieName, Value: "live-refresh"})
	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, "live-refresh", loggedOut)

	access := cookieByName(t, w.Result().Cookies(), auth.AccessCookieName)
	require.NotNil(t, access)
	assert.Negative(t, access.MaxAge)

	// Without any cookie at all: same response
	req = httptest.NewRequest("POST", "/api/auth/logout", nil)
	w = httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestForgotPassword_IdenticalResponses(t *testing.T) {
	handler := newTestHandler(&MockAuthService{}, &MockResetService{
		RequestResetFunc: func(ctx context.Context, email, ip, userAgent string) error {
			return nil // known and unknown emails both land here with nil
		},
	})

	bodies := make([]string, 0, 2)
	for _, payload := range []string{
		`{"email":"alice@example.com"}`,
		`{"email":"nobody@example.com"}`,
	} {
		req := httptest.NewRequest("POST", "/api/auth/forgot-password", strings.NewReader(payload))
		w := httptest.NewRecorder()
		handler.ForgotPassword(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		bodies = append(bodies, w.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.JSONEq(t, `{"ok":true}`, bodies[0])
}

func TestForgotPassword_InfrastructureFailure(t *testing.T) {
	handler := newTestHandler(&MockAuthService{}, &MockResetService{
		RequestResetFunc: func(ctx context.Context, email, ip, userAgent string) error {
			return models.ErrInternalServer
		},
	})

	req := httptest.NewRequest("POST", "/api/auth/forgot-password", strings.NewReader(`{"email":"alice@example.com"}`))
	w := httptest.NewRecorder()
	handler.ForgotPassword(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"success", nil, http.StatusOK, `"ok":true`},
		{"invalid token", models.ErrResetInvalid, http.StatusBadRequest, "invalid_or_expired"},
		{"weak password", models.ErrBadRequest, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(&MockAuthService{}, &MockResetService{
				ConfirmResetFunc: func(ctx context.Context, email, token, newPassword string) error {
					return tt.err
				},
			})

			body := `{"email":"alice@example.com","token":"raw-token","new_password":"brand-new-password"}`
			req := httptest.NewRequest("POST", "/api/auth/reset-password", strings.NewReader(body))
			w := httptest.NewRecorder()
			handler.ResetPassword(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestMe(t *testing.T) {
	handler := newTestHandler(&MockAuthService{
		GetUserFunc: func(ctx context.Context, userID string) (*services.UserResponse, error) {
			assert.Equal(t, "user_1", userID)
			return testUserResponse(), nil
		},
	}, &MockResetService{})

	req := httptest.NewRequest("GET", "/api/me", nil)
	claims := &models.TokenClaims{UserID: "user_1", SessionID: "session_1"}
	req = req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
	w := httptest.NewRecorder()
	handler.Me(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	// No claims in context (route misconfiguration) fails closed
	req = httptest.NewRequest("GET", "/api/me", nil)
	w = httptest.NewRecorder()
	handler.Me(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
