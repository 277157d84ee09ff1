package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/calebmartin/corkboard/internal/auth"
	"github.com/calebmartin/corkboard/internal/config"
	"github.com/calebmartin/corkboard/internal/database"
	"github.com/calebmartin/corkboard/internal/handlers"
	middlewareCustom "github.com/calebmartin/corkboard/internal/middleware"
	"github.com/calebmartin/corkboard/internal/repositories"
	"github.com/calebmartin/corkboard/internal/routes"
	"github.com/calebmartin/corkboard/internal/services"
	pkghttp "github.com/calebmartin/corkboard/pkg/http"
	pkglogger "github.com/calebmartin/corkboard/pkg/logger"
)

// SentEmail represents a captured reset email
type SentEmail struct {
	To    string
	Token string
}

// CapturingMailer records reset tokens instead of sending mail
type CapturingMailer struct {
	mu   sync.Mutex
	Sent []SentEmail
}

func (m *CapturingMailer) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentEmail{To: email, Token: token})
	return nil
}

// LastEmail returns the most recent captured email, nil if none
func (m *CapturingMailer) LastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}

// TestServer wraps httptest.Server with the full service stack over a real
// database, mail captured in memory.
type TestServer struct {
	Server      *httptest.Server
	DB          *database.DB
	Mailer      *CapturingMailer
	Config      *config.Config
	AuthService *services.AuthService
}

// NewTestServer builds the production router over the given database
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry: 15 * time.Minute,
			ReauthTokenExpiry: 10 * time.Minute,
			ResetTokenExpiry:  30 * time.Minute,
			RefreshTTLDays:    30,
			RefreshMaxTTLDays: 30,
			CookieSameSite:    "lax",
			// No timing floor in tests: assertions should not wait on it
			TimingFloor:  0,
			TimingJitter: 0,
		},
	}

	userRepo := repositories.NewUserRepository(db)
	moderationRepo := repositories.NewModerationRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	resetConfirmStore := repositories.NewResetConfirmStore(db, userRepo, sessionRepo, resetRepo)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTTL(),
		cfg.Auth.ReauthTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)
	mailer := &CapturingMailer{}

	authService := services.NewAuthService(
		userRepo,
		moderationRepo,
		sessionRepo,
		tokenManager,
		logger,
		auditLogger,
		cfg.Auth.RefreshTTL(),
		cfg.Auth.RefreshMaxTTL(),
		nil,
	)
	resetService := services.NewPasswordResetService(
		userRepo,
		resetRepo,
		resetConfirmStore,
		mailer,
		logger,
		auditLogger,
		cfg.Auth.ResetTokenExpiry,
		false,
		nil,
	)

	cookieConfig := auth.CookieConfig{SameSite: cfg.Auth.CookieSameSite}
	timingGuard := auth.NewTimingGuard(cfg.Auth.TimingFloor, cfg.Auth.TimingJitter)
	ipConfig := &pkghttp.IPConfig{}

	authHandler := handlers.NewAuthHandler(authService, resetService, tokenManager, cookieConfig, timingGuard, ipConfig)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, tokenManager)

	return &TestServer{
		Server:      httptest.NewServer(r),
		DB:          db,
		Mailer:      mailer,
		Config:      cfg,
		AuthService: authService,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// NewClient returns an HTTP client with its own cookie jar, standing in for
// one browser. Separate clients model separate devices.
func (ts *TestServer) NewClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar}
}

// Post sends a JSON POST through the given client
func (ts *TestServer) Post(client *http.Client, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

// Get sends a GET through the given client
func (ts *TestServer) Get(client *http.Client, path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+path, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// ParseJSONResponse parses the response body into target and closes it
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrorCode extracts the machine-readable error code from an error response
func ErrorCode(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if code, ok := errResp["error"].(string); ok {
		return code, nil
	}
	return "", nil
}
