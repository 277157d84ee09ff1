package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calebmartin/corkboard/internal/auth"
	"github.com/calebmartin/corkboard/internal/config"
	"github.com/calebmartin/corkboard/internal/database"
	"github.com/calebmartin/corkboard/internal/handlers"
	middlewareCustom "github.com/calebmartin/corkboard/internal/middleware"
	"github.com/calebmartin/corkboard/internal/models"
	"github.com/calebmartin/corkboard/internal/repositories"
	"github.com/calebmartin/corkboard/internal/routes"
	"github.com/calebmartin/corkboard/internal/services"
	pkgauth "github.com/calebmartin/corkboard/pkg/auth"
	pkghttp "github.com/calebmartin/corkboard/pkg/http"
	pkglogger "github.com/calebmartin/corkboard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := database.Migrate(&cfg.Database, logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
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
	timingGuard := auth.NewTimingGuard(cfg.Auth.TimingFloor, cfg.Auth.TimingJitter)

	// Reset emails go through SES in production; in development the raw
	// link lands in the log instead.
	var mailer services.ResetMailer
	if cfg.IsProduction() {
		sesMailer, err := services.NewAWSSESEmailService(
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.ResetURLBase,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	} else {
		mailer = services.NewLogOnlyEmailService(cfg.Email.ResetURLBase, logger)
	}

	// Services
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
		cfg.IsProduction(),
		nil,
	)

	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	authHandler := handlers.NewAuthHandler(authService, resetService, tokenManager, cookieConfig, timingGuard, ipConfig)

	// Bootstrap the first superadmin account if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, tokenManager)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first superadmin if ADMIN_EMAIL and
// ADMIN_PASSWORD are set. Safe to run on every boot.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	digest, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:          adminEmail,
		Username:       "admin",
		FirstName:      "Site",
		LastName:       "Admin",
		PasswordDigest: digest,
		IsAdmin:        true,
		IsSuperadmin:   true,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}
