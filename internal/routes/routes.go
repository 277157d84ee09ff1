package routes

import (
	"net/http"

	"github.com/calebmartin/corkboard/internal/auth"
	"github.com/calebmartin/corkboard/internal/handlers"
	"github.com/calebmartin/corkboard/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the credential and session lifecycle endpoints.
// Everything lives under /api; the refresh cookie is path-scoped to
// /api/auth so only these routes ever see it.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
) {
	// Each credential endpoint gets its own bucket so a burst of logins
	// cannot starve password resets from the same address.
	credentialLimit := func() func(http.Handler) http.Handler {
		return middleware.RateLimitByIP(middleware.CredentialRateLimit())
	}
	refreshLimit := middleware.RateLimitByIP(middleware.RefreshRateLimit())

	router.Route("/api/auth", func(r chi.Router) {
		// Public endpoints that accept credentials or issue tokens
		r.With(credentialLimit()).Post("/register", authHandler.Register)
		r.With(credentialLimit()).Post("/login", authHandler.Login)
		r.With(credentialLimit()).Post("/forgot-password", authHandler.ForgotPassword)
		r.With(credentialLimit()).Post("/reset-password", authHandler.ResetPassword)

		// Refresh and logout authenticate via the refresh cookie alone
		r.With(refreshLimit).Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		// Step-up reauth requires a live access token on top of the password
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAccessToken(tokenManager))
			r.With(credentialLimit()).Post("/reauth", authHandler.Reauth)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAccessToken(tokenManager))
		r.Get("/api/me", authHandler.Me)
	})
}
