package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marchalgreen/Rundeklar-sub004/internal/auth"
	"github.com/marchalgreen/Rundeklar-sub004/internal/handlers"
	"github.com/marchalgreen/Rundeklar-sub004/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
) {
	// Request throttle for the login endpoint; the lockout gates inside
	// the service enforce the account and address limits on top.
	rateLimitConfig := middleware.DefaultLoginRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/v1/auth/login", authHandler.Login)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.Get("/v1/auth/session", authHandler.Session)
	})
}
