package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/warden/internal/middleware"
	"github.com/keyxmakerx/warden/internal/ratelimit"
)

// RegisterRoutes sets up all auth routes on the given Echo instance. Auth
// routes are public (no bearer token required) -- RequireAuth is exported
// separately for other packages to apply to their route groups.
//
// Every POST endpoint is rate-limited by route class to blunt brute-force
// and credential stuffing. The limiter runs before the handler, so a denied
// request never reaches the hasher or the database.
func RegisterRoutes(e *echo.Echo, h *Handler, limiter *ratelimit.Limiter) {
	g := e.Group("/auth")

	g.POST("/register", h.Register, middleware.RateLimit(limiter, "register"))
	g.POST("/login", h.Login, middleware.RateLimit(limiter, "login"))
	g.GET("/confirmed_email/:token", h.ConfirmEmail, middleware.RateLimit(limiter, "email"))
	g.POST("/request_email", h.ResendVerification, middleware.RateLimit(limiter, "email"))
	g.POST("/forgot-password", h.ForgotPassword, middleware.RateLimit(limiter, "password"))
	g.POST("/reset-password/:token", h.ResetPassword, middleware.RateLimit(limiter, "password"))
}
