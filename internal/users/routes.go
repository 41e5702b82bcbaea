package users

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/warden/internal/auth"
	"github.com/keyxmakerx/warden/internal/middleware"
	"github.com/keyxmakerx/warden/internal/ratelimit"
	"github.com/keyxmakerx/warden/internal/token"
)

// RegisterRoutes sets up profile routes. All of them require a bearer token.
//
// The avatar route is additionally admin-gated: the upstream API restricts
// avatar changes to administrators, and Warden keeps that behavior.
func RegisterRoutes(e *echo.Echo, h *Handler, authService auth.AuthService, tokens *token.Service, limiter *ratelimit.Limiter) {
	g := e.Group("/users", auth.RequireAuth(authService, tokens))

	g.GET("/me", h.Me, middleware.RateLimit(limiter, "read"))
	g.PATCH("/avatar", h.UpdateAvatar, auth.RequireAdmin(), middleware.RateLimit(limiter, "read"))
}
