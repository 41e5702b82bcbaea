package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/warden/internal/apperror"
	"github.com/keyxmakerx/warden/internal/cache"
	"github.com/keyxmakerx/warden/internal/token"
)

// Context key for the authenticated user's projection. Other packages read
// it via the exported getter below.
const contextKeyUser = "auth_user"

// RequireAuth returns middleware that validates the bearer token and injects
// the authenticated user's projection into the request context. The token is
// only accepted for its session purpose: a leaked verification or reset link
// never authenticates a request.
func RequireAuth(service AuthService, tokens *token.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return apperror.NewUnauthorized("missing bearer token")
			}

			username, err := tokens.Validate(c.Request().Context(), raw, token.PurposeAccess)
			if err != nil {
				return apperror.NewUnauthorized("invalid or expired token")
			}

			user, err := service.ResolveUser(c.Request().Context(), username)
			if err != nil {
				return err
			}

			c.Set(contextKeyUser, user)
			return next(c)
		}
	}
}

// RequireAdmin returns middleware that rejects non-admin users with 403.
// Must run after RequireAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get(contextKeyUser).(cache.UserProjection)
			if !ok {
				return apperror.NewUnauthorized("authentication required")
			}
			if user.Role != RoleAdmin {
				return apperror.NewForbidden("admin access required")
			}
			return next(c)
		}
	}
}

// GetUser retrieves the authenticated user's projection from the Echo
// context. The second return is false if the request is not authenticated
// (middleware not applied).
func GetUser(c echo.Context) (cache.UserProjection, bool) {
	user, ok := c.Get(contextKeyUser).(cache.UserProjection)
	return user, ok
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns empty string if the header is absent or malformed.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
