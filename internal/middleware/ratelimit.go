package middleware

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/warden/internal/apperror"
	"github.com/keyxmakerx/warden/internal/ratelimit"
)

// RateLimit returns middleware that checks the caller's admission budget for
// the given route class. Identity is the client IP as resolved through the
// trusted-proxy extractor. The limiter must run before the gated handler --
// a denied request performs none of the gated work.
//
// If Redis is unreachable the limiter fails open: admission control degrades,
// requests proceed, and the failure is logged. Denials return 429 with a
// machine-distinguishable body and a Retry-After header.
func RateLimit(limiter *ratelimit.Limiter, routeClass string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res, err := limiter.Allow(c.Request().Context(), routeClass, c.RealIP())
			if err != nil {
				slog.Warn("rate limiter unavailable, failing open",
					slog.String("route_class", routeClass),
					slog.String("remote_ip", c.RealIP()),
					slog.Any("error", err),
				)
				return next(c)
			}

			if !res.Allowed {
				retryAfter := int(res.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return apperror.NewRateLimited("Rate limit exceeded. Please try again later.")
			}

			return next(c)
		}
	}
}
