package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/warden/internal/apperror"
	"github.com/keyxmakerx/warden/internal/auth"
	"github.com/keyxmakerx/warden/internal/cache"
	"github.com/keyxmakerx/warden/internal/mailer"
	"github.com/keyxmakerx/warden/internal/ratelimit"
	"github.com/keyxmakerx/warden/internal/token"
	"github.com/keyxmakerx/warden/internal/users"
)

// RegisterRoutes builds the service graph and sets up all application
// routes. This is the single place where collaborators are constructed and
// handed to each other.
func (a *App) RegisterRoutes() {
	e := a.Echo
	cfg := a.Config

	// Token service with Redis-backed revocation. Epochs are retained for
	// the longest configured TTL: once every pre-epoch token has expired
	// naturally the epoch has nothing left to reject.
	ttls := token.TTLs{
		Access:        cfg.Auth.AccessTokenTTL,
		EmailVerify:   cfg.Auth.VerifyTokenTTL,
		PasswordReset: cfg.Auth.ResetTokenTTL,
	}
	revocations := token.NewRedisRevocations(a.Redis, ttls.Longest())
	tokens := token.NewService([]byte(cfg.Auth.SecretKey), ttls, revocations)

	// Shared infrastructure on the one Redis client.
	projections := cache.New(a.Redis, cfg.Auth.CacheTTL)
	limiter := ratelimit.New(a.Redis, map[string]ratelimit.Policy{
		"login":    {Max: cfg.RateLimit.Login.Max, Window: cfg.RateLimit.Login.Window},
		"register": {Max: cfg.RateLimit.Register.Max, Window: cfg.RateLimit.Register.Window},
		"email":    {Max: cfg.RateLimit.Email.Max, Window: cfg.RateLimit.Email.Window},
		"password": {Max: cfg.RateLimit.Password.Max, Window: cfg.RateLimit.Password.Window},
		"read":     {Max: cfg.RateLimit.Read.Max, Window: cfg.RateLimit.Read.Window},
	}, ratelimit.Policy{Max: cfg.RateLimit.Default.Max, Window: cfg.RateLimit.Default.Window})

	sender := mailer.New(cfg.SMTP)

	// Auth surface.
	userRepo := auth.NewUserRepository(a.DB)
	authService := auth.NewAuthService(userRepo, tokens, projections, sender, cfg.BaseURL)
	auth.RegisterRoutes(e, auth.NewHandler(authService), limiter)

	// Profile surface.
	avatarStore := users.NewAvatarStore(cfg.Upload.MediaPath, cfg.Upload.MaxSize)
	usersService := users.NewService(userRepo, projections, avatarStore)
	users.RegisterRoutes(e, users.NewHandler(usersService, cfg.Upload.MaxSize), authService, tokens, limiter)

	// Health check endpoint for container orchestration. Pings both
	// backing stores with a short deadline.
	e.GET("/healthz", a.healthz)
}

// healthz reports the health of the database and Redis. An unreachable
// dependency surfaces as a 503 through the central error handler, with the
// ping failure kept for the logs.
func (a *App) healthz(c echo.Context) error {
	pingCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := a.DB.PingContext(pingCtx); err != nil {
		return apperror.NewUnavailable("database unreachable", err)
	}
	if err := a.Redis.Ping(pingCtx).Err(); err != nil {
		return apperror.NewUnavailable("redis unreachable", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
