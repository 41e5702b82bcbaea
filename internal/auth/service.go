package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/warden/internal/apperror"
	"github.com/keyxmakerx/warden/internal/cache"
	"github.com/keyxmakerx/warden/internal/hash"
	"github.com/keyxmakerx/warden/internal/mailer"
	"github.com/keyxmakerx/warden/internal/token"
)

// sendTimeout bounds the background delivery of a single email. Delivery is
// fire-and-forget: the HTTP response never waits on the mail relay.
const sendTimeout = 30 * time.Second

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository directly.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (accessToken string, err error)
	ConfirmEmail(ctx context.Context, rawToken string) error
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error

	// ResolveUser returns the projection for an authenticated username,
	// consulting the cache first and falling back to the repository.
	ResolveUser(ctx context.Context, username string) (cache.UserProjection, error)
}

// ProjectionCache is the slice of the session cache the auth service uses.
// The cache is advisory: a failed Set or Delete is logged, never fatal, and
// a Get miss always falls back to the repository.
type ProjectionCache interface {
	Set(ctx context.Context, p cache.UserProjection) error
	Get(ctx context.Context, username string) (cache.UserProjection, bool)
	Delete(ctx context.Context, username string) error
}

// authService implements AuthService. It orchestrates the credential hasher,
// the token service, the session cache, and the mailer; it owns none of their
// mechanics.
type authService struct {
	repo    UserRepository
	tokens  *token.Service
	cache   ProjectionCache
	mailer  mailer.Sender
	baseURL string
}

// NewAuthService creates a new auth service with the given collaborators.
func NewAuthService(repo UserRepository, tokens *token.Service, projections ProjectionCache, sender mailer.Sender, baseURL string) AuthService {
	return &authService{
		repo:    repo,
		tokens:  tokens,
		cache:   projections,
		mailer:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Register creates a new unverified user account. It checks email and
// username uniqueness, hashes the password with argon2id, persists the user,
// and dispatches a verification email in the background.
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	// Check uniqueness before doing expensive hashing. The unique indexes
	// remain the real guard; this is for the friendlier 409.
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, apperror.NewConflict("an account with this email already exists")
	}

	exists, err = s.repo.UsernameExists(ctx, username)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking username: %w", err))
	}
	if exists {
		return nil, apperror.NewConflict("this username is already taken")
	}

	passwordHash, err := hash.Hash(req.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsVerified:   false,
		Role:         RoleUser,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// The repository turns a lost uniqueness race into a conflict; pass
		// that through instead of masking it as a server fault.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	s.sendVerificationEmail(user.Email)

	return user, nil
}

// Login authenticates a user by email and password. Unknown email is a 404
// (the API deliberately distinguishes it from a bad password); an unverified
// account is rejected before the password is even checked. On success it
// issues an access token bound to the username and warms the session cache.
func (s *authService) Login(ctx context.Context, req LoginRequest) (string, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if isNotFound(err) {
			return "", apperror.NewNotFound("no account exists with this email")
		}
		return "", apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !user.IsVerified {
		return "", apperror.NewUnauthorized("account is not verified")
	}

	if !hash.Verify(req.Password, user.PasswordHash) {
		return "", apperror.NewUnauthorized("invalid credentials")
	}

	accessToken, err := s.tokens.Issue(token.PurposeAccess, user.Username)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("issuing access token: %w", err))
	}

	// Warm the cache so the first authenticated request skips the database.
	// Best effort: a failed write costs one repository lookup later.
	if err := s.cache.Set(ctx, projectionOf(user)); err != nil {
		slog.Warn("failed to warm user cache",
			slog.String("username", user.Username),
			slog.Any("error", err),
		)
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return accessToken, nil
}

// ConfirmEmail consumes an email verification token and marks the account
// verified. Confirming an already-verified account succeeds without mutation,
// so a double-clicked link is harmless.
func (s *authService) ConfirmEmail(ctx context.Context, rawToken string) error {
	email, err := s.tokens.Validate(ctx, rawToken, token.PurposeEmailVerify)
	if err != nil {
		return verificationTokenError(err)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			// The token is genuine but the account is gone. Same client
			// outcome as a bad token.
			return apperror.NewBadRequest("verification error")
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if user.IsVerified {
		return nil
	}

	if err := s.repo.MarkVerified(ctx, user.ID); err != nil {
		return apperror.NewInternal(fmt.Errorf("marking user verified: %w", err))
	}

	slog.Info("email verified", slog.String("user_id", user.ID))
	return nil
}

// ResendVerification sends a fresh verification email. Already-verified
// accounts get the same success response without an email, so the endpoint
// is safely idempotent.
func (s *authService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return apperror.NewNotFound("no account exists with this email")
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if user.IsVerified {
		return nil
	}

	s.sendVerificationEmail(user.Email)
	return nil
}

// RequestPasswordReset issues a password reset token and emails the reset
// link. Only verified accounts may reset: an unverified account has never
// proven control of its email address.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return apperror.NewNotFound("no account exists with this email")
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !user.IsVerified {
		return apperror.NewBadRequest("account is not verified")
	}

	resetToken, err := s.tokens.Issue(token.PurposePasswordReset, user.Email)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("issuing reset token: %w", err))
	}

	s.sendAsync(user.Email, "Reset your Warden password",
		"A password reset was requested for your account. Open the link below "+
			"to choose a new password. If you didn't request this, ignore this email.\n\n"+
			s.baseURL+"/auth/reset-password/"+resetToken)

	return nil
}

// ResetPassword consumes a password reset token and replaces the account's
// credential. The cached projection is invalidated and all outstanding tokens
// for the account are revoked, so stolen sessions die with the old password.
func (s *authService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	email, err := s.tokens.Validate(ctx, rawToken, token.PurposePasswordReset)
	if err != nil {
		return resetTokenError(err)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return apperror.NewNotFound("no account exists with this email")
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	passwordHash, err := hash.Hash(newPassword)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		if isNotFound(err) {
			return apperror.NewNotFound("no account exists with this email")
		}
		return apperror.NewInternal(fmt.Errorf("updating password: %w", err))
	}

	// The durable record changed; the projection must not outlive it.
	if err := s.cache.Delete(ctx, user.Username); err != nil {
		slog.Warn("failed to invalidate user cache after password reset",
			slog.String("username", user.Username),
			slog.Any("error", err),
		)
	}

	// Revoke outstanding tokens for both subject forms: access tokens are
	// bound to the username, verify/reset tokens to the email. This also
	// makes the just-consumed reset token single-use.
	for _, subject := range []string{user.Username, user.Email} {
		if err := s.tokens.Revoke(ctx, subject); err != nil {
			slog.Warn("failed to revoke outstanding tokens",
				slog.String("subject", subject),
				slog.Any("error", err),
			)
		}
	}

	slog.Info("password reset", slog.String("user_id", user.ID))
	return nil
}

// ResolveUser returns the projection for a username, cache first. On a miss
// it reads the repository and re-warms the cache.
func (s *authService) ResolveUser(ctx context.Context, username string) (cache.UserProjection, error) {
	if p, ok := s.cache.Get(ctx, username); ok {
		return p, nil
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return cache.UserProjection{}, apperror.NewUnauthorized("account no longer exists")
		}
		return cache.UserProjection{}, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	p := projectionOf(user)
	if err := s.cache.Set(ctx, p); err != nil {
		slog.Warn("failed to warm user cache",
			slog.String("username", username),
			slog.Any("error", err),
		)
	}
	return p, nil
}

// --- Email dispatch ---

// sendVerificationEmail issues a fresh verification token and dispatches the
// email in the background. Token issuance failures are logged, not surfaced:
// the account mutation already succeeded and the user can always resend.
func (s *authService) sendVerificationEmail(email string) {
	verifyToken, err := s.tokens.Issue(token.PurposeEmailVerify, email)
	if err != nil {
		slog.Error("failed to issue verification token",
			slog.String("email", email),
			slog.Any("error", err),
		)
		return
	}

	s.sendAsync(email, "Verify your Warden account",
		"Welcome to Warden. Open the link below to verify your email address.\n\n"+
			s.baseURL+"/auth/confirmed_email/"+verifyToken)
}

// sendAsync delivers one email in a background goroutine with its own
// timeout context, detached from the request lifecycle. Failures are logged.
func (s *authService) sendAsync(to, subject, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := s.mailer.SendMail(ctx, []string{to}, subject, body); err != nil {
			slog.Error("sending email failed",
				slog.String("to", to),
				slog.String("subject", subject),
				slog.Any("error", err),
			)
		}
	}()
}

// --- Helpers ---

// projectionOf builds the cacheable view of a user.
func projectionOf(u *User) cache.UserProjection {
	return cache.UserProjection{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		Role:       u.Role,
		AvatarURL:  u.AvatarURL,
	}
}

// normalizeEmail lowercases and trims an email address so lookups and
// uniqueness checks are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isNotFound reports whether err is a 404 AppError.
func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == 404
}

// verificationTokenError maps token validation failures onto the client
// responses for the email confirmation endpoint.
func verificationTokenError(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return apperror.NewBadRequest("verification link has expired")
	}
	if errors.Is(err, token.ErrMalformed) ||
		errors.Is(err, token.ErrInvalidSignature) ||
		errors.Is(err, token.ErrPurposeMismatch) ||
		errors.Is(err, token.ErrRevoked) {
		return apperror.NewBadRequest("invalid verification link")
	}
	return apperror.NewInternal(fmt.Errorf("validating verification token: %w", err))
}

// resetTokenError maps token validation failures onto the client responses
// for the password reset endpoint.
func resetTokenError(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return apperror.NewBadRequest("reset link has expired")
	}
	if errors.Is(err, token.ErrMalformed) ||
		errors.Is(err, token.ErrInvalidSignature) ||
		errors.Is(err, token.ErrPurposeMismatch) ||
		errors.Is(err, token.ErrRevoked) {
		return apperror.NewBadRequest("invalid or expired reset link")
	}
	return apperror.NewInternal(fmt.Errorf("validating reset token: %w", err))
}
