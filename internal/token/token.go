// Package token issues and validates the signed, time-bound tokens Warden
// uses for login sessions, email verification, and password reset. All three
// share one wire format (JWT, HS256) and one signing key; the purpose claim
// is what keeps a password-reset token from being replayed as a session
// token, so it is checked on every consumption path.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose identifies what a token may be consumed for.
type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposeEmailVerify   Purpose = "email_verify"
	PurposePasswordReset Purpose = "password_reset"
)

// Validation errors. Each is distinguishable with errors.Is so callers can
// map them to different user-facing messages.
var (
	// ErrMalformed means the string is not a well-formed token.
	ErrMalformed = errors.New("malformed token")

	// ErrInvalidSignature means the token was tampered with or signed with
	// a different key.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpired means the token is past its TTL.
	ErrExpired = errors.New("token expired")

	// ErrPurposeMismatch means the signature is valid but the token was
	// issued for a different purpose than the one being consumed.
	ErrPurposeMismatch = errors.New("token purpose mismatch")

	// ErrRevoked means the token was issued before the subject's
	// revocation epoch (e.g., the password was changed since).
	ErrRevoked = errors.New("token revoked")
)

// Claims is the JWT payload: registered claims plus the purpose claim.
type Claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"purpose"`
}

// RevocationStore tracks a per-subject revocation epoch. Tokens issued at or
// before the epoch are rejected during validation. A nil store keeps tokens
// purely stateless (no revocation before natural expiry).
type RevocationStore interface {
	// RevokedSince returns the subject's revocation epoch, or the zero
	// time if nothing has been revoked.
	RevokedSince(ctx context.Context, subject string) (time.Time, error)

	// Revoke invalidates all tokens issued to the subject up to now.
	Revoke(ctx context.Context, subject string) error
}

// TTLs holds the configured lifetime for each token purpose. Verification
// and reset tokens expire independently of session tokens.
type TTLs struct {
	Access        time.Duration
	EmailVerify   time.Duration
	PasswordReset time.Duration
}

// Longest returns the largest configured TTL. Used as the retention period
// for revocation epochs -- once every token issued before the epoch has
// expired naturally, the epoch itself is dead weight.
func (t TTLs) Longest() time.Duration {
	longest := t.Access
	if t.EmailVerify > longest {
		longest = t.EmailVerify
	}
	if t.PasswordReset > longest {
		longest = t.PasswordReset
	}
	return longest
}

// Service signs and validates claims-bearing tokens with a process-wide
// secret key.
type Service struct {
	secret      []byte
	ttls        TTLs
	revocations RevocationStore
}

// NewService creates a token service. revocations may be nil to disable
// revocation checks.
func NewService(secret []byte, ttls TTLs, revocations RevocationStore) *Service {
	return &Service{
		secret:      secret,
		ttls:        ttls,
		revocations: revocations,
	}
}

// Issue creates a signed token for the given purpose and subject claim,
// using the configured TTL for that purpose.
func (s *Service) Issue(purpose Purpose, subject string) (string, error) {
	ttl := s.ttlFor(purpose)
	if ttl <= 0 {
		return "", fmt.Errorf("no TTL configured for purpose %q", purpose)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate parses a serialized token, verifies its signature and expiry,
// checks that it was issued for the expected purpose, and consults the
// revocation store. Returns the subject claim on success.
func (s *Service) Validate(ctx context.Context, serialized string, expected Purpose) (string, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(serialized, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", classifyParseError(err)
	}

	if claims.Purpose != expected {
		return "", ErrPurposeMismatch
	}

	if s.revocations != nil && claims.IssuedAt != nil {
		since, err := s.revocations.RevokedSince(ctx, claims.Subject)
		if err != nil {
			return "", fmt.Errorf("checking revocation epoch: %w", err)
		}
		if !since.IsZero() && !claims.IssuedAt.Time.After(since) {
			return "", ErrRevoked
		}
	}

	return claims.Subject, nil
}

// Revoke invalidates all outstanding tokens for a subject. No-op when no
// revocation store is configured.
func (s *Service) Revoke(ctx context.Context, subject string) error {
	if s.revocations == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, subject)
}

// ttlFor returns the configured TTL for a purpose.
func (s *Service) ttlFor(purpose Purpose) time.Duration {
	switch purpose {
	case PurposeAccess:
		return s.ttls.Access
	case PurposeEmailVerify:
		return s.ttls.EmailVerify
	case PurposePasswordReset:
		return s.ttls.PasswordReset
	default:
		return 0
	}
}

// classifyParseError maps golang-jwt parse failures onto this package's
// sentinel errors. Expiry is checked before signature by the library, so
// the order of errors.Is checks here matters: an expired-but-valid token
// reports ErrExpired, not ErrInvalidSignature.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		// Unknown parse failure: not well-formed as far as we're concerned.
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
