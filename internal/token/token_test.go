package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
)

var testSecret = []byte("test-secret-key-for-token-tests!")

func newTestService(store RevocationStore) *Service {
	return NewService(testSecret, TTLs{
		Access:        15 * time.Minute,
		EmailVerify:   24 * time.Hour,
		PasswordReset: time.Hour,
	}, store)
}

// signRaw builds a token with arbitrary claims so tests can fabricate
// expired or foreign-key tokens without waiting on wall-clock time.
func signRaw(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

// --- Mock Revocation Store ---

type mockRevocationStore struct {
	epochs    map[string]time.Time
	revokeErr error
}

func (m *mockRevocationStore) RevokedSince(ctx context.Context, subject string) (time.Time, error) {
	return m.epochs[subject], nil
}

func (m *mockRevocationStore) Revoke(ctx context.Context, subject string) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	if m.epochs == nil {
		m.epochs = make(map[string]time.Time)
	}
	m.epochs[subject] = time.Now()
	return nil
}

// --- Issue / Validate ---

func TestIssueAndValidate_AllPurposes(t *testing.T) {
	svc := newTestService(nil)

	for _, purpose := range []Purpose{PurposeAccess, PurposeEmailVerify, PurposePasswordReset} {
		t.Run(string(purpose), func(t *testing.T) {
			signed, err := svc.Issue(purpose, "alice@example.com")
			if err != nil {
				t.Fatalf("Issue failed: %v", err)
			}

			subject, err := svc.Validate(context.Background(), signed, purpose)
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if subject != "alice@example.com" {
				t.Errorf("expected subject alice@example.com, got %s", subject)
			}
		})
	}
}

func TestIssue_UnknownPurpose(t *testing.T) {
	svc := newTestService(nil)
	if _, err := svc.Issue(Purpose("bogus"), "alice"); err == nil {
		t.Error("expected error for unknown purpose")
	}
}

func TestValidate_PurposeMismatch(t *testing.T) {
	svc := newTestService(nil)
	purposes := []Purpose{PurposeAccess, PurposeEmailVerify, PurposePasswordReset}

	for _, issued := range purposes {
		signed, err := svc.Issue(issued, "alice")
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		for _, expected := range purposes {
			if expected == issued {
				continue
			}
			_, err := svc.Validate(context.Background(), signed, expected)
			if !errors.Is(err, ErrPurposeMismatch) {
				t.Errorf("issued=%s expected=%s: want ErrPurposeMismatch, got %v", issued, expected, err)
			}
		}
	}
}

func TestValidate_Expired(t *testing.T) {
	svc := newTestService(nil)

	now := time.Now()
	signed := signRaw(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
		Purpose: PurposeAccess,
	})

	_, err := svc.Validate(context.Background(), signed, PurposeAccess)
	if !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestValidate_InvalidSignature(t *testing.T) {
	svc := newTestService(nil)

	now := time.Now()
	signed := signRaw(t, []byte("a-completely-different-secret-key"), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Purpose: PurposeAccess,
	})

	_, err := svc.Validate(context.Background(), signed, PurposeAccess)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidate_Malformed(t *testing.T) {
	svc := newTestService(nil)

	for _, input := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := svc.Validate(context.Background(), input, PurposeAccess)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestValidate_TamperedPayload(t *testing.T) {
	svc := newTestService(nil)

	signed, err := svc.Issue(PurposeAccess, "alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Flip a byte in the payload segment. Signature no longer matches.
	tampered := []byte(signed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	_, err = svc.Validate(context.Background(), string(tampered), PurposeAccess)
	if err == nil {
		t.Fatal("expected tampered token to fail validation")
	}
}

// --- Revocation ---

func TestValidate_RevokedToken(t *testing.T) {
	store := &mockRevocationStore{epochs: map[string]time.Time{}}
	svc := newTestService(store)

	// Token issued an hour ago; epoch set to now. Issued-before-epoch fails.
	now := time.Now()
	signed := signRaw(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Purpose: PurposeAccess,
	})

	store.epochs["alice"] = now
	_, err := svc.Validate(context.Background(), signed, PurposeAccess)
	if !errors.Is(err, ErrRevoked) {
		t.Errorf("expected ErrRevoked, got %v", err)
	}
}

func TestValidate_IssuedAfterRevocation(t *testing.T) {
	store := &mockRevocationStore{epochs: map[string]time.Time{
		"alice": time.Now().Add(-time.Hour),
	}}
	svc := newTestService(store)

	signed, err := svc.Issue(PurposeAccess, "alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	subject, err := svc.Validate(context.Background(), signed, PurposeAccess)
	if err != nil {
		t.Fatalf("expected token issued after epoch to validate, got %v", err)
	}
	if subject != "alice" {
		t.Errorf("expected subject alice, got %s", subject)
	}
}

func TestRevoke_NilStoreIsNoop(t *testing.T) {
	svc := newTestService(nil)
	if err := svc.Revoke(context.Background(), "alice"); err != nil {
		t.Errorf("expected nil-store Revoke to be a no-op, got %v", err)
	}
}

func TestRevoke_DelegatesToStore(t *testing.T) {
	store := &mockRevocationStore{}
	svc := newTestService(store)

	if err := svc.Revoke(context.Background(), "alice"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if store.epochs["alice"].IsZero() {
		t.Error("expected revocation epoch to be recorded")
	}
}

// --- Redis Revocation Store ---

func TestRedisRevocations_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisRevocations(rdb, 24*time.Hour)
	ctx := context.Background()

	// No epoch yet.
	since, err := store.RevokedSince(ctx, "alice")
	if err != nil {
		t.Fatalf("RevokedSince failed: %v", err)
	}
	if !since.IsZero() {
		t.Errorf("expected zero epoch, got %v", since)
	}

	before := time.Now().Add(-time.Second)
	if err := store.Revoke(ctx, "alice"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	since, err = store.RevokedSince(ctx, "alice")
	if err != nil {
		t.Fatalf("RevokedSince failed: %v", err)
	}
	if since.Before(before) {
		t.Errorf("expected epoch at or after %v, got %v", before, since)
	}
}

func TestRedisRevocations_EpochExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisRevocations(rdb, time.Hour)
	ctx := context.Background()

	if err := store.Revoke(ctx, "alice"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	since, err := store.RevokedSince(ctx, "alice")
	if err != nil {
		t.Fatalf("RevokedSince failed: %v", err)
	}
	if !since.IsZero() {
		t.Errorf("expected epoch to expire with retention, got %v", since)
	}
}
