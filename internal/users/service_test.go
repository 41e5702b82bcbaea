package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/keyxmakerx/warden/internal/apperror"
	"github.com/keyxmakerx/warden/internal/auth"
	"github.com/keyxmakerx/warden/internal/cache"
)

// --- Mocks ---

// mockRepo implements auth.UserRepository; only the methods the users
// service touches get configurable behavior.
type mockRepo struct {
	findByUsernameFn func(ctx context.Context, username string) (*auth.User, error)
	updateAvatarFn   func(ctx context.Context, id, avatarURL string) error
}

func (m *mockRepo) Create(ctx context.Context, user *auth.User) error { return nil }
func (m *mockRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return nil, apperror.NewNotFound("user not found")
}
func (m *mockRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, apperror.NewNotFound("user not found")
}
func (m *mockRepo) EmailExists(ctx context.Context, email string) (bool, error) { return false, nil }
func (m *mockRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return false, nil
}
func (m *mockRepo) MarkVerified(ctx context.Context, id string) error { return nil }
func (m *mockRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return nil
}
func (m *mockRepo) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	if m.updateAvatarFn != nil {
		return m.updateAvatarFn(ctx, id, avatarURL)
	}
	return nil
}
func (m *mockRepo) UpdateLastLogin(ctx context.Context, id string) error { return nil }

// fakeCache is a map-backed auth.ProjectionCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cache.UserProjection
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]cache.UserProjection)}
}

func (f *fakeCache) Set(ctx context.Context, p cache.UserProjection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[p.Username] = p
	return nil
}

func (f *fakeCache) Get(ctx context.Context, username string) (cache.UserProjection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.entries[username]
	return p, ok
}

func (f *fakeCache) Delete(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, username)
	return nil
}

// mockStore implements AvatarStore.
type mockStore struct {
	saveFn func(data []byte, mimeType string) (string, error)
}

func (m *mockStore) Save(data []byte, mimeType string) (string, error) {
	if m.saveFn != nil {
		return m.saveFn(data, mimeType)
	}
	return "/media/avatars/fixed.png", nil
}

// --- Tests ---

func TestUpdateAvatar_Success(t *testing.T) {
	user := &auth.User{ID: "u1", Username: "alice", Email: "alice@example.com", IsVerified: true, Role: auth.RoleAdmin}
	var persistedURL string
	repo := &mockRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*auth.User, error) {
			return user, nil
		},
		updateAvatarFn: func(ctx context.Context, id, avatarURL string) error {
			if id != "u1" {
				t.Errorf("avatar persisted for wrong user %s", id)
			}
			persistedURL = avatarURL
			return nil
		},
	}
	projections := newFakeCache()
	projections.Set(context.Background(), cache.UserProjection{ID: "u1", Username: "alice"})

	svc := NewService(repo, projections, &mockStore{})
	url, err := svc.UpdateAvatar(context.Background(), "alice", []byte{0x89}, "image/png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "/media/avatars/fixed.png" {
		t.Errorf("unexpected url %s", url)
	}
	if persistedURL != url {
		t.Errorf("persisted url %s does not match returned %s", persistedURL, url)
	}
	if _, ok := projections.Get(context.Background(), "alice"); ok {
		t.Error("expected cached projection to be invalidated after avatar change")
	}
}

func TestUpdateAvatar_UnknownUser(t *testing.T) {
	svc := NewService(&mockRepo{}, newFakeCache(), &mockStore{})
	_, err := svc.UpdateAvatar(context.Background(), "ghost", []byte{0x89}, "image/png")
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != 404 {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestUpdateAvatar_StoreRejection(t *testing.T) {
	user := &auth.User{ID: "u1", Username: "alice", Role: auth.RoleAdmin}
	repo := &mockRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*auth.User, error) {
			return user, nil
		},
		updateAvatarFn: func(ctx context.Context, id, avatarURL string) error {
			t.Error("avatar URL must not be persisted when the store rejects the upload")
			return nil
		},
	}
	store := &mockStore{
		saveFn: func(data []byte, mimeType string) (string, error) {
			return "", apperror.NewBadRequest("unsupported image type")
		},
	}

	svc := NewService(repo, newFakeCache(), store)
	_, err := svc.UpdateAvatar(context.Background(), "alice", []byte("junk"), "application/pdf")
	if err == nil {
		t.Fatal("expected store rejection to propagate")
	}
}

func TestUpdateAvatar_PersistFailure(t *testing.T) {
	// A domain error from the repository keeps its status even when wrapped;
	// anything else becomes an opaque 500.
	tests := []struct {
		name     string
		repoErr  error
		wantCode int
	}{
		{"wrapped domain error", fmt.Errorf("updating avatar url: %w", apperror.NewNotFound("user not found")), 404},
		{"infrastructure error", errors.New("db connection lost"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &auth.User{ID: "u1", Username: "alice", Role: auth.RoleAdmin}
			repo := &mockRepo{
				findByUsernameFn: func(ctx context.Context, username string) (*auth.User, error) {
					return user, nil
				},
				updateAvatarFn: func(ctx context.Context, id, avatarURL string) error {
					return tt.repoErr
				},
			}

			svc := NewService(repo, newFakeCache(), &mockStore{})
			_, err := svc.UpdateAvatar(context.Background(), "alice", []byte{0x89}, "image/png")
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, appErr.Code)
			}
		})
	}
}
