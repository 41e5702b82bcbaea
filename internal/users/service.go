package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keyxmakerx/warden/internal/apperror"
	"github.com/keyxmakerx/warden/internal/auth"
)

// Service handles profile operations for the authenticated user.
type Service interface {
	// UpdateAvatar stores a new avatar image for the user and persists its
	// URL on the account record.
	UpdateAvatar(ctx context.Context, username string, data []byte, mimeType string) (string, error)
}

type service struct {
	repo  auth.UserRepository
	cache auth.ProjectionCache
	store AvatarStore
}

// NewService creates a users service.
func NewService(repo auth.UserRepository, projections auth.ProjectionCache, store AvatarStore) Service {
	return &service{repo: repo, cache: projections, store: store}
}

// UpdateAvatar writes the image through the avatar store, records the
// resulting URL on the user row, and invalidates the cached projection so
// the next authenticated request sees the change.
func (s *service) UpdateAvatar(ctx context.Context, username string, data []byte, mimeType string) (string, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	url, err := s.store.Save(data, mimeType)
	if err != nil {
		return "", err
	}

	if err := s.repo.UpdateAvatarURL(ctx, user.ID, url); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return "", appErr
		}
		return "", apperror.NewInternal(fmt.Errorf("updating avatar url: %w", err))
	}

	if err := s.cache.Delete(ctx, user.Username); err != nil {
		slog.Warn("failed to invalidate user cache after avatar change",
			slog.String("username", user.Username),
			slog.Any("error", err),
		)
	}

	slog.Info("avatar updated",
		slog.String("user_id", user.ID),
		slog.String("url", url),
	)
	return url, nil
}
