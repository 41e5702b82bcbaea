// Package users is the authenticated profile surface: fetching the caller's
// own account view and updating the avatar image.
package users

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/keyxmakerx/warden/internal/apperror"
)

// allowedMimeTypes are the image formats accepted for avatars.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// mimeToExtension maps accepted MIME types to stored file extensions.
var mimeToExtension = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarStore persists avatar images and returns the public URL path they
// are served under.
type AvatarStore interface {
	// Save validates and stores an avatar image, returning its URL path.
	Save(data []byte, mimeType string) (string, error)
}

// fsAvatarStore stores avatars on the local filesystem under mediaPath.
// Files are served back under the /media/ route.
type fsAvatarStore struct {
	mediaPath string
	maxSize   int64
}

// NewAvatarStore creates a filesystem-backed avatar store rooted at mediaPath.
func NewAvatarStore(mediaPath string, maxSize int64) AvatarStore {
	return &fsAvatarStore{mediaPath: mediaPath, maxSize: maxSize}
}

// Save validates the upload (size, MIME type, magic bytes) and writes it to
// disk under a fresh UUID filename.
func (s *fsAvatarStore) Save(data []byte, mimeType string) (string, error) {
	if !allowedMimeTypes[mimeType] {
		return "", apperror.NewBadRequest("unsupported image type: " + mimeType)
	}
	if int64(len(data)) > s.maxSize {
		return "", apperror.NewBadRequest(fmt.Sprintf("file too large; maximum size is %d MB", s.maxSize/(1024*1024)))
	}
	if !validateMagicBytes(data, mimeType) {
		return "", apperror.NewBadRequest("file content does not match declared type")
	}

	dir := filepath.Join(s.mediaPath, "avatars")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("creating avatar directory: %w", err))
	}

	filename := uuid.NewString() + mimeToExtension[mimeType]
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("writing avatar file: %w", err))
	}

	return "/media/avatars/" + filename, nil
}

// validateMagicBytes checks that the file content starts with the signature
// expected for its declared MIME type. Stops trivially mislabeled uploads.
func validateMagicBytes(data []byte, mimeType string) bool {
	switch mimeType {
	case "image/jpeg":
		return len(data) > 2 && bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF})
	case "image/png":
		return len(data) > 7 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	case "image/gif":
		return len(data) > 5 && (bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")))
	case "image/webp":
		return len(data) > 11 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
	default:
		return false
	}
}
