package users

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/warden/internal/apperror"
	"github.com/keyxmakerx/warden/internal/auth"
)

// Handler handles HTTP requests for the authenticated profile surface.
type Handler struct {
	service Service
	maxSize int64
}

// NewHandler creates a users handler. maxSize bounds how much of a multipart
// upload is read into memory.
func NewHandler(service Service, maxSize int64) *Handler {
	return &Handler{service: service, maxSize: maxSize}
}

// Me returns the authenticated user's own view (GET /users/me).
func (h *Handler) Me(c echo.Context) error {
	user, ok := auth.GetUser(c)
	if !ok {
		return apperror.NewUnauthorized("authentication required")
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateAvatar replaces the authenticated user's avatar (PATCH /users/avatar).
// Expects a multipart form with a "file" part.
func (h *Handler) UpdateAvatar(c echo.Context) error {
	user, ok := auth.GetUser(c)
	if !ok {
		return apperror.NewUnauthorized("authentication required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperror.NewBadRequest("missing file upload")
	}
	if fileHeader.Size > h.maxSize {
		return apperror.NewBadRequest("file too large")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return apperror.NewBadRequest("cannot read file upload")
	}
	defer src.Close()

	// Read one byte past the cap so an understated Content-Length in the
	// part header can't smuggle an oversized body through.
	data, err := io.ReadAll(io.LimitReader(src, h.maxSize+1))
	if err != nil {
		return apperror.NewBadRequest("cannot read file upload")
	}
	if int64(len(data)) > h.maxSize {
		return apperror.NewBadRequest("file too large")
	}

	url, err := h.service.UpdateAvatar(c.Request().Context(), user.Username, data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"avatar_url": url})
}
