package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/warden/internal/apperror"
)

// Handler handles HTTP requests for authentication. Handlers are thin: they
// bind the request, validate its shape, call the service, and render the
// response. No business logic lives here.
type Handler struct {
	service AuthService
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service AuthService) *Handler {
	return &Handler{service: service}
}

// Register creates a new account (POST /auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if msg := validateRegisterRequest(&req); msg != "" {
		return apperror.NewValidation(msg)
	}

	user, err := h.service.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user.PublicView())
}

// Login exchanges credentials for an access token (POST /auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return apperror.NewValidation("email and password are required")
	}

	accessToken, err := h.service.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
	})
}

// ConfirmEmail consumes a verification link (GET /auth/confirmed_email/:token).
func (h *Handler) ConfirmEmail(c echo.Context) error {
	rawToken := c.Param("token")
	if rawToken == "" {
		return apperror.NewBadRequest("missing verification token")
	}

	if err := h.service.ConfirmEmail(c.Request().Context(), rawToken); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "email verified"})
}

// ResendVerification sends a fresh verification email (POST /auth/request_email).
func (h *Handler) ResendVerification(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.Email == "" {
		return apperror.NewValidation("email is required")
	}

	if err := h.service.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}

	// Same body whether or not an email actually went out, so repeated
	// requests for a verified account look identical.
	return c.JSON(http.StatusOK, MessageResponse{Message: "verification email sent"})
}

// ForgotPassword requests a password reset link (POST /auth/forgot-password).
func (h *Handler) ForgotPassword(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.Email == "" {
		return apperror.NewValidation("email is required")
	}

	if err := h.service.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "password reset email sent"})
}

// ResetPassword sets a new password (POST /auth/reset-password/:token).
func (h *Handler) ResetPassword(c echo.Context) error {
	rawToken := c.Param("token")
	if rawToken == "" {
		return apperror.NewBadRequest("missing reset token")
	}

	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if msg := validatePassword(req.Password); msg != "" {
		return apperror.NewValidation(msg)
	}

	if err := h.service.ResetPassword(c.Request().Context(), rawToken, req.Password); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "password has been reset"})
}

// --- Validation helpers ---

// validateRegisterRequest performs basic server-side validation on the
// registration payload. Returns an error message or empty string.
func validateRegisterRequest(req *RegisterRequest) string {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return "username is required"
	}
	if len(username) < 3 {
		return "username must be at least 3 characters"
	}
	if len(username) > 100 {
		return "username must be at most 100 characters"
	}
	if req.Email == "" {
		return "email is required"
	}
	if !strings.Contains(req.Email, "@") {
		return "email is not valid"
	}
	if len(req.Email) > 255 {
		return "email must be at most 255 characters"
	}
	return validatePassword(req.Password)
}

// validatePassword enforces the password length policy shared by
// registration and reset.
func validatePassword(password string) string {
	if password == "" {
		return "password is required"
	}
	if len(password) < 8 {
		return "password must be at least 8 characters"
	}
	if len(password) > 128 {
		return "password must be at most 128 characters"
	}
	return ""
}
