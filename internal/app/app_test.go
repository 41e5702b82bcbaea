package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/warden/internal/apperror"
)

// handleError runs err through the central error handler and returns the
// recorded response plus its decoded JSON body.
func handleError(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	(&App{Echo: e}).errorHandler(err, c)

	var body map[string]string
	if jsonErr := json.Unmarshal(rec.Body.Bytes(), &body); jsonErr != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), jsonErr)
	}
	return rec, body
}

func TestErrorHandler_DependencyUnavailable(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
	rec, body := handleError(t, apperror.NewUnavailable("database unreachable", cause))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if body["error"] != "dependency_unavailable" {
		t.Errorf("expected error type dependency_unavailable, got %q", body["error"])
	}
	if body["message"] != "database unreachable" {
		t.Errorf("expected message %q, got %q", "database unreachable", body["message"])
	}
	// The ping failure stays in the logs, never in the response.
	if strings.Contains(rec.Body.String(), "dial tcp") {
		t.Errorf("response leaked the internal cause: %s", rec.Body.String())
	}
}

func TestErrorHandler_UnknownErrorIsOpaque(t *testing.T) {
	rec, body := handleError(t, errors.New("users table has gone away"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if body["error"] != "internal_error" {
		t.Errorf("expected error type internal_error, got %q", body["error"])
	}
	if strings.Contains(body["message"], "table") {
		t.Errorf("response leaked the internal cause: %q", body["message"])
	}
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	rec, body := handleError(t, echo.NewHTTPError(http.StatusNotFound, "Not Found"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if body["error"] != "not_found" {
		t.Errorf("expected error type not_found, got %q", body["error"])
	}
}
