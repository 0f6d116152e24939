package web

// errors.go turns service errors into JSON responses.
//
// The technical error is logged with the request id. The client gets the
// user-facing message, suggested action and support code from core.MapError,
// with an HTTP status picked from the error's identity.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/logging"
)

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
	errBadBody      = errors.New("invalid value: request body is not valid JSON")
)

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var parseErr *core.ParseError
	switch {
	case errors.Is(err, core.ErrNotMember), errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrUnknownSchema),
		errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrPreviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPreviewExpired):
		return http.StatusGone
	case errors.Is(err, core.ErrDuplicateTag):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.As(err, &parseErr),
		errors.Is(err, core.ErrEmptyDataset),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", ue.User.Code,
	}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request error", attrs...)
	case !core.IsUserFacing(err):
		// A 4xx with no mapped message usually means a missing pattern.
		logger.Warn("request rejected without user message", attrs...)
	default:
		logger.Info("request rejected", attrs...)
	}

	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, r, status, ErrorResponse{
		Error:   ue.Error(),
		Message: ue.User.Message,
		Action:  ue.User.Action,
		Code:    ue.User.Code,
	})
}
