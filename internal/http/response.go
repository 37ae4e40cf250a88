package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// errRequest marks malformed requests the decoder rejects before any
// service runs.
type errRequest struct{ msg string }

func (e *errRequest) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &errRequest{msg: fmt.Sprintf(format, args...)}
}

var (
	errRateLimited = errors.New("too many requests, try again later")
	errPanic       = errors.New("handler panicked")
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// writeError maps err to a status and a message safe to show. Server-side
// failures are logged with their detail and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)

	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldStatusCode, status,
			log.FieldError, err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

func classify(err error) (int, string) {
	var (
		reqErr  *errRequest
		valErr  *core.ValidationError
		confErr *core.ConflictError
		convErr *core.ConversionError
	)
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.As(err, &valErr):
		return http.StatusBadRequest, valErr.Message
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidCurrency), errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.As(err, &confErr):
		return http.StatusConflict, confErr.Message
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.As(err, &convErr):
		return http.StatusUnprocessableEntity, fmt.Sprintf("no exchange rate from %s to %s", convErr.From, convErr.To)
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}
