package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spatialdeez/microstore/internal/api/validate"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/services"
)

type APIError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// WriteServiceError renders an error returned by a service call.
func WriteServiceError(w http.ResponseWriter, err error) {
	var (
		fields   validate.Errs
		conflict *services.ConflictError
	)
	switch {
	case errors.As(err, &fields):
		WriteError(w, http.StatusUnprocessableEntity, "validation_failed", "validation failed", fields)
	case errors.Is(err, services.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, auth.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	case errors.Is(err, auth.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.As(err, &conflict):
		WriteError(w, http.StatusConflict, "conflict", conflict.Error(),
			map[string]any{"reason": conflict.Reason, "count": conflict.Count})
	case errors.Is(err, services.ErrPersistence):
		w.Header().Set("Retry-After", "1")
		WriteError(w, http.StatusServiceUnavailable, "persistence_failure", "temporary storage failure, retry", nil)
	default:
		slog.Error("unhandled service error", "err", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

// DecodeJSON reads a JSON body into v, answering 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return false
	}
	return true
}
