package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spatialdeez/microstore/internal/api/validate"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/services"
)

func TestWriteServiceErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{validate.Errs{{Field: "name", Msg: "required"}}, http.StatusUnprocessableEntity, "validation_failed"},
		{fmt.Errorf("get: %w", services.ErrNotFound), http.StatusNotFound, "not_found"},
		{auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{auth.ErrForbidden, http.StatusForbidden, "forbidden"},
		{&services.ConflictError{Reason: "category has products", Count: 2}, http.StatusConflict, "conflict"},
		{fmt.Errorf("%w: boom", services.ErrPersistence), http.StatusServiceUnavailable, "persistence_failure"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		WriteServiceError(rec, c.err)
		require.Equal(t, c.status, rec.Code, c.err.Error())

		var body APIError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, c.code, body.Code)
	}
}

func TestConflictDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, &services.ConflictError{Reason: "category has products", Count: 3})

	var body struct {
		Details struct {
			Reason string `json:"reason"`
			Count  int    `json:"count"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Details.Count)
	require.Equal(t, "category has products", body.Details.Reason)
}
