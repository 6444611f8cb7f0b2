package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIs_MatchesByCode(t *testing.T) {
	sentinel := Authorization("owner_cannot_leave", "Owner cannot leave")
	wrapped := fmt.Errorf("leave: %w", Authorization("owner_cannot_leave", "different text"))

	require.True(t, errors.Is(wrapped, sentinel))
	require.False(t, errors.Is(wrapped, Authorization("not_owner", "x")))
	require.Equal(t, KindAuthorization, KindOf(wrapped))
}

func TestTransient_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient("load items", cause)

	require.ErrorIs(t, err, cause)
	require.True(t, IsKind(err, KindTransient))
	require.Equal(t, "Failed to load items", err.Message)
}

func TestKindOf_ForeignError(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
}

func TestWriteAppError_StatusAndEnvelope(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{Validation("invalid_name", "Name is required"), http.StatusBadRequest, "invalid_name"},
		{Authentication("unauthenticated", "Sign in"), http.StatusUnauthorized, "unauthenticated"},
		{Authorization("not_owner", "Only the owner"), http.StatusForbidden, "not_owner"},
		{Conflict("duplicate_pending_invitation", "dup"), http.StatusConflict, "duplicate_pending_invitation"},
		{NotFound("list_not_found", "List not found"), http.StatusNotFound, "list_not_found"},
		{Transient("load", errors.New("x")), http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("plain"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		rec := httptest.NewRecorder()
		RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteAppError(w, r, tc.err)
		})).ServeHTTP(rec, req)

		require.Equal(t, tc.status, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.code, body.Error.Code)
		require.NotEmpty(t, body.Error.RequestID)
	}
}

func TestRequestIDMiddleware_ReusesHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()

	var seen string
	RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})).ServeHTTP(rec, req)

	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
