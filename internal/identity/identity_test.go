package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIssueToken_AndParseToken(t *testing.T) {
	user := User{ID: uuid.New(), Email: "ana@example.com", DisplayName: "Ana"}

	token, err := IssueToken(user, "test-secret", time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken(token, "test-secret")
	require.NoError(t, err)
	require.Equal(t, user, parsed)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := IssueToken(User{ID: uuid.New()}, "secret-a", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret-b")
	require.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	token, err := IssueToken(User{ID: uuid.New()}, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	require.Error(t, err)
}

func TestRequire(t *testing.T) {
	_, err := Require(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.True(t, apperrors.IsKind(err, apperrors.KindAuthentication))

	user := User{ID: uuid.New()}
	got, err := Require(WithUser(context.Background(), user))
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestMiddleware_AttachesUser(t *testing.T) {
	user := User{ID: uuid.New(), Email: "bo@example.com", DisplayName: "Bo"}
	token, err := IssueToken(user, "secret", time.Hour)
	require.NoError(t, err)

	var seen User
	handler := Middleware("secret")(RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, user, seen)

	req = httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
