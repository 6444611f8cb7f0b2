package identity

import (
	"net/http"
	"strings"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// Middleware validates a bearer token and attaches the user to the request.
// Requests without a valid token continue unauthenticated. Browsers cannot
// set headers on websocket upgrades, so an access_token query parameter is
// accepted as well.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := ParseToken(token, secret)
			if err != nil {
				log.Debug().Err(err).Msg("Invalid access token")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireUser answers 401 when no user is attached.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			apperrors.WriteAppError(w, r, ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return r.URL.Query().Get("access_token")
}
