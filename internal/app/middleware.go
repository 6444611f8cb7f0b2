package app

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
)

// LoggingMiddleware logs HTTP requests with structured fields.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Str("request_id", apperrors.GetRequestID(r.Context())).
			Str("remote_addr", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Error().
					Interface("error", err).
					Str("request_id", apperrors.GetRequestID(r.Context())).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				apperrors.WriteInternalError(w, r, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// ContentTypeJSON sets Content-Type to application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// NoCacheMiddleware adds headers to prevent caching.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

// ProfileSync keeps the profile directory in step with the identity claims.
// A profile is written the first time a user is seen and whenever their name
// or email changes.
type ProfileSync struct {
	profiles store.ProfileStore
	seen     sync.Map
}

func NewProfileSync(profiles store.ProfileStore) *ProfileSync {
	return &ProfileSync{profiles: profiles}
}

func (p *ProfileSync) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := identity.FromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		fingerprint := user.DisplayName + "\x00" + user.Email
		if last, ok := p.seen.Load(user.ID); !ok || last.(string) != fingerprint {
			err := p.profiles.UpsertProfile(r.Context(), models.Profile{
				ID:    user.ID,
				Name:  user.DisplayName,
				Email: user.Email,
			})
			if err != nil {
				apperrors.WriteAppError(w, r, apperrors.Transient("sync profile", err))
				return
			}
			p.seen.Store(user.ID, fingerprint)
		}

		next.ServeHTTP(w, r)
	})
}

// MutationRateLimitMiddleware limits write requests per user to rpm per
// minute. Reads pass through.
func MutationRateLimitMiddleware(rpm int) func(http.Handler) http.Handler {
	limiter := httprate.Limit(
		rpm,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user, ok := identity.FromContext(r.Context()); ok {
				return user.ID.String(), nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			apperrors.WriteError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many changes. Try again later.")
		}),
	)

	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}
