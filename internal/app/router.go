package app

import (
	"net/http"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/config"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/invitations"
	"github.com/aliuyar1234/cartshare/internal/items"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/push"
	"github.com/aliuyar1234/cartshare/internal/replacements"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(cfg *config.Config, st store.Store, svc *Services) *chi.Mux {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(identity.Middleware(cfg.JWTSecret))

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(st))
	r.Handle("/metrics", promhttp.Handler())

	profiles := NewProfileSync(st)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(identity.RequireUser)
		r.Use(profiles.Middleware)

		// Change feed (websocket upgrade, so no JSON middleware)
		r.Get("/feed", HandleFeed(st, svc.Lists))

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(NoCacheMiddleware)
			r.Use(MutationRateLimitMiddleware(cfg.RateLimitRPM))

			r.Put("/me/push-token", push.HandleRegisterToken(st))

			// Lists and membership
			r.Get("/lists", lists.HandleList(svc.Lists))
			r.Post("/lists", lists.HandleCreate(svc.Lists))
			r.Route("/lists/{list_id}", func(r chi.Router) {
				r.Get("/", lists.HandleGet(svc.Lists))
				r.Delete("/", lists.HandleDelete(svc.Lists))
				r.Post("/leave", lists.HandleLeave(svc.Lists))
				r.Get("/activity", lists.HandleListActivity(svc.Lists, svc.Activity))

				r.Get("/members", lists.HandleListMembers(svc.Lists))
				r.Put("/members/{member_id}", lists.HandleUpdateMemberRole(svc.Lists))
				r.Delete("/members/{member_id}", lists.HandleRemoveMember(svc.Lists))

				r.Get("/items", items.HandleList(svc.Items))
				r.Post("/items", items.HandleAdd(svc.Items))

				r.Post("/invitations", invitations.HandleSend(svc.Invitations))
			})

			// Items
			r.Route("/items/{item_id}", func(r chi.Router) {
				r.Patch("/", items.HandleUpdate(svc.Items))
				r.Delete("/", items.HandleDelete(svc.Items))
				r.Put("/status", items.HandleUpdateStatus(svc.Items))
				r.Post("/out-of-stock", replacements.HandleMarkOutOfStock(svc.Replacements))
				r.Post("/replacements", replacements.HandleSuggest(svc.Replacements))
			})

			// Replacement requests
			r.Get("/replacements", replacements.HandleListPending(svc.Replacements))
			r.Post("/replacements/{request_id}/respond", replacements.HandleRespond(svc.Replacements))

			// Invitations
			r.Get("/invitations/received", invitations.HandleReceived(svc.Invitations))
			r.Get("/invitations/sent", invitations.HandleSent(svc.Invitations))
			r.Post("/invitations/{invitation_id}/accept", invitations.HandleAccept(svc.Invitations))
			r.Post("/invitations/{invitation_id}/decline", invitations.HandleDecline(svc.Invitations))
			r.Delete("/invitations/{invitation_id}", invitations.HandleCancel(svc.Invitations))
		})
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz reports 503 while the store is unreachable.
func handleReadyz(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Store connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"store":  "ok",
		})
	}
}
