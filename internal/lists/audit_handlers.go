package lists

import (
	"net/http"
	"strconv"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/audit"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HandleListActivity handles GET /api/v1/lists/{list_id}/activity
func HandleListActivity(svc *Service, reader *audit.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		listID, err := uuid.Parse(chi.URLParam(r, "list_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid list ID")
			return
		}

		user, err := identity.Require(ctx)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}
		if _, _, err := svc.RequireMember(ctx, listID, user.ID); err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				limit = v
			}
		}

		events, err := reader.ListByList(ctx, listID, limit)
		if err != nil {
			log.Error().Err(err).Str("list_id", listID.String()).Msg("Failed to list activity")
			apperrors.WriteInternalError(w, r, "Failed to list activity")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"events": events,
		})
	}
}
