package replacements

import (
	"encoding/json"
	"net/http"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type SuggestRequest struct {
	Suggestions []string `json:"suggestions"`
}

// HandleMarkOutOfStock handles POST /api/v1/items/{item_id}/out-of-stock
func HandleMarkOutOfStock(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid item ID")
			return
		}

		var req OutOfStock
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		outcome, err := svc.MarkOutOfStock(r.Context(), itemID, req)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, outcome)
	}
}

// HandleSuggest handles POST /api/v1/items/{item_id}/replacements
func HandleSuggest(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid item ID")
			return
		}

		var req SuggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		created, err := svc.CreateRequests(r.Context(), itemID, req.Suggestions)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"requests": created,
		})
	}
}

// HandleListPending handles GET /api/v1/replacements?list_id=
func HandleListPending(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var listID *uuid.UUID
		if raw := r.URL.Query().Get("list_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				apperrors.WriteBadRequest(w, r, "Invalid list ID")
				return
			}
			listID = &id
		}

		requests, err := svc.PendingRequests(r.Context(), listID)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"requests": requests,
		})
	}
}

// HandleRespond handles POST /api/v1/replacements/{request_id}/respond
func HandleRespond(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request ID")
			return
		}

		var req Response
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		updated, err := svc.Respond(r.Context(), requestID, req)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"request": updated,
		})
	}
}
