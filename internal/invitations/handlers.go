package invitations

import (
	"encoding/json"
	"net/http"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HandleSend handles POST /api/v1/lists/{list_id}/invitations
func HandleSend(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := uuid.Parse(chi.URLParam(r, "list_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid list ID")
			return
		}

		var req NewInvitation
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		inv, err := svc.Send(r.Context(), listID, req)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"invitation": inv,
		})
	}
}

// HandleReceived handles GET /api/v1/invitations/received
func HandleReceived(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invs, err := svc.Received(r.Context())
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invitations": invs,
		})
	}
}

// HandleSent handles GET /api/v1/invitations/sent?list_id=
func HandleSent(svc *Service) http.HandlerFunc {
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

		invs, err := svc.Sent(r.Context(), listID)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invitations": invs,
		})
	}
}

// HandleAccept handles POST /api/v1/invitations/{invitation_id}/accept
func HandleAccept(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invitationID, err := uuid.Parse(chi.URLParam(r, "invitation_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invitation ID")
			return
		}

		membership, err := svc.Accept(r.Context(), invitationID)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"membership": membership,
		})
	}
}

// HandleDecline handles POST /api/v1/invitations/{invitation_id}/decline
func HandleDecline(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invitationID, err := uuid.Parse(chi.URLParam(r, "invitation_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invitation ID")
			return
		}

		if err := svc.Decline(r.Context(), invitationID); err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"declined": true,
		})
	}
}

// HandleCancel handles DELETE /api/v1/invitations/{invitation_id}
func HandleCancel(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invitationID, err := uuid.Parse(chi.URLParam(r, "invitation_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invitation ID")
			return
		}

		if err := svc.Cancel(r.Context(), invitationID); err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"cancelled": true,
		})
	}
}
