package lists

import (
	"encoding/json"
	"net/http"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type MemberRoleUpdateRequest struct {
	Role models.Role `json:"role"`
}

// HandleCreate handles POST /api/v1/lists
func HandleCreate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NewList
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		list, err := svc.CreateList(r.Context(), req)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"list": list,
		})
	}
}

// HandleList handles GET /api/v1/lists?q=
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lists, err := svc.UserLists(r.Context())
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"lists": FilterLists(lists, r.URL.Query().Get("q")),
		})
	}
}

// HandleGet handles GET /api/v1/lists/{list_id}
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := uuid.Parse(chi.URLParam(r, "list_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid list ID")
			return
		}

		details, err := svc.ListDetails(r.Context(), listID)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"list": details,
		})
	}
}

// HandleDelete handles DELETE /api/v1/lists/{list_id}
func HandleDelete(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := uuid.Parse(chi.URLParam(r, "list_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid list ID")
			return
		}

		if err := svc.DeleteList(r.Context(), listID); err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

// HandleLeave handles POST /api/v1/lists/{list_id}/leave
func HandleLeave(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := uuid.Parse(chi.URLParam(r, "list_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid list ID")
			return
		}

		if err := svc.LeaveList(r.Context(), listID); err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"left": true,
		})
	}
}

// HandleListMembers handles GET /api/v1/lists/{list_id}/members
func HandleListMembers(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := uuid.Parse(chi.URLParam(r, "list_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid list ID")
			return
		}

		members, err := svc.ListMembers(r.Context(), listID)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"members": members,
		})
	}
}

// HandleUpdateMemberRole handles PUT /api/v1/lists/{list_id}/members/{member_id}
func HandleUpdateMemberRole(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := uuid.Parse(chi.URLParam(r, "member_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid member ID")
			return
		}

		var req MemberRoleUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if err := svc.UpdateMemberRole(r.Context(), memberID, req.Role); err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"updated": true,
		})
	}
}

// HandleRemoveMember handles DELETE /api/v1/lists/{list_id}/members/{member_id}
func HandleRemoveMember(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := uuid.Parse(chi.URLParam(r, "member_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid member ID")
			return
		}

		if err := svc.RemoveMember(r.Context(), memberID); err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"removed": true,
		})
	}
}
