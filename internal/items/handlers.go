package items

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AddRequest is the body of POST /api/v1/lists/{list_id}/items. Clients send
// quantity as a number or as the raw text of an input field.
type AddRequest struct {
	Name      string  `json:"name"`
	Notes     *string `json:"notes"`
	Quantity  any     `json:"quantity"`
	StoreName *string `json:"store_name"`
}

type StatusRequest struct {
	Status models.ItemStatus `json:"status"`
}

// HandleList handles GET /api/v1/lists/{list_id}/items
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := uuid.Parse(chi.URLParam(r, "list_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid list ID")
			return
		}

		items, err := svc.ListItems(r.Context(), listID)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"items": models.SortItems(items),
		})
	}
}

// HandleAdd handles POST /api/v1/lists/{list_id}/items
func HandleAdd(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := uuid.Parse(chi.URLParam(r, "list_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid list ID")
			return
		}

		var req AddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		item, err := svc.AddItem(r.Context(), listID, NewItem{
			Name:      req.Name,
			Notes:     req.Notes,
			Quantity:  ParseQuantity(req.Quantity),
			StoreName: req.StoreName,
		})
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"item": item,
		})
	}
}

// HandleUpdate handles PATCH /api/v1/items/{item_id}
func HandleUpdate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid item ID")
			return
		}

		var patch models.ItemPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		item, err := svc.UpdateItem(r.Context(), itemID, patch)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"item": item,
		})
	}
}

// HandleUpdateStatus handles PUT /api/v1/items/{item_id}/status
func HandleUpdateStatus(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid item ID")
			return
		}

		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		item, err := svc.UpdateItemStatus(r.Context(), itemID, req.Status)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"item": item,
		})
	}
}

// HandleDelete handles DELETE /api/v1/items/{item_id}
func HandleDelete(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid item ID")
			return
		}

		if err := svc.DeleteItem(r.Context(), itemID); err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

// ParseQuantity reads a JSON number or numeric string. Anything else yields
// nil so the default quantity applies.
func ParseQuantity(v any) *int {
	var q int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt32 {
			return nil
		}
		q = int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		q = n
	default:
		return nil
	}
	return &q
}
