package push

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/store"
)

// TokenRequest registers a device. A blank token unregisters it.
type TokenRequest struct {
	Token string `json:"token"`
}

const maxTokenLength = 512

// HandleRegisterToken handles PUT /api/v1/me/push-token
func HandleRegisterToken(profiles store.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := identity.Require(ctx)
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		var token *string
		if t := strings.TrimSpace(req.Token); t != "" {
			if len(t) > maxTokenLength {
				apperrors.WriteBadRequest(w, r, "Push token is too long")
				return
			}
			token = &t
		}

		if err := profiles.SetPushToken(ctx, user.ID, token); err != nil {
			apperrors.WriteAppError(w, r, apperrors.Transient("register push token", err))
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"registered": token != nil,
		})
	}
}
