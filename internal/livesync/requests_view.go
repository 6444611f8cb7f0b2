package livesync

import (
	"context"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/replacements"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

// RequestsView mirrors the caller's pending replacement requests, either on
// all lists or on one list.
type RequestsView struct {
	*view[[]models.ReplacementRequest]
	listID       *uuid.UUID
	replacements *replacements.Service
}

func NewRequestsView(registry *Registry, rs *replacements.Service, listID *uuid.UUID) *RequestsView {
	v := &RequestsView{listID: listID, replacements: rs}
	v.view = newView("requests", registry, func(ctx context.Context) ([]models.ReplacementRequest, error) {
		return rs.PendingRequests(ctx, listID)
	})
	return v
}

// Mount subscribes to request changes of the list, or of every list when the
// view is unscoped. Unscoped events are narrowed by the refetch, which only
// returns requests on the caller's lists.
func (v *RequestsView) Mount(ctx context.Context) error {
	scope := "all"
	var filter store.Filter
	if v.listID != nil {
		scope = v.listID.String()
		filter = store.ListScope(*v.listID)
	}
	return v.mount(ctx, []subscription{{
		key:    Key{Table: store.TableRequests, Scope: scope},
		filter: filter,
		handle: v.handle,
	}})
}

// handle drops answered requests locally and refetches for anything else.
func (v *RequestsView) handle(c store.Change) bool {
	if c.Op == store.OpUpdate && c.Status != "" && models.RequestStatus(c.Status) != models.RequestPending {
		v.remove(c.ID)
		return false
	}
	return true
}

// Requests returns the cached pending requests, newest first.
func (v *RequestsView) Requests() []models.ReplacementRequest {
	cached, _ := v.snapshot()
	out := make([]models.ReplacementRequest, len(cached))
	copy(out, cached)
	return out
}

// Respond removes the request locally, answers it and refetches. A failed
// answer refetches too so the request reappears if it is still pending.
func (v *RequestsView) Respond(ctx context.Context, requestID uuid.UUID, in replacements.Response) (models.ReplacementRequest, error) {
	v.remove(requestID)
	req, err := v.replacements.Respond(ctx, requestID, in)
	_ = v.Refetch(ctx)
	return req, err
}

func (v *RequestsView) remove(id uuid.UUID) {
	v.mutate(func(cached []models.ReplacementRequest) []models.ReplacementRequest {
		out := make([]models.ReplacementRequest, 0, len(cached))
		for _, r := range cached {
			if r.ID != id {
				out = append(out, r)
			}
		}
		return out
	})
}
