package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

type Reader struct {
	events   store.AuditStore
	profiles store.ProfileStore
}

func NewReader(events store.AuditStore, profiles store.ProfileStore) *Reader {
	return &Reader{events: events, profiles: profiles}
}

type ListItem struct {
	ID          uuid.UUID      `json:"id"`
	Action      string         `json:"action"`
	ListID      *uuid.UUID     `json:"list_id,omitempty"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorName   string         `json:"actor_name,omitempty"`
	Meta        map[string]any `json:"meta"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ListByList returns the newest events of a list with actor names resolved.
func (r *Reader) ListByList(ctx context.Context, listID uuid.UUID, limit int) ([]ListItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	events, err := r.events.AuditEvents(ctx, listID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	var actorIDs []uuid.UUID
	for _, e := range events {
		if e.ActorUserID != nil {
			actorIDs = append(actorIDs, *e.ActorUserID)
		}
	}
	profiles, err := r.profiles.ProfilesByIDs(ctx, actorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit actors: %w", err)
	}

	out := make([]ListItem, 0, len(events))
	for _, e := range events {
		item := ListItem{
			ID:          e.ID,
			Action:      e.Action,
			ListID:      e.ListID,
			ActorUserID: e.ActorUserID,
			Meta:        e.Meta,
			CreatedAt:   e.CreatedAt,
		}
		if e.ActorUserID != nil {
			item.ActorName = models.DisplayName(profiles, *e.ActorUserID)
		}
		if item.Meta == nil {
			item.Meta = map[string]any{}
		}
		out = append(out, item)
	}
	return out, nil
}
