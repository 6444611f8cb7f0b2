package livesync

import (
	"context"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/items"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/replacements"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

// ItemsView mirrors the items of one list.
type ItemsView struct {
	*view[[]models.Item]
	listID       uuid.UUID
	items        *items.Service
	replacements *replacements.Service
	now          func() time.Time
}

func NewItemsView(registry *Registry, is *items.Service, rs *replacements.Service, listID uuid.UUID) *ItemsView {
	v := &ItemsView{listID: listID, items: is, replacements: rs, now: time.Now}
	v.view = newView("items", registry, func(ctx context.Context) ([]models.Item, error) {
		return is.ListItems(ctx, listID)
	})
	return v
}

// Mount loads the items and subscribes to changes on the list.
func (v *ItemsView) Mount(ctx context.Context) error {
	return v.mount(ctx, []subscription{{
		key:    Key{Table: store.TableItems, Scope: v.listID.String()},
		filter: store.ListScope(v.listID),
		handle: refetchAlways,
	}})
}

// Items returns the cached items in display order.
func (v *ItemsView) Items() []models.Item {
	cached, _ := v.snapshot()
	return models.SortItems(cached)
}

// Add creates an item and refetches.
func (v *ItemsView) Add(ctx context.Context, in items.NewItem) (models.Item, error) {
	item, err := v.items.AddItem(ctx, v.listID, in)
	if err != nil {
		return models.Item{}, err
	}
	_ = v.Refetch(ctx)
	return item, nil
}

// Update edits item fields and refetches.
func (v *ItemsView) Update(ctx context.Context, itemID uuid.UUID, patch models.ItemPatch) (models.Item, error) {
	item, err := v.items.UpdateItem(ctx, itemID, patch)
	if err != nil {
		return models.Item{}, err
	}
	_ = v.Refetch(ctx)
	return item, nil
}

// SetStatus shows the new status immediately, then writes it. On failure
// the local value is kept until the next refetch.
func (v *ItemsView) SetStatus(ctx context.Context, itemID uuid.UUID, status models.ItemStatus) error {
	if status.IsValid() {
		v.setLocalStatus(itemID, status)
	}
	_, err := v.items.UpdateItemStatus(ctx, itemID, status)
	return err
}

// Delete removes the item locally, then on the server.
func (v *ItemsView) Delete(ctx context.Context, itemID uuid.UUID) error {
	v.mutate(func(cached []models.Item) []models.Item {
		out := make([]models.Item, 0, len(cached))
		for _, it := range cached {
			if it.ID != itemID {
				out = append(out, it)
			}
		}
		return out
	})
	return v.items.DeleteItem(ctx, itemID)
}

// MarkOutOfStock shows the item as out of stock, then runs the replacement
// workflow. A request rejected as invalid never reaches the store, so the
// previous status is put back.
func (v *ItemsView) MarkOutOfStock(ctx context.Context, itemID uuid.UUID, in replacements.OutOfStock) (replacements.Outcome, error) {
	prev, found := v.setLocalStatus(itemID, models.StatusOutOfStock)
	out, err := v.replacements.MarkOutOfStock(ctx, itemID, in)
	if err != nil && found && apperrors.IsKind(err, apperrors.KindValidation) {
		v.restoreLocal(prev)
	}
	return out, err
}

// setLocalStatus rewrites the cached item and returns its previous value.
func (v *ItemsView) setLocalStatus(itemID uuid.UUID, status models.ItemStatus) (models.Item, bool) {
	var prev models.Item
	found := false
	now := v.now()
	v.mutate(func(cached []models.Item) []models.Item {
		out := make([]models.Item, len(cached))
		copy(out, cached)
		for i := range out {
			if out[i].ID == itemID {
				prev, found = out[i], true
				out[i].Status = status
				out[i].UpdatedAt = now
			}
		}
		return out
	})
	return prev, found
}

// restoreLocal puts back status and updated_at of a cached item unless a
// refetch has replaced it since.
func (v *ItemsView) restoreLocal(prev models.Item) {
	v.mutate(func(cached []models.Item) []models.Item {
		out := make([]models.Item, len(cached))
		copy(out, cached)
		for i := range out {
			if out[i].ID == prev.ID && out[i].Status == models.StatusOutOfStock {
				out[i].Status = prev.Status
				out[i].UpdatedAt = prev.UpdatedAt
			}
		}
		return out
	})
}
