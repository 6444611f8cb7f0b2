package memstore

import (
	"context"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

func (s *Store) ItemsByList(ctx context.Context, listID uuid.UUID) ([]models.Item, error) {
	var out []models.Item
	err := s.read(ctx, func() error {
		for _, it := range s.items {
			if it.ListID == listID {
				out = append(out, it)
			}
		}
		return nil
	})
	newestFirst(out, func(it models.Item) time.Time { return it.CreatedAt })
	return out, err
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	var out models.Item
	err := s.read(ctx, func() error {
		it, ok := s.items[id]
		if !ok {
			return store.NewError("get item", store.CodeNotFound, nil)
		}
		out = it
		return nil
	})
	return out, err
}

func (s *Store) ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	var out []models.Item
	err := s.read(ctx, func() error {
		for id := range idSet(ids) {
			if it, ok := s.items[id]; ok {
				out = append(out, it)
			}
		}
		return nil
	})
	newestFirst(out, func(it models.Item) time.Time { return it.CreatedAt })
	return out, err
}

func (s *Store) CountItems(ctx context.Context, listIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(listIDs))
	err := s.read(ctx, func() error {
		wanted := idSet(listIDs)
		for _, it := range s.items {
			if wanted[it.ListID] {
				counts[it.ListID]++
			}
		}
		return nil
	})
	return counts, err
}

func (s *Store) InsertItem(ctx context.Context, item models.Item) (models.Item, error) {
	err := s.write(ctx, func() ([]store.Change, error) {
		if _, ok := s.lists[item.ListID]; !ok {
			return nil, store.NewError("insert item", store.CodeForeignKey, nil)
		}
		now := s.now()
		item.ID = uuid.New()
		if item.Status == "" {
			item.Status = models.StatusNeeded
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		item.CreatedAt = now
		item.UpdatedAt = now
		item.CreatedByName = ""
		s.items[item.ID] = item
		return []store.Change{
			change(store.TableItems, store.OpInsert, item.ID, item.ListID, string(item.Status), now),
			s.touchListLocked(item.ListID, now),
		}, nil
	})
	if err != nil {
		return models.Item{}, err
	}
	return item, nil
}

func (s *Store) UpdateItem(ctx context.Context, id uuid.UUID, patch models.ItemPatch) (models.Item, error) {
	var out models.Item
	err := s.write(ctx, func() ([]store.Change, error) {
		it, ok := s.items[id]
		if !ok {
			return nil, store.NewError("update item", store.CodeNotFound, nil)
		}
		if patch.Name != nil {
			it.Name = *patch.Name
		}
		if patch.Notes != nil {
			it.Notes = emptyToNil(*patch.Notes)
		}
		if patch.Quantity != nil {
			it.Quantity = *patch.Quantity
		}
		if patch.StoreName != nil {
			it.StoreName = emptyToNil(*patch.StoreName)
		}
		if patch.Status != nil {
			it.Status = *patch.Status
		}
		if patch.UpdatedBy != uuid.Nil {
			by := patch.UpdatedBy
			it.UpdatedBy = &by
		}
		it.UpdatedAt = s.now()
		s.items[id] = it
		out = it
		return []store.Change{
			change(store.TableItems, store.OpUpdate, id, it.ListID, string(it.Status), it.UpdatedAt),
			s.touchListLocked(it.ListID, it.UpdatedAt),
		}, nil
	})
	return out, err
}

func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func() ([]store.Change, error) {
		it, ok := s.items[id]
		if !ok {
			return nil, store.NewError("delete item", store.CodeNotFound, nil)
		}
		now := s.now()
		return append(s.deleteItemLocked(id, now), s.touchListLocked(it.ListID, now)), nil
	})
}

// deleteItemLocked removes the item and its replacement requests.
func (s *Store) deleteItemLocked(id uuid.UUID, now time.Time) []store.Change {
	it := s.items[id]
	var changes []store.Change
	for rid, r := range s.requests {
		if r.ItemID == id {
			delete(s.requests, rid)
			changes = append(changes, change(store.TableRequests, store.OpDelete, rid, it.ListID, string(r.Status), now))
		}
	}
	delete(s.items, id)
	return append(changes, change(store.TableItems, store.OpDelete, id, it.ListID, string(it.Status), now))
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// touchListLocked bumps the list's updated_at so it moves to the top of the
// overview.
func (s *Store) touchListLocked(listID uuid.UUID, now time.Time) store.Change {
	if l, ok := s.lists[listID]; ok {
		l.UpdatedAt = now
		s.lists[listID] = l
	}
	return change(store.TableLists, store.OpUpdate, listID, listID, "", now)
}
