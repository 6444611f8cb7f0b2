package memstore

import (
	"context"
	"sort"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

func (s *Store) InsertList(ctx context.Context, list models.List) (models.List, error) {
	err := s.write(ctx, func() ([]store.Change, error) {
		now := s.now()
		list.ID = uuid.New()
		list.CreatedAt = now
		list.UpdatedAt = now
		s.lists[list.ID] = list

		owner := models.Membership{
			ID:       uuid.New(),
			ListID:   list.ID,
			UserID:   list.CreatedBy,
			Role:     models.RoleOwner,
			JoinedAt: now,
		}
		s.members[owner.ID] = owner

		return []store.Change{
			change(store.TableLists, store.OpInsert, list.ID, list.ID, "", now),
			change(store.TableMembers, store.OpInsert, owner.ID, list.ID, "", now),
		}, nil
	})
	if err != nil {
		return models.List{}, err
	}
	return list, nil
}

func (s *Store) GetList(ctx context.Context, id uuid.UUID) (models.List, error) {
	var list models.List
	err := s.read(ctx, func() error {
		l, ok := s.lists[id]
		if !ok {
			return store.NewError("get list", store.CodeNotFound, nil)
		}
		list = l
		return nil
	})
	return list, err
}

func (s *Store) ListsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.List, error) {
	var out []models.List
	err := s.read(ctx, func() error {
		for id := range idSet(ids) {
			if l, ok := s.lists[id]; ok {
				out = append(out, l)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, err
}

func (s *Store) DeleteList(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func() ([]store.Change, error) {
		if _, ok := s.lists[id]; !ok {
			return nil, store.NewError("delete list", store.CodeNotFound, nil)
		}
		now := s.now()
		var changes []store.Change

		for itemID, it := range s.items {
			if it.ListID != id {
				continue
			}
			changes = append(changes, s.deleteItemLocked(itemID, now)...)
		}
		for mid, m := range s.members {
			if m.ListID == id {
				delete(s.members, mid)
				changes = append(changes, change(store.TableMembers, store.OpDelete, mid, id, "", now))
			}
		}
		for iid, inv := range s.invitations {
			if inv.ListID == id {
				delete(s.invitations, iid)
				changes = append(changes, change(store.TableInvitations, store.OpDelete, iid, id, string(inv.Status), now))
			}
		}
		delete(s.lists, id)
		changes = append(changes, change(store.TableLists, store.OpDelete, id, id, "", now))
		return changes, nil
	})
}

func (s *Store) MembersByList(ctx context.Context, listID uuid.UUID) ([]models.Membership, error) {
	var out []models.Membership
	err := s.read(ctx, func() error {
		for _, m := range s.members {
			if m.ListID == listID {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, err
}

func (s *Store) MembershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	var out []models.Membership
	err := s.read(ctx, func() error {
		for _, m := range s.members {
			if m.UserID == userID {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, err
}

func (s *Store) GetMembership(ctx context.Context, id uuid.UUID) (models.Membership, error) {
	var out models.Membership
	err := s.read(ctx, func() error {
		m, ok := s.members[id]
		if !ok {
			return store.NewError("get membership", store.CodeNotFound, nil)
		}
		out = m
		return nil
	})
	return out, err
}

func (s *Store) FindMembership(ctx context.Context, listID, userID uuid.UUID) (models.Membership, error) {
	var out models.Membership
	err := s.read(ctx, func() error {
		m, ok := s.findMembershipLocked(listID, userID)
		if !ok {
			return store.NewError("find membership", store.CodeNotFound, nil)
		}
		out = m
		return nil
	})
	return out, err
}

func (s *Store) findMembershipLocked(listID, userID uuid.UUID) (models.Membership, bool) {
	for _, m := range s.members {
		if m.ListID == listID && m.UserID == userID {
			return m, true
		}
	}
	return models.Membership{}, false
}

func (s *Store) CountMembers(ctx context.Context, listID uuid.UUID) (int, error) {
	n := 0
	err := s.read(ctx, func() error {
		for _, m := range s.members {
			if m.ListID == listID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) UpdateMemberRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	return s.write(ctx, func() ([]store.Change, error) {
		m, ok := s.members[id]
		if !ok {
			return nil, store.NewError("update member role", store.CodeNotFound, nil)
		}
		m.Role = role
		s.members[id] = m
		return []store.Change{change(store.TableMembers, store.OpUpdate, id, m.ListID, "", s.now())}, nil
	})
}

func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func() ([]store.Change, error) {
		m, ok := s.members[id]
		if !ok {
			return nil, store.NewError("delete membership", store.CodeNotFound, nil)
		}
		delete(s.members, id)
		return []store.Change{change(store.TableMembers, store.OpDelete, id, m.ListID, "", s.now())}, nil
	})
}
