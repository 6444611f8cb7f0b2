package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

func (s *Store) InsertInvitation(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	err := s.write(ctx, func() ([]store.Change, error) {
		if _, ok := s.lists[inv.ListID]; !ok {
			return nil, store.NewError("insert invitation", store.CodeForeignKey, nil)
		}
		now := s.now()
		inv.InvitedEmail = strings.ToLower(inv.InvitedEmail)

		var changes []store.Change
		for id, existing := range s.invitations {
			if existing.ListID != inv.ListID || existing.InvitedEmail != inv.InvitedEmail || existing.Status != models.InvitationPending {
				continue
			}
			if !existing.IsExpired(now) {
				return nil, store.NewError("insert invitation", store.CodeUniqueViolation, nil)
			}
			existing.Status = models.InvitationExpired
			s.invitations[id] = existing
			changes = append(changes, change(store.TableInvitations, store.OpUpdate, id, existing.ListID, string(existing.Status), now))
		}

		inv.ID = uuid.New()
		inv.Status = models.InvitationPending
		inv.InvitedUserID = nil
		inv.RespondedAt = nil
		inv.CreatedAt = now
		if p, ok := s.profileByEmailLocked(inv.InvitedEmail); ok {
			uid := p.ID
			inv.InvitedUserID = &uid
		}
		s.invitations[inv.ID] = inv
		return append(changes, change(store.TableInvitations, store.OpInsert, inv.ID, inv.ListID, string(inv.Status), now)), nil
	})
	if err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (models.Invitation, error) {
	var out models.Invitation
	err := s.read(ctx, func() error {
		inv, ok := s.invitations[id]
		if !ok {
			return store.NewError("get invitation", store.CodeNotFound, nil)
		}
		out = inv
		return nil
	})
	return out, err
}

func (s *Store) ReceivedInvitations(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Invitation, error) {
	var out []models.Invitation
	err := s.read(ctx, func() error {
		for _, inv := range s.invitations {
			if inv.InvitedUserID == nil || *inv.InvitedUserID != userID {
				continue
			}
			if inv.Status == models.InvitationPending && !inv.IsExpired(now) {
				out = append(out, inv)
			}
		}
		return nil
	})
	newestFirst(out, func(inv models.Invitation) time.Time { return inv.CreatedAt })
	return out, err
}

func (s *Store) SentInvitations(ctx context.Context, invitedBy uuid.UUID, listID *uuid.UUID) ([]models.Invitation, error) {
	var out []models.Invitation
	err := s.read(ctx, func() error {
		for _, inv := range s.invitations {
			if inv.InvitedBy != invitedBy {
				continue
			}
			if listID != nil && inv.ListID != *listID {
				continue
			}
			out = append(out, inv)
		}
		return nil
	})
	newestFirst(out, func(inv models.Invitation) time.Time { return inv.CreatedAt })
	return out, err
}

func (s *Store) AcceptInvitation(ctx context.Context, id, userID uuid.UUID, now time.Time) (models.Membership, error) {
	var out models.Membership
	err := s.write(ctx, func() ([]store.Change, error) {
		inv, err := s.respondableLocked("accept invitation", id, userID, now)
		if err != nil {
			return nil, err
		}
		at := s.now()

		var changes []store.Change
		m, exists := s.findMembershipLocked(inv.ListID, userID)
		if !exists {
			m = models.Membership{
				ID:       uuid.New(),
				ListID:   inv.ListID,
				UserID:   userID,
				Role:     inv.Role,
				JoinedAt: at,
			}
			s.members[m.ID] = m
			changes = append(changes, change(store.TableMembers, store.OpInsert, m.ID, m.ListID, "", at))
		}

		respondedAt := now.UTC()
		inv.Status = models.InvitationAccepted
		inv.RespondedAt = &respondedAt
		s.invitations[id] = inv
		out = m
		return append(changes, change(store.TableInvitations, store.OpUpdate, id, inv.ListID, string(inv.Status), at)), nil
	})
	return out, err
}

func (s *Store) DeclineInvitation(ctx context.Context, id, userID uuid.UUID, now time.Time) error {
	return s.write(ctx, func() ([]store.Change, error) {
		inv, err := s.respondableLocked("decline invitation", id, userID, now)
		if err != nil {
			return nil, err
		}
		respondedAt := now.UTC()
		inv.Status = models.InvitationDeclined
		inv.RespondedAt = &respondedAt
		s.invitations[id] = inv
		return []store.Change{change(store.TableInvitations, store.OpUpdate, id, inv.ListID, string(inv.Status), s.now())}, nil
	})
}

// respondableLocked loads an invitation the user may still answer.
func (s *Store) respondableLocked(op string, id, userID uuid.UUID, now time.Time) (models.Invitation, error) {
	inv, ok := s.invitations[id]
	if !ok || inv.InvitedUserID == nil || *inv.InvitedUserID != userID {
		return models.Invitation{}, store.NewError(op, store.CodeNotFound, nil)
	}
	if inv.Status != models.InvitationPending {
		return models.Invitation{}, store.NewError(op, store.CodeStateConflict, nil)
	}
	if inv.IsExpired(now) {
		return models.Invitation{}, store.NewError(op, store.CodeExpired, nil)
	}
	return inv, nil
}

func (s *Store) DeleteInvitation(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func() ([]store.Change, error) {
		inv, ok := s.invitations[id]
		if !ok {
			return nil, store.NewError("delete invitation", store.CodeNotFound, nil)
		}
		delete(s.invitations, id)
		return []store.Change{change(store.TableInvitations, store.OpDelete, id, inv.ListID, string(inv.Status), s.now())}, nil
	})
}

func (s *Store) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.write(ctx, func() ([]store.Change, error) {
		var changes []store.Change
		at := s.now()
		for id, inv := range s.invitations {
			if inv.Status == models.InvitationPending && inv.IsExpired(now) {
				inv.Status = models.InvitationExpired
				s.invitations[id] = inv
				n++
				changes = append(changes, change(store.TableInvitations, store.OpUpdate, id, inv.ListID, string(inv.Status), at))
			}
		}
		return changes, nil
	})
	return n, err
}
