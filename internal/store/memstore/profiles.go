package memstore

import (
	"context"
	"strings"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

func (s *Store) ProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	out := make(map[uuid.UUID]models.Profile, len(ids))
	err := s.read(ctx, func() error {
		for _, id := range ids {
			if p, ok := s.profiles[id]; ok {
				out[id] = p
			}
		}
		return nil
	})
	return out, err
}

// UpsertProfile stores name and email, keeping an existing push token.
// Pending invitations sent to the email before the user existed are linked
// to the profile.
func (s *Store) UpsertProfile(ctx context.Context, p models.Profile) error {
	return s.write(ctx, func() ([]store.Change, error) {
		now := s.now()
		p.Email = strings.ToLower(strings.TrimSpace(p.Email))

		op := store.OpInsert
		if existing, ok := s.profiles[p.ID]; ok {
			op = store.OpUpdate
			if p.PushToken == nil {
				p.PushToken = existing.PushToken
			}
		}
		s.profiles[p.ID] = p
		changes := []store.Change{change(store.TableProfiles, op, p.ID, uuid.Nil, "", now)}

		if p.Email == "" {
			return changes, nil
		}
		for id, inv := range s.invitations {
			if inv.InvitedUserID == nil && inv.Status == models.InvitationPending && inv.InvitedEmail == p.Email {
				uid := p.ID
				inv.InvitedUserID = &uid
				s.invitations[id] = inv
				changes = append(changes, change(store.TableInvitations, store.OpUpdate, id, inv.ListID, string(inv.Status), now))
			}
		}
		return changes, nil
	})
}

func (s *Store) SetPushToken(ctx context.Context, userID uuid.UUID, token *string) error {
	return s.write(ctx, func() ([]store.Change, error) {
		p, ok := s.profiles[userID]
		if !ok {
			return nil, store.NewError("set push token", store.CodeNotFound, nil)
		}
		p.PushToken = token
		s.profiles[userID] = p
		return []store.Change{change(store.TableProfiles, store.OpUpdate, userID, uuid.Nil, "", s.now())}, nil
	})
}

func (s *Store) profileByEmailLocked(email string) (models.Profile, bool) {
	for _, p := range s.profiles {
		if p.Email != "" && p.Email == email {
			return p, true
		}
	}
	return models.Profile{}, false
}

func (s *Store) InsertAuditEvent(ctx context.Context, e models.AuditEvent) error {
	return s.write(ctx, func() ([]store.Change, error) {
		e.ID = uuid.New()
		e.CreatedAt = s.now()
		s.audit = append(s.audit, e)
		return nil, nil
	})
}

func (s *Store) AuditEvents(ctx context.Context, listID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	var out []models.AuditEvent
	err := s.read(ctx, func() error {
		for i := len(s.audit) - 1; i >= 0; i-- {
			e := s.audit[i]
			if e.ListID == nil || *e.ListID != listID {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}
