package memstore

import (
	"context"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

func (s *Store) InsertRequests(ctx context.Context, reqs []models.ReplacementRequest) ([]models.ReplacementRequest, error) {
	out := make([]models.ReplacementRequest, 0, len(reqs))
	err := s.write(ctx, func() ([]store.Change, error) {
		for _, r := range reqs {
			if _, ok := s.items[r.ItemID]; !ok {
				return nil, store.NewError("insert replacement requests", store.CodeForeignKey, nil)
			}
		}
		now := s.now()
		changes := make([]store.Change, 0, len(reqs))
		for _, r := range reqs {
			r.ID = uuid.New()
			r.Status = models.RequestPending
			r.RespondedBy = nil
			r.CreatedAt = now
			r.UpdatedAt = now
			s.requests[r.ID] = r
			out = append(out, r)
			changes = append(changes, change(store.TableRequests, store.OpInsert, r.ID, s.items[r.ItemID].ListID, string(r.Status), now))
		}
		return changes, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetRequest(ctx context.Context, id uuid.UUID) (models.ReplacementRequest, error) {
	var out models.ReplacementRequest
	err := s.read(ctx, func() error {
		r, ok := s.requests[id]
		if !ok {
			return store.NewError("get replacement request", store.CodeNotFound, nil)
		}
		out = r
		return nil
	})
	return out, err
}

func (s *Store) PendingRequests(ctx context.Context, listIDs []uuid.UUID) ([]models.ReplacementRequest, error) {
	var out []models.ReplacementRequest
	err := s.read(ctx, func() error {
		wanted := idSet(listIDs)
		for _, r := range s.requests {
			if r.Status != models.RequestPending {
				continue
			}
			if it, ok := s.items[r.ItemID]; ok && wanted[it.ListID] {
				out = append(out, r)
			}
		}
		return nil
	})
	newestFirst(out, func(r models.ReplacementRequest) time.Time { return r.CreatedAt })
	return out, err
}

func (s *Store) RespondRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus, respondedBy uuid.UUID, at time.Time) (models.ReplacementRequest, error) {
	var out models.ReplacementRequest
	err := s.write(ctx, func() ([]store.Change, error) {
		r, ok := s.requests[id]
		if !ok {
			return nil, store.NewError("respond replacement request", store.CodeNotFound, nil)
		}
		if r.Status != models.RequestPending {
			return nil, store.NewError("respond replacement request", store.CodeStateConflict, nil)
		}
		r.Status = status
		r.RespondedBy = &respondedBy
		r.UpdatedAt = at.UTC()
		s.requests[id] = r
		out = r
		return []store.Change{change(store.TableRequests, store.OpUpdate, id, s.items[r.ItemID].ListID, string(status), r.UpdatedAt)}, nil
	})
	return out, err
}
