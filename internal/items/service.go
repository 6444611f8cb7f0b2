// Package items owns the items of a list and their status lifecycle.
package items

import (
	"context"
	"strings"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/aliuyar1234/cartshare/internal/validation"
	"github.com/google/uuid"
)

var (
	ErrItemNotFound  = apperrors.NotFound("item_not_found", "Item not found")
	ErrInvalidStatus = apperrors.Validation("invalid_status", "Unknown item status")
)

// Service provides item operations for members of a list.
type Service struct {
	store   store.Store
	members *lists.Service
	now     func() time.Time
}

// NewService creates a new item service
func NewService(st store.Store, members *lists.Service) *Service {
	return &Service{store: st, members: members, now: time.Now}
}

// NewItem is the input of AddItem. Quantity is optional.
type NewItem struct {
	Name      string  `json:"name"`
	Notes     *string `json:"notes"`
	Quantity  *int    `json:"quantity"`
	StoreName *string `json:"store_name"`
}

// ListItems returns the items of a list newest first with creator names.
func (s *Service) ListItems(ctx context.Context, listID uuid.UUID) ([]models.Item, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.members.RequireMember(ctx, listID, user.ID); err != nil {
		return nil, err
	}

	items, err := s.store.ItemsByList(ctx, listID)
	if err != nil {
		return nil, apperrors.Transient("load items", err)
	}

	creators := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		creators = append(creators, it.CreatedBy)
	}
	profiles, err := s.store.ProfilesByIDs(ctx, creators)
	if err != nil {
		return nil, apperrors.Transient("load items", err)
	}
	for i := range items {
		items[i].CreatedByName = models.DisplayName(profiles, items[i].CreatedBy)
	}
	if items == nil {
		items = []models.Item{}
	}
	return items, nil
}

// AddItem adds an item in the needed state.
func (s *Service) AddItem(ctx context.Context, listID uuid.UUID, in NewItem) (models.Item, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return models.Item{}, err
	}
	name, err := validation.NormalizeName(in.Name)
	if err != nil {
		return models.Item{}, apperrors.Validation("invalid_name", err.Error())
	}
	if _, _, err := s.members.RequireMember(ctx, listID, user.ID); err != nil {
		return models.Item{}, err
	}

	return s.insert(ctx, models.Item{
		ListID:    listID,
		Name:      name,
		Notes:     validation.OptionalText(in.Notes),
		Quantity:  validation.Quantity(in.Quantity),
		Status:    models.StatusNeeded,
		StoreName: validation.OptionalText(in.StoreName),
		CreatedBy: user.ID,
	}, user)
}

// InsertForUser stores an already validated item on behalf of user. Used by
// workflows that create items as a side effect.
func (s *Service) InsertForUser(ctx context.Context, listID uuid.UUID, name string, user identity.User) (models.Item, error) {
	return s.insert(ctx, models.Item{
		ListID:    listID,
		Name:      name,
		Quantity:  1,
		Status:    models.StatusNeeded,
		CreatedBy: user.ID,
	}, user)
}

func (s *Service) insert(ctx context.Context, item models.Item, user identity.User) (models.Item, error) {
	created, err := s.store.InsertItem(ctx, item)
	if err != nil {
		if store.IsCode(err, store.CodeForeignKey) {
			return models.Item{}, lists.ErrNotMember
		}
		return models.Item{}, apperrors.Transient("add item", err)
	}
	created.CreatedByName = user.DisplayName
	if created.CreatedByName == "" {
		created.CreatedByName = models.UnknownName
	}
	return created, nil
}

// UpdateItemStatus moves an item to any status.
func (s *Service) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status models.ItemStatus) (models.Item, error) {
	if !status.IsValid() {
		return models.Item{}, ErrInvalidStatus
	}
	return s.UpdateItem(ctx, itemID, models.ItemPatch{Status: &status})
}

// UpdateItem applies the non-nil fields of patch.
func (s *Service) UpdateItem(ctx context.Context, itemID uuid.UUID, patch models.ItemPatch) (models.Item, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return models.Item{}, err
	}
	if err := normalizePatch(&patch); err != nil {
		return models.Item{}, err
	}
	if _, err := s.RequireItem(ctx, itemID, user.ID); err != nil {
		return models.Item{}, err
	}

	patch.UpdatedBy = user.ID
	patch.UpdatedAt = s.now()
	updated, err := s.store.UpdateItem(ctx, itemID, patch)
	if err != nil {
		if store.IsCode(err, store.CodeNotFound) {
			return models.Item{}, ErrItemNotFound
		}
		return models.Item{}, apperrors.Transient("update item", err)
	}
	return updated, nil
}

// DeleteItem removes an item. Any member may delete.
func (s *Service) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	user, err := identity.Require(ctx)
	if err != nil {
		return err
	}
	if _, err := s.RequireItem(ctx, itemID, user.ID); err != nil {
		return err
	}
	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		if store.IsCode(err, store.CodeNotFound) {
			return ErrItemNotFound
		}
		return apperrors.Transient("delete item", err)
	}
	return nil
}

// RequireItem loads an item and checks userID belongs to its list. Items on
// lists the user cannot see are reported as missing.
func (s *Service) RequireItem(ctx context.Context, itemID, userID uuid.UUID) (models.Item, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if store.IsCode(err, store.CodeNotFound) {
			return models.Item{}, ErrItemNotFound
		}
		return models.Item{}, apperrors.Transient("load item", err)
	}
	if _, _, err := s.members.RequireMember(ctx, item.ListID, userID); err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return models.Item{}, ErrItemNotFound
		}
		return models.Item{}, err
	}
	return item, nil
}

func normalizePatch(p *models.ItemPatch) error {
	if p.Name != nil {
		name, err := validation.NormalizeName(*p.Name)
		if err != nil {
			return apperrors.Validation("invalid_name", err.Error())
		}
		p.Name = &name
	}
	p.Notes = trimmed(p.Notes)
	p.StoreName = trimmed(p.StoreName)
	if p.Quantity != nil && *p.Quantity < 1 {
		return apperrors.Validation("invalid_quantity", "Quantity must be at least 1")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// trimmed keeps nil as "unchanged" and turns a blank value into "" so the
// store clears the column.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
