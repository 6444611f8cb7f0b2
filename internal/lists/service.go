// Package lists owns list lifecycle and membership: who belongs to a list
// and with which role.
package lists

import (
	"context"
	"sort"
	"strings"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/audit"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/aliuyar1234/cartshare/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service provides list and membership operations for the current user.
type Service struct {
	store   store.Store
	auditor *audit.Writer
}

// NewService creates a new list service
func NewService(st store.Store, auditor *audit.Writer) *Service {
	return &Service{store: st, auditor: auditor}
}

// NewList is the input of CreateList.
type NewList struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description *string `json:"description"`
}

// Details is a single list as seen by one of its members.
type Details struct {
	models.List
	MemberCount int         `json:"member_count"`
	IsOwner     bool        `json:"is_owner"`
	Role        models.Role `json:"role"`
}

// EffectiveRole returns the role shown for m. The creator is always the
// owner; a stored owner role on any other row is shown as member.
func EffectiveRole(list models.List, m models.Membership) models.Role {
	if m.UserID == list.CreatedBy {
		return models.RoleOwner
	}
	if m.Role == models.RoleOwner || !m.Role.IsValid() {
		return models.RoleMember
	}
	return m.Role
}

// RequireMember loads the list and the caller's membership. Non-members get
// ErrNotMember.
func (s *Service) RequireMember(ctx context.Context, listID, userID uuid.UUID) (models.List, models.Membership, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return models.List{}, models.Membership{}, notFoundOr(err, ErrNotMember, "load list")
	}
	m, err := s.store.FindMembership(ctx, listID, userID)
	if err != nil {
		return models.List{}, models.Membership{}, notFoundOr(err, ErrNotMember, "check membership")
	}
	m.Role = EffectiveRole(list, m)
	return list, m, nil
}

// CreateList creates a list owned by the caller.
func (s *Service) CreateList(ctx context.Context, in NewList) (models.List, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return models.List{}, err
	}

	name, err := validation.NormalizeListName(in.Name)
	if err != nil {
		return models.List{}, invalid("invalid_name", err)
	}
	category, err := validation.NormalizeCategory(in.Category)
	if err != nil {
		return models.List{}, invalid("invalid_category", err)
	}

	list, err := s.store.InsertList(ctx, models.List{
		Name:        name,
		Category:    category,
		Description: validation.OptionalText(in.Description),
		CreatedBy:   user.ID,
	})
	if err != nil {
		return models.List{}, apperrors.Transient("create list", err)
	}

	_ = s.auditor.LogListCreated(ctx, list.ID, user.ID, list.Name)
	log.Debug().Str("list_id", list.ID.String()).Str("user_id", user.ID.String()).Msg("List created")

	return list, nil
}

// UserLists returns every list the caller belongs to, most recently updated
// first.
func (s *Service) UserLists(ctx context.Context) ([]models.ListSummary, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	memberships, err := s.store.MembershipsByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Transient("load lists", err)
	}
	if len(memberships) == 0 {
		return []models.ListSummary{}, nil
	}

	listIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		listIDs = append(listIDs, m.ListID)
	}

	var (
		rows   []models.List
		counts map[uuid.UUID]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.store.ListsByIDs(gctx, listIDs)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.store.CountItems(gctx, listIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Transient("load lists", err)
	}

	creators := make([]uuid.UUID, 0, len(rows))
	for _, l := range rows {
		creators = append(creators, l.CreatedBy)
	}
	profiles, err := s.store.ProfilesByIDs(ctx, creators)
	if err != nil {
		return nil, apperrors.Transient("load lists", err)
	}

	byList := make(map[uuid.UUID]models.Membership, len(memberships))
	for _, m := range memberships {
		byList[m.ListID] = m
	}

	out := make([]models.ListSummary, 0, len(rows))
	for _, l := range rows {
		out = append(out, models.ListSummary{
			List:        l,
			CreatorName: models.DisplayName(profiles, l.CreatedBy),
			ItemCount:   counts[l.ID],
			Role:        EffectiveRole(l, byList[l.ID]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// FilterLists keeps the lists whose name, category or description contains
// query, ignoring case. A blank query keeps everything.
func FilterLists(lists []models.ListSummary, query string) []models.ListSummary {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return lists
	}
	out := make([]models.ListSummary, 0, len(lists))
	for _, l := range lists {
		if strings.Contains(strings.ToLower(l.Name), query) ||
			strings.Contains(strings.ToLower(l.Category), query) ||
			(l.Description != nil && strings.Contains(strings.ToLower(*l.Description), query)) {
			out = append(out, l)
		}
	}
	return out
}

// ListDetails returns a list the caller belongs to with its member count.
func (s *Service) ListDetails(ctx context.Context, listID uuid.UUID) (Details, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return Details{}, err
	}
	list, m, err := s.RequireMember(ctx, listID, user.ID)
	if err != nil {
		return Details{}, err
	}
	count, err := s.store.CountMembers(ctx, listID)
	if err != nil {
		return Details{}, apperrors.Transient("count members", err)
	}
	return Details{
		List:        list,
		MemberCount: count,
		IsOwner:     list.CreatedBy == user.ID,
		Role:        EffectiveRole(list, m),
	}, nil
}

// DeleteList removes the list with all of its items, members, invitations
// and requests. Owner only.
func (s *Service) DeleteList(ctx context.Context, listID uuid.UUID) error {
	user, err := identity.Require(ctx)
	if err != nil {
		return err
	}
	list, _, err := s.RequireMember(ctx, listID, user.ID)
	if err != nil {
		return err
	}
	if list.CreatedBy != user.ID {
		return ErrNotOwner
	}

	if err := s.store.DeleteList(ctx, listID); err != nil {
		return notFoundOr(err, ErrNotMember, "delete list")
	}

	_ = s.auditor.LogListDeleted(ctx, listID, user.ID, list.Name)
	return nil
}
