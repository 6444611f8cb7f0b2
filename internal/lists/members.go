package lists

import (
	"context"
	"errors"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/google/uuid"
)

// ListMembers returns the members of a list in join order. Only the caller's
// own row carries an email address.
func (s *Service) ListMembers(ctx context.Context, listID uuid.UUID) ([]models.MemberView, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	list, _, err := s.RequireMember(ctx, listID, user.ID)
	if err != nil {
		return nil, err
	}

	members, err := s.store.MembersByList(ctx, listID)
	if err != nil {
		return nil, apperrors.Transient("load members", err)
	}

	userIDs := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	profiles, err := s.store.ProfilesByIDs(ctx, userIDs)
	if err != nil {
		return nil, apperrors.Transient("load members", err)
	}

	out := make([]models.MemberView, 0, len(members))
	for _, m := range members {
		m.Role = EffectiveRole(list, m)
		view := models.MemberView{
			Membership:    m,
			Name:          models.DisplayName(profiles, m.UserID),
			IsCurrentUser: m.UserID == user.ID,
		}
		if view.IsCurrentUser {
			email := user.Email
			if p, ok := profiles[m.UserID]; ok && p.Email != "" {
				email = p.Email
			}
			if email != "" {
				view.Email = &email
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// RemoveMember deletes another member's row. Owner only.
func (s *Service) RemoveMember(ctx context.Context, membershipID uuid.UUID) error {
	user, target, list, err := s.ownerAction(ctx, membershipID)
	if err != nil {
		return err
	}
	if target.UserID == list.CreatedBy {
		return ErrCannotRemoveOwner
	}

	if err := s.store.DeleteMembership(ctx, membershipID); err != nil {
		return notFoundOr(err, ErrMemberNotFound, "remove member")
	}

	_ = s.auditor.LogMemberRemoved(ctx, list.ID, user.ID, target.UserID, EffectiveRole(list, target))
	return nil
}

// UpdateMemberRole changes a member's role to editor or member. Owner only.
func (s *Service) UpdateMemberRole(ctx context.Context, membershipID uuid.UUID, role models.Role) error {
	if _, err := identity.Require(ctx); err != nil {
		return err
	}
	if !role.IsAssignable() {
		return ErrInvalidRole
	}

	user, target, list, err := s.ownerAction(ctx, membershipID)
	if err != nil {
		return err
	}
	if target.UserID == list.CreatedBy {
		return ErrCannotChangeOwnerRole
	}

	if err := s.store.UpdateMemberRole(ctx, membershipID, role); err != nil {
		return notFoundOr(err, ErrMemberNotFound, "update member role")
	}

	_ = s.auditor.LogMemberRoleUpdated(ctx, list.ID, user.ID, target.UserID, EffectiveRole(list, target), role)
	return nil
}

// LeaveList deletes the caller's own membership. The owner cannot leave.
func (s *Service) LeaveList(ctx context.Context, listID uuid.UUID) error {
	user, err := identity.Require(ctx)
	if err != nil {
		return err
	}
	list, m, err := s.RequireMember(ctx, listID, user.ID)
	if err != nil {
		return err
	}
	if list.CreatedBy == user.ID {
		return ErrOwnerCannotLeave
	}

	if err := s.store.DeleteMembership(ctx, m.ID); err != nil {
		return notFoundOr(err, ErrNotMember, "leave list")
	}

	_ = s.auditor.LogMemberLeft(ctx, listID, user.ID)
	return nil
}

// ownerAction resolves a membership row and checks the caller owns its list.
func (s *Service) ownerAction(ctx context.Context, membershipID uuid.UUID) (identity.User, models.Membership, models.List, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return identity.User{}, models.Membership{}, models.List{}, err
	}

	target, err := s.store.GetMembership(ctx, membershipID)
	if err != nil {
		return identity.User{}, models.Membership{}, models.List{}, notFoundOr(err, ErrMemberNotFound, "load member")
	}
	list, _, err := s.RequireMember(ctx, target.ListID, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return identity.User{}, models.Membership{}, models.List{}, ErrMemberNotFound
		}
		return identity.User{}, models.Membership{}, models.List{}, err
	}
	if list.CreatedBy != user.ID {
		return identity.User{}, models.Membership{}, models.List{}, ErrNotOwner
	}
	return user, target, list, nil
}
