// Package invitations implements the invitation lifecycle: an owner or
// editor invites an email address, and the addressee accepts or declines.
// Acceptance creates the membership in the same store operation.
package invitations

import (
	"context"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/audit"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/push"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/aliuyar1234/cartshare/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultTTL is how long an invitation stays open.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrDuplicatePending is returned when a pending invitation for the same
	// email already exists on the list
	ErrDuplicatePending = apperrors.Conflict("duplicate_pending_invitation", "An invitation has already been sent to this email for this list")

	ErrAlreadyMember        = apperrors.Conflict("already_member", "This person is already a member of the list")
	ErrCannotInvite         = apperrors.Authorization("cannot_invite", "Only the owner or an editor can invite people")
	ErrInvitationNotFound   = apperrors.NotFound("invitation_not_found", "Invitation not found")
	ErrInvitationNotPending = apperrors.Conflict("invitation_not_pending", "This invitation has already been answered")
	ErrInvitationExpired    = apperrors.Conflict("invitation_expired", "This invitation has expired")
	ErrNotSender            = apperrors.Authorization("not_sender", "Only the person who sent the invitation can cancel it")
)

// Service runs the invitation workflow.
type Service struct {
	store    store.Store
	lists    *lists.Service
	notifier *push.Notifier
	auditor  *audit.Writer
	ttl      time.Duration
	now      func() time.Time
}

func NewService(st store.Store, ls *lists.Service, notifier *push.Notifier, auditor *audit.Writer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:    st,
		lists:    ls,
		notifier: notifier,
		auditor:  auditor,
		ttl:      ttl,
		now:      time.Now,
	}
}

// NewInvitation is the input of Send. Role defaults to member.
type NewInvitation struct {
	Email   string      `json:"email"`
	Role    models.Role `json:"role"`
	Message *string     `json:"message"`
}

// Send invites an email address to a list.
func (s *Service) Send(ctx context.Context, listID uuid.UUID, in NewInvitation) (models.Invitation, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return models.Invitation{}, err
	}

	email, err := validation.NormalizeEmail(in.Email)
	if err != nil {
		return models.Invitation{}, apperrors.Validation("invalid_email", err.Error())
	}
	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	if !role.IsAssignable() {
		return models.Invitation{}, lists.ErrInvalidRole
	}

	list, m, err := s.lists.RequireMember(ctx, listID, user.ID)
	if err != nil {
		return models.Invitation{}, err
	}
	if !m.Role.CanInvite() {
		return models.Invitation{}, ErrCannotInvite
	}

	members, err := s.memberProfiles(ctx, listID)
	if err != nil {
		return models.Invitation{}, apperrors.Transient("send invitation", err)
	}
	for _, p := range members {
		if p.Email == email {
			return models.Invitation{}, ErrAlreadyMember
		}
	}

	now := s.now()
	inv, err := s.store.InsertInvitation(ctx, models.Invitation{
		ListID:       listID,
		InvitedBy:    user.ID,
		InvitedEmail: email,
		Role:         role,
		Message:      validation.OptionalText(in.Message),
		ExpiresAt:    now.Add(s.ttl),
	})
	if err != nil {
		switch {
		case store.IsCode(err, store.CodeUniqueViolation):
			return models.Invitation{}, ErrDuplicatePending
		case store.IsCode(err, store.CodeForeignKey):
			return models.Invitation{}, lists.ErrNotMember
		}
		return models.Invitation{}, apperrors.Transient("send invitation", err)
	}

	inviterName := members[user.ID].Name
	if inviterName == "" {
		inviterName = user.DisplayName
	}
	inv.ListName = list.Name
	inv.InviterName = inviterName

	_ = s.auditor.LogInvitationSent(ctx, listID, user.ID, inv.ID, email, role)
	if inv.InvitedUserID != nil {
		s.notifier.InvitationReceived(ctx, *inv.InvitedUserID, inv.ID, list.Name, inviterName)
	}

	log.Debug().
		Str("invitation_id", inv.ID.String()).
		Str("list_id", listID.String()).
		Bool("registered", inv.InvitedUserID != nil).
		Msg("Invitation sent")

	return inv, nil
}

func (s *Service) memberProfiles(ctx context.Context, listID uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	members, err := s.store.MembersByList(ctx, listID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return s.store.ProfilesByIDs(ctx, ids)
}

// Received returns open invitations addressed to the caller, newest first.
func (s *Service) Received(ctx context.Context) ([]models.Invitation, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	invs, err := s.store.ReceivedInvitations(ctx, user.ID, s.now())
	if err != nil {
		return nil, apperrors.Transient("load invitations", err)
	}
	if err := s.enrich(ctx, invs); err != nil {
		return nil, apperrors.Transient("load invitations", err)
	}
	return invs, nil
}

// Sent returns invitations the caller sent, optionally for one list.
func (s *Service) Sent(ctx context.Context, listID *uuid.UUID) ([]models.Invitation, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if listID != nil {
		if _, _, err := s.lists.RequireMember(ctx, *listID, user.ID); err != nil {
			return nil, err
		}
	}
	invs, err := s.store.SentInvitations(ctx, user.ID, listID)
	if err != nil {
		return nil, apperrors.Transient("load invitations", err)
	}
	if err := s.enrich(ctx, invs); err != nil {
		return nil, apperrors.Transient("load invitations", err)
	}
	return invs, nil
}

// enrich resolves list, inviter and invitee names with parallel batch
// lookups.
func (s *Service) enrich(ctx context.Context, invs []models.Invitation) error {
	if len(invs) == 0 {
		return nil
	}
	listIDs := make([]uuid.UUID, 0, len(invs))
	userIDs := make([]uuid.UUID, 0, len(invs)*2)
	for _, inv := range invs {
		listIDs = append(listIDs, inv.ListID)
		userIDs = append(userIDs, inv.InvitedBy)
		if inv.InvitedUserID != nil {
			userIDs = append(userIDs, *inv.InvitedUserID)
		}
	}

	var (
		listRows []models.List
		profiles map[uuid.UUID]models.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listRows, err = s.store.ListsByIDs(gctx, listIDs)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = s.store.ProfilesByIDs(gctx, userIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	listNames := make(map[uuid.UUID]string, len(listRows))
	for _, l := range listRows {
		listNames[l.ID] = l.Name
	}
	for i := range invs {
		inv := &invs[i]
		inv.ListName = listNames[inv.ListID]
		inv.InviterName = models.DisplayName(profiles, inv.InvitedBy)
		if inv.InvitedUserID != nil {
			inv.InvitedUserName = models.DisplayName(profiles, *inv.InvitedUserID)
		}
	}
	return nil
}

// Accept joins the caller to the invitation's list. Concurrent accepts of
// the same invitation produce one membership; the losers get
// ErrInvitationNotPending.
func (s *Service) Accept(ctx context.Context, invitationID uuid.UUID) (models.Membership, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return models.Membership{}, err
	}
	m, err := s.store.AcceptInvitation(ctx, invitationID, user.ID, s.now())
	if err != nil {
		return models.Membership{}, respondError(err, "accept invitation")
	}

	_ = s.auditor.LogInvitationAccepted(ctx, m.ListID, user.ID, invitationID)
	return m, nil
}

// Decline closes the invitation without creating a membership.
func (s *Service) Decline(ctx context.Context, invitationID uuid.UUID) error {
	user, err := identity.Require(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeclineInvitation(ctx, invitationID, user.ID, s.now()); err != nil {
		return respondError(err, "decline invitation")
	}

	if inv, err := s.store.GetInvitation(ctx, invitationID); err == nil {
		_ = s.auditor.LogInvitationDeclined(ctx, inv.ListID, user.ID, invitationID)
	}
	return nil
}

func respondError(err error, op string) error {
	switch {
	case store.IsCode(err, store.CodeNotFound):
		return ErrInvitationNotFound
	case store.IsCode(err, store.CodeStateConflict):
		return ErrInvitationNotPending
	case store.IsCode(err, store.CodeExpired):
		return ErrInvitationExpired
	}
	return apperrors.Transient(op, err)
}

// Cancel deletes an invitation. Only its sender may cancel it.
func (s *Service) Cancel(ctx context.Context, invitationID uuid.UUID) error {
	user, err := identity.Require(ctx)
	if err != nil {
		return err
	}
	inv, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		if store.IsCode(err, store.CodeNotFound) {
			return ErrInvitationNotFound
		}
		return apperrors.Transient("cancel invitation", err)
	}
	if inv.InvitedBy != user.ID {
		if inv.InvitedUserID != nil && *inv.InvitedUserID == user.ID {
			return ErrNotSender
		}
		if _, _, err := s.lists.RequireMember(ctx, inv.ListID, user.ID); err != nil {
			return ErrInvitationNotFound
		}
		return ErrNotSender
	}

	if err := s.store.DeleteInvitation(ctx, invitationID); err != nil {
		if store.IsCode(err, store.CodeNotFound) {
			return ErrInvitationNotFound
		}
		return apperrors.Transient("cancel invitation", err)
	}

	_ = s.auditor.LogInvitationCancelled(ctx, inv.ListID, user.ID, invitationID)
	return nil
}

// ExpireStale marks every pending invitation past its expiry as expired.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireInvitations(ctx, s.now())
	if err != nil {
		return 0, apperrors.Transient("expire invitations", err)
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("Expired stale invitations")
	}
	return n, nil
}
