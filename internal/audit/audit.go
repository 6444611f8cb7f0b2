package audit

import (
	"context"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	EventListCreated           = "list.created"
	EventListDeleted           = "list.deleted"
	EventListMemberRemoved     = "list.member_removed"
	EventListMemberRoleUpdated = "list.member_role_updated"
	EventListMemberLeft        = "list.member_left"
	EventInvitationSent        = "invitation.sent"
	EventInvitationAccepted    = "invitation.accepted"
	EventInvitationDeclined    = "invitation.declined"
	EventInvitationCancelled   = "invitation.cancelled"
)

// Writer provides methods to write activity log entries. A nil *Writer
// discards everything, so services can run without an activity log.
type Writer struct {
	store store.AuditStore
}

func NewWriter(st store.AuditStore) *Writer {
	return &Writer{store: st}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	ListID      *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]any
}

// Log writes one event. Failures are logged and returned; callers treat
// them as non-fatal.
func (w *Writer) Log(ctx context.Context, params LogParams) error {
	if w == nil || w.store == nil {
		return nil
	}
	meta := params.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	err := w.store.InsertAuditEvent(ctx, models.AuditEvent{
		ListID:      params.ListID,
		ActorUserID: params.ActorUserID,
		Action:      params.Action,
		Meta:        meta,
	})
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Debug().
		Str("action", params.Action).
		Interface("list_id", params.ListID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

func (w *Writer) LogListCreated(ctx context.Context, listID, userID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		ListID:      &listID,
		ActorUserID: &userID,
		Action:      EventListCreated,
		Meta: map[string]any{
			"name": name,
		},
	})
}

// LogListDeleted is written without a list reference because the list row
// is gone once the event is stored.
func (w *Writer) LogListDeleted(ctx context.Context, listID, userID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventListDeleted,
		Meta: map[string]any{
			"list_id": listID.String(),
			"name":    name,
		},
	})
}

func (w *Writer) LogMemberRemoved(ctx context.Context, listID, actorUserID, targetUserID uuid.UUID, role models.Role) error {
	return w.Log(ctx, LogParams{
		ListID:      &listID,
		ActorUserID: &actorUserID,
		Action:      EventListMemberRemoved,
		Meta: map[string]any{
			"target_user_id": targetUserID.String(),
			"role":           string(role),
		},
	})
}

func (w *Writer) LogMemberRoleUpdated(ctx context.Context, listID, actorUserID, targetUserID uuid.UUID, previousRole, newRole models.Role) error {
	return w.Log(ctx, LogParams{
		ListID:      &listID,
		ActorUserID: &actorUserID,
		Action:      EventListMemberRoleUpdated,
		Meta: map[string]any{
			"target_user_id": targetUserID.String(),
			"previous_role":  string(previousRole),
			"new_role":       string(newRole),
		},
	})
}

func (w *Writer) LogMemberLeft(ctx context.Context, listID, userID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		ListID:      &listID,
		ActorUserID: &userID,
		Action:      EventListMemberLeft,
	})
}

func (w *Writer) LogInvitationSent(ctx context.Context, listID, actorUserID, invitationID uuid.UUID, email string, role models.Role) error {
	return w.Log(ctx, LogParams{
		ListID:      &listID,
		ActorUserID: &actorUserID,
		Action:      EventInvitationSent,
		Meta: map[string]any{
			"invitation_id": invitationID.String(),
			"email":         email,
			"role":          string(role),
		},
	})
}

func (w *Writer) LogInvitationAccepted(ctx context.Context, listID, actorUserID, invitationID uuid.UUID) error {
	return w.logInvitation(ctx, EventInvitationAccepted, listID, actorUserID, invitationID)
}

func (w *Writer) LogInvitationDeclined(ctx context.Context, listID, actorUserID, invitationID uuid.UUID) error {
	return w.logInvitation(ctx, EventInvitationDeclined, listID, actorUserID, invitationID)
}

func (w *Writer) LogInvitationCancelled(ctx context.Context, listID, actorUserID, invitationID uuid.UUID) error {
	return w.logInvitation(ctx, EventInvitationCancelled, listID, actorUserID, invitationID)
}

func (w *Writer) logInvitation(ctx context.Context, action string, listID, actorUserID, invitationID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		ListID:      &listID,
		ActorUserID: &actorUserID,
		Action:      action,
		Meta: map[string]any{
			"invitation_id": invitationID.String(),
		},
	})
}
