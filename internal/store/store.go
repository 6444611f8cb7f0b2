// Package store defines the Data Store Client used by the model packages:
// per-table query and mutation operations plus a change feed.
package store

import (
	"context"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/google/uuid"
)

// ListStore covers the lists table.
type ListStore interface {
	// InsertList stores the list and its owner membership in one transaction.
	InsertList(ctx context.Context, list models.List) (models.List, error)
	GetList(ctx context.Context, id uuid.UUID) (models.List, error)
	ListsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.List, error)
	// DeleteList removes the list and everything that hangs off it.
	DeleteList(ctx context.Context, id uuid.UUID) error
}

// MemberStore covers the list_members table.
type MemberStore interface {
	MembersByList(ctx context.Context, listID uuid.UUID) ([]models.Membership, error)
	MembershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	GetMembership(ctx context.Context, id uuid.UUID) (models.Membership, error)
	FindMembership(ctx context.Context, listID, userID uuid.UUID) (models.Membership, error)
	CountMembers(ctx context.Context, listID uuid.UUID) (int, error)
	UpdateMemberRole(ctx context.Context, id uuid.UUID, role models.Role) error
	DeleteMembership(ctx context.Context, id uuid.UUID) error
}

// ItemStore covers the items table.
type ItemStore interface {
	// ItemsByList returns the list's items newest first.
	ItemsByList(ctx context.Context, listID uuid.UUID) ([]models.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (models.Item, error)
	ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
	CountItems(ctx context.Context, listIDs []uuid.UUID) (map[uuid.UUID]int, error)
	InsertItem(ctx context.Context, item models.Item) (models.Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, patch models.ItemPatch) (models.Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
}

// RequestStore covers the replacement_requests table.
type RequestStore interface {
	// InsertRequests stores all rows or none.
	InsertRequests(ctx context.Context, reqs []models.ReplacementRequest) ([]models.ReplacementRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (models.ReplacementRequest, error)
	// PendingRequests returns pending requests for items on the given lists,
	// newest first.
	PendingRequests(ctx context.Context, listIDs []uuid.UUID) ([]models.ReplacementRequest, error)
	// RespondRequest moves a pending request to a terminal status. A request
	// that is no longer pending yields CodeStateConflict.
	RespondRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus, respondedBy uuid.UUID, at time.Time) (models.ReplacementRequest, error)
}

// InvitationStore covers the invitations table.
type InvitationStore interface {
	// InsertInvitation resolves invited_user_id from the profile directory and
	// fails with CodeUniqueViolation when a live pending invitation exists for
	// the same list and email.
	InsertInvitation(ctx context.Context, inv models.Invitation) (models.Invitation, error)
	GetInvitation(ctx context.Context, id uuid.UUID) (models.Invitation, error)
	// ReceivedInvitations returns pending invitations addressed to userID that
	// expire after now, newest first.
	ReceivedInvitations(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Invitation, error)
	SentInvitations(ctx context.Context, invitedBy uuid.UUID, listID *uuid.UUID) ([]models.Invitation, error)
	// AcceptInvitation marks the invitation accepted and creates the
	// membership atomically.
	AcceptInvitation(ctx context.Context, id, userID uuid.UUID, now time.Time) (models.Membership, error)
	DeclineInvitation(ctx context.Context, id, userID uuid.UUID, now time.Time) error
	DeleteInvitation(ctx context.Context, id uuid.UUID) error
	// ExpireInvitations marks pending invitations past their expiry as expired.
	ExpireInvitations(ctx context.Context, now time.Time) (int64, error)
}

// ProfileStore covers the profiles directory.
type ProfileStore interface {
	ProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error)
	UpsertProfile(ctx context.Context, p models.Profile) error
	SetPushToken(ctx context.Context, userID uuid.UUID, token *string) error
}

// AuditStore persists the activity log.
type AuditStore interface {
	InsertAuditEvent(ctx context.Context, e models.AuditEvent) error
	AuditEvents(ctx context.Context, listID uuid.UUID, limit int) ([]models.AuditEvent, error)
}

// Store is the complete Data Store Client.
type Store interface {
	ListStore
	MemberStore
	ItemStore
	RequestStore
	InvitationStore
	ProfileStore
	AuditStore
	ChangeFeed

	Ping(ctx context.Context) error
	Close()
}
