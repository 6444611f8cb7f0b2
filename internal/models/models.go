package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role within a list.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleMember Role = "member"
)

// IsValid returns true if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleMember:
		return true
	default:
		return false
	}
}

// IsAssignable returns true for roles that can be granted by invite or role change.
func (r Role) IsAssignable() bool {
	return r == RoleEditor || r == RoleMember
}

// CanInvite returns true if the role may send invitations for the list.
func (r Role) CanInvite() bool {
	return r == RoleOwner || r == RoleEditor
}

// List is a named, categorized shopping list.
type List struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description *string   `json:"description"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListSummary is a list as shown on the overview screen.
type ListSummary struct {
	List
	CreatorName string `json:"creator_name"`
	ItemCount   int    `json:"item_count"`
	Role        Role   `json:"role"`
}

// Membership is the stored (list, user) relation.
type Membership struct {
	ID       uuid.UUID `json:"id"`
	ListID   uuid.UUID `json:"list_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberView is a membership enriched for display. Email is only set on the
// caller's own row.
type MemberView struct {
	Membership
	Name          string  `json:"name"`
	Email         *string `json:"email,omitempty"`
	IsCurrentUser bool    `json:"is_current_user"`
}

// Profile is the user directory entry.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PushToken *string   `json:"-"`
}

// DisplayName returns the profile name or "Unknown" when the profile is missing.
func DisplayName(profiles map[uuid.UUID]Profile, id uuid.UUID) string {
	if p, ok := profiles[id]; ok && p.Name != "" {
		return p.Name
	}
	return UnknownName
}

const UnknownName = "Unknown"

// Item is an entry on a list.
type Item struct {
	ID            uuid.UUID  `json:"id"`
	ListID        uuid.UUID  `json:"list_id"`
	Name          string     `json:"name"`
	Notes         *string    `json:"notes"`
	Quantity      int        `json:"quantity"`
	Status        ItemStatus `json:"status"`
	StoreName     *string    `json:"store_name"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	UpdatedBy     *uuid.UUID `json:"updated_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CreatedByName string     `json:"created_by_name,omitempty"`
}

// ItemPatch holds the editable item fields. Nil fields are left unchanged.
type ItemPatch struct {
	Name      *string     `json:"name,omitempty"`
	Notes     *string     `json:"notes,omitempty"`
	Quantity  *int        `json:"quantity,omitempty"`
	StoreName *string     `json:"store_name,omitempty"`
	Status    *ItemStatus `json:"status,omitempty"`
	UpdatedBy uuid.UUID   `json:"-"`
	UpdatedAt time.Time   `json:"-"`
}

// ReplacementRequest proposes a substitute for an out-of-stock item.
type ReplacementRequest struct {
	ID                   uuid.UUID     `json:"id"`
	ItemID               uuid.UUID     `json:"item_id"`
	OriginalItemName     string        `json:"original_item_name"`
	SuggestedReplacement string        `json:"suggested_replacement"`
	RequestedBy          uuid.UUID     `json:"requested_by"`
	RespondedBy          *uuid.UUID    `json:"responded_by"`
	Status               RequestStatus `json:"status"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`

	ItemName      string    `json:"item_name,omitempty"`
	ListID        uuid.UUID `json:"list_id,omitempty"`
	ListName      string    `json:"list_name,omitempty"`
	RequesterName string    `json:"requester_name,omitempty"`
}

// Invitation is a pending offer of membership addressed to an email.
type Invitation struct {
	ID            uuid.UUID        `json:"id"`
	ListID        uuid.UUID        `json:"list_id"`
	InvitedBy     uuid.UUID        `json:"invited_by"`
	InvitedEmail  string           `json:"invited_email"`
	InvitedUserID *uuid.UUID       `json:"invited_user_id"`
	Role          Role             `json:"role"`
	Status        InvitationStatus `json:"status"`
	Message       *string          `json:"message"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	RespondedAt   *time.Time       `json:"responded_at"`

	ListName        string `json:"list_name,omitempty"`
	InviterName     string `json:"inviter_name,omitempty"`
	InvitedUserName string `json:"invited_user_name,omitempty"`
}

// IsExpired reports whether the invitation is past its expiry at now.
func (i Invitation) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// AuditEvent is one entry of a list's activity log.
type AuditEvent struct {
	ID          uuid.UUID      `json:"id"`
	ListID      *uuid.UUID     `json:"list_id"`
	ActorUserID *uuid.UUID     `json:"actor_user_id"`
	Action      string         `json:"action"`
	Meta        map[string]any `json:"meta"`
	CreatedAt   time.Time      `json:"created_at"`
}
