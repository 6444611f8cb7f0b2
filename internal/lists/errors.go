package lists

import (
	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/store"
)

var (
	// ErrNotMember is returned for lists the caller cannot see. Lists the
	// caller does not belong to are reported as missing.
	ErrNotMember = apperrors.NotFound("list_not_found", "List not found")

	ErrMemberNotFound = apperrors.NotFound("member_not_found", "Member not found")

	// ErrNotOwner is returned when a non-owner attempts an owner-only action
	ErrNotOwner = apperrors.Authorization("not_owner", "Only the list owner can do this")

	// ErrOwnerCannotLeave is returned when the owner tries to leave their own list
	ErrOwnerCannotLeave = apperrors.Authorization("owner_cannot_leave", "The owner cannot leave the list. Delete the list instead.")

	ErrCannotRemoveOwner     = apperrors.Authorization("cannot_remove_owner", "The list owner cannot be removed")
	ErrCannotChangeOwnerRole = apperrors.Authorization("cannot_change_owner_role", "The owner's role cannot be changed")

	ErrInvalidRole = apperrors.Validation("invalid_role", "Role must be editor or member")
)

// notFoundOr maps a store not-found failure to notFound and anything else to
// a transient error for op.
func notFoundOr(err error, notFound error, op string) error {
	if store.IsCode(err, store.CodeNotFound) {
		return notFound
	}
	return apperrors.Transient(op, err)
}

func invalid(code string, err error) error {
	return apperrors.Validation(code, err.Error())
}
