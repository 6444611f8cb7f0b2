package models

import "sort"

// ItemStatus is the lifecycle state of an item. Any transition is allowed.
type ItemStatus string

const (
	StatusNeeded     ItemStatus = "needed"
	StatusInCart     ItemStatus = "in_cart"
	StatusBought     ItemStatus = "bought"
	StatusOutOfStock ItemStatus = "out_of_stock"
)

func (s ItemStatus) IsValid() bool {
	switch s {
	case StatusNeeded, StatusInCart, StatusBought, StatusOutOfStock:
		return true
	default:
		return false
	}
}

// IsInactive reports whether items in this state sort to the bottom.
func (s ItemStatus) IsInactive() bool {
	return s == StatusBought || s == StatusOutOfStock
}

// Label returns the human readable status text.
func (s ItemStatus) Label() string {
	switch s {
	case StatusNeeded:
		return "Need"
	case StatusInCart:
		return "In Cart"
	case StatusBought:
		return "Bought"
	case StatusOutOfStock:
		return "Out of Stock"
	default:
		return string(s)
	}
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// IsTerminal reports whether the request can no longer change.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestAccepted || s == RequestRejected
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// SortItems returns items in display order: active items first, then bought
// and out-of-stock items. Within each group items are ordered by creation
// time ascending, and items with equal creation time keep their input order.
// The input slice is not modified.
func SortItems(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Status.IsInactive() != b.Status.IsInactive() {
			return !a.Status.IsInactive()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return sorted
}
