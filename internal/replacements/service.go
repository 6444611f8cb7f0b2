// Package replacements implements the out-of-stock negotiation: a shopper
// marks an item out of stock with suggested substitutes, and another member
// accepts or rejects each suggestion.
package replacements

import (
	"context"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/items"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/push"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/aliuyar1234/cartshare/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRequestNotFound = apperrors.NotFound("request_not_found", "Replacement request not found")

	// ErrAlreadyResolved is returned when responding to a request that is no
	// longer pending
	ErrAlreadyResolved = apperrors.Conflict("request_already_resolved", "This request has already been answered")

	ErrNoSuggestions   = apperrors.Validation("suggestions_required", "Enter at least one replacement suggestion")
	ErrInvalidResponse = apperrors.Validation("invalid_response", "Response must be accepted or rejected")
)

// Service runs the replacement request workflow.
type Service struct {
	store    store.Store
	lists    *lists.Service
	items    *items.Service
	notifier *push.Notifier
	now      func() time.Time
}

func NewService(st store.Store, ls *lists.Service, is *items.Service, notifier *push.Notifier) *Service {
	return &Service{store: st, lists: ls, items: is, notifier: notifier, now: time.Now}
}

// OutOfStock describes how an item was marked out of stock.
type OutOfStock struct {
	ShoppingMode bool     `json:"shopping_mode"`
	Suggestions  []string `json:"suggestions"`
}

// Outcome reports what MarkOutOfStock did.
type Outcome struct {
	Item            models.Item                 `json:"item"`
	Negotiated      bool                        `json:"negotiated"`
	RequestsCreated int                         `json:"requests_created"`
	Requests        []models.ReplacementRequest `json:"requests"`
}

// Response answers a pending request. On acceptance a non-blank NewItemName
// adds a fresh item to the list.
type Response struct {
	Status      models.RequestStatus `json:"status"`
	NewItemName string               `json:"new_item_name"`
}

// MarkOutOfStock sets the item out of stock. In shopping mode on a shared
// list with suggestions, one pending request per suggestion is created after
// the status update and the other members are notified.
func (s *Service) MarkOutOfStock(ctx context.Context, itemID uuid.UUID, in OutOfStock) (Outcome, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return Outcome{}, err
	}
	item, err := s.items.RequireItem(ctx, itemID, user.ID)
	if err != nil {
		return Outcome{}, err
	}

	negotiate := in.ShoppingMode && len(in.Suggestions) > 0
	var members []models.Membership
	if negotiate {
		members, err = s.store.MembersByList(ctx, item.ListID)
		if err != nil {
			return Outcome{}, apperrors.Transient("load members", err)
		}
		negotiate = len(members) > 1
	}

	var suggestions []string
	if negotiate {
		suggestions = validation.NonBlank(in.Suggestions)
		if len(suggestions) == 0 {
			return Outcome{}, ErrNoSuggestions
		}
	}

	updated, err := s.items.UpdateItemStatus(ctx, itemID, models.StatusOutOfStock)
	if err != nil {
		return Outcome{}, err
	}
	if !negotiate {
		return Outcome{Item: updated, Requests: []models.ReplacementRequest{}}, nil
	}

	created, err := s.insertRequests(ctx, updated, suggestions, user.ID)
	if err != nil {
		return Outcome{}, err
	}

	recipients := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if m.UserID != user.ID {
			recipients = append(recipients, m.UserID)
		}
	}
	s.notifier.ReplacementsRequested(ctx, recipients, updated.ListID, updated.ID, updated.Name, len(created))

	return Outcome{
		Item:            updated,
		Negotiated:      true,
		RequestsCreated: len(created),
		Requests:        created,
	}, nil
}

// CreateRequests stores one pending request per non-blank suggestion without
// touching the item.
func (s *Service) CreateRequests(ctx context.Context, itemID uuid.UUID, suggestions []string) ([]models.ReplacementRequest, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	suggestions = validation.NonBlank(suggestions)
	if len(suggestions) == 0 {
		return nil, ErrNoSuggestions
	}
	item, err := s.items.RequireItem(ctx, itemID, user.ID)
	if err != nil {
		return nil, err
	}
	return s.insertRequests(ctx, item, suggestions, user.ID)
}

// insertRequests writes the batch with a snapshot of the item name.
func (s *Service) insertRequests(ctx context.Context, item models.Item, suggestions []string, requestedBy uuid.UUID) ([]models.ReplacementRequest, error) {
	rows := make([]models.ReplacementRequest, 0, len(suggestions))
	for _, suggestion := range suggestions {
		rows = append(rows, models.ReplacementRequest{
			ItemID:               item.ID,
			OriginalItemName:     item.Name,
			SuggestedReplacement: suggestion,
			RequestedBy:          requestedBy,
		})
	}
	created, err := s.store.InsertRequests(ctx, rows)
	if err != nil {
		if store.IsCode(err, store.CodeForeignKey) {
			return nil, items.ErrItemNotFound
		}
		return nil, apperrors.Transient("create replacement requests", err)
	}
	log.Debug().
		Str("item_id", item.ID.String()).
		Int("count", len(created)).
		Msg("Replacement requests created")
	return created, nil
}

// PendingRequests returns pending requests on the caller's lists, newest
// first. A non-nil listID narrows the result to that list.
func (s *Service) PendingRequests(ctx context.Context, listID *uuid.UUID) ([]models.ReplacementRequest, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	memberships, err := s.store.MembershipsByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Transient("load replacement requests", err)
	}
	listIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		if listID == nil || m.ListID == *listID {
			listIDs = append(listIDs, m.ListID)
		}
	}
	if listID != nil && len(listIDs) == 0 {
		return nil, lists.ErrNotMember
	}
	if len(listIDs) == 0 {
		return []models.ReplacementRequest{}, nil
	}

	reqs, err := s.store.PendingRequests(ctx, listIDs)
	if err != nil {
		return nil, apperrors.Transient("load replacement requests", err)
	}
	if len(reqs) == 0 {
		return []models.ReplacementRequest{}, nil
	}
	if err := s.enrich(ctx, reqs); err != nil {
		return nil, apperrors.Transient("load replacement requests", err)
	}
	return reqs, nil
}

// enrich fills item, list and requester names with batch lookups.
func (s *Service) enrich(ctx context.Context, reqs []models.ReplacementRequest) error {
	itemIDs := make([]uuid.UUID, 0, len(reqs))
	requesterIDs := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		itemIDs = append(itemIDs, r.ItemID)
		requesterIDs = append(requesterIDs, r.RequestedBy)
	}

	var (
		itemRows []models.Item
		profiles map[uuid.UUID]models.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		itemRows, err = s.store.ItemsByIDs(gctx, itemIDs)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = s.store.ProfilesByIDs(gctx, requesterIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	itemsByID := make(map[uuid.UUID]models.Item, len(itemRows))
	listIDs := make([]uuid.UUID, 0, len(itemRows))
	for _, it := range itemRows {
		itemsByID[it.ID] = it
		listIDs = append(listIDs, it.ListID)
	}
	listRows, err := s.store.ListsByIDs(ctx, listIDs)
	if err != nil {
		return err
	}
	listNames := make(map[uuid.UUID]string, len(listRows))
	for _, l := range listRows {
		listNames[l.ID] = l.Name
	}

	for i := range reqs {
		r := &reqs[i]
		r.ItemName = r.OriginalItemName
		if it, ok := itemsByID[r.ItemID]; ok {
			r.ItemName = it.Name
			r.ListID = it.ListID
			r.ListName = listNames[it.ListID]
		}
		r.RequesterName = models.DisplayName(profiles, r.RequestedBy)
	}
	return nil
}

// Respond moves a pending request to accepted or rejected. The original item
// is never modified. Adding the replacement item is best effort: a failure
// is logged and the response still succeeds.
func (s *Service) Respond(ctx context.Context, requestID uuid.UUID, in Response) (models.ReplacementRequest, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return models.ReplacementRequest{}, err
	}
	if !in.Status.IsTerminal() {
		return models.ReplacementRequest{}, ErrInvalidResponse
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if store.IsCode(err, store.CodeNotFound) {
			return models.ReplacementRequest{}, ErrRequestNotFound
		}
		return models.ReplacementRequest{}, apperrors.Transient("load replacement request", err)
	}
	item, err := s.items.RequireItem(ctx, req.ItemID, user.ID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return models.ReplacementRequest{}, ErrRequestNotFound
		}
		return models.ReplacementRequest{}, err
	}
	if req.Status != models.RequestPending {
		return models.ReplacementRequest{}, ErrAlreadyResolved
	}

	updated, err := s.store.RespondRequest(ctx, requestID, in.Status, user.ID, s.now())
	if err != nil {
		switch {
		case store.IsCode(err, store.CodeStateConflict):
			return models.ReplacementRequest{}, ErrAlreadyResolved
		case store.IsCode(err, store.CodeNotFound):
			return models.ReplacementRequest{}, ErrRequestNotFound
		}
		return models.ReplacementRequest{}, apperrors.Transient("respond to replacement request", err)
	}

	if in.Status == models.RequestAccepted {
		if name, err := validation.NormalizeName(in.NewItemName); err == nil {
			if _, err := s.items.InsertForUser(ctx, item.ListID, name, user); err != nil {
				log.Warn().
					Err(err).
					Str("request_id", requestID.String()).
					Str("list_id", item.ListID.String()).
					Msg("Failed to add replacement item")
			}
		}
	}

	updated.ItemName = item.Name
	updated.ListID = item.ListID
	return updated, nil
}
