package replacements

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/items"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/push"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/aliuyar1234/cartshare/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu   sync.Mutex
	sent []push.Message
}

func (c *captureSink) Send(_ context.Context, msg push.Message) (push.Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return push.Ack{Status: "ok"}, nil
}

// failingRequests makes batch inserts fail while leaving the rest of the
// store intact.
type failingRequests struct {
	*memstore.Store
}

func (failingRequests) InsertRequests(context.Context, []models.ReplacementRequest) ([]models.ReplacementRequest, error) {
	return nil, errors.New("connection reset")
}

type fixture struct {
	st       store.Store
	mem      *memstore.Store
	lists    *lists.Service
	items    *items.Service
	notifier *push.Notifier
	sink     *captureSink
	svc      *Service
}

func newFixture(t *testing.T, wrap func(*memstore.Store) store.Store) *fixture {
	t.Helper()
	mem := memstore.New()
	t.Cleanup(mem.Close)
	var st store.Store = mem
	if wrap != nil {
		st = wrap(mem)
	}
	sink := &captureSink{}
	notifier := push.NewNotifier(sink, st)
	ls := lists.NewService(st, nil)
	is := items.NewService(st, ls)
	return &fixture{
		st: st, mem: mem, lists: ls, items: is, notifier: notifier, sink: sink,
		svc: NewService(st, ls, is, notifier),
	}
}

func (f *fixture) user(t *testing.T, name string) (context.Context, identity.User) {
	t.Helper()
	u := identity.User{ID: uuid.New(), Email: name + "@example.com", DisplayName: name}
	token := "ExponentPushToken[" + name + "]"
	require.NoError(t, f.mem.UpsertProfile(context.Background(), models.Profile{ID: u.ID, Name: name, Email: u.Email, PushToken: &token}))
	return identity.WithUser(context.Background(), u), u
}

// sharedList creates a list owned by the first user with the others joined.
func (f *fixture) sharedList(t *testing.T, owner context.Context, others ...identity.User) models.List {
	t.Helper()
	list, err := f.lists.CreateList(owner, lists.NewList{Name: "Groceries", Category: "groceries"})
	require.NoError(t, err)
	for _, u := range others {
		inv, err := f.mem.InsertInvitation(context.Background(), models.Invitation{
			ListID: list.ID, InvitedBy: list.CreatedBy, InvitedEmail: u.Email,
			Role: models.RoleMember, ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		_, err = f.mem.AcceptInvitation(context.Background(), inv.ID, u.ID, time.Now())
		require.NoError(t, err)
	}
	return list
}

func (f *fixture) item(t *testing.T, ctx context.Context, listID uuid.UUID, name string) models.Item {
	t.Helper()
	it, err := f.items.AddItem(ctx, listID, items.NewItem{Name: name})
	require.NoError(t, err)
	return it
}

func (f *fixture) pending(t *testing.T, listID uuid.UUID) []models.ReplacementRequest {
	t.Helper()
	reqs, err := f.mem.PendingRequests(context.Background(), []uuid.UUID{listID})
	require.NoError(t, err)
	return reqs
}

func TestMarkOutOfStock_PlainUpdate(t *testing.T) {
	tests := []struct {
		name        string
		shopping    bool
		suggestions []string
		shared      bool
	}{
		{name: "not shopping", shopping: false, suggestions: []string{"Oat Milk"}, shared: true},
		{name: "no suggestions", shopping: true, suggestions: nil, shared: true},
		{name: "single member", shopping: true, suggestions: []string{"Oat Milk"}, shared: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			anaCtx, _ := f.user(t, "ana")
			_, bob := f.user(t, "bob")

			var list models.List
			if tt.shared {
				list = f.sharedList(t, anaCtx, bob)
			} else {
				list = f.sharedList(t, anaCtx)
			}
			milk := f.item(t, anaCtx, list.ID, "Milk")

			out, err := f.svc.MarkOutOfStock(anaCtx, milk.ID, OutOfStock{ShoppingMode: tt.shopping, Suggestions: tt.suggestions})
			require.NoError(t, err)
			require.False(t, out.Negotiated)
			require.Zero(t, out.RequestsCreated)
			require.Equal(t, models.StatusOutOfStock, out.Item.Status)
			require.Empty(t, f.pending(t, list.ID))

			f.notifier.Wait()
			require.Empty(t, f.sink.sent)
		})
	}
}

func TestMarkOutOfStock_CreatesRequestsAndNotifies(t *testing.T) {
	f := newFixture(t, nil)
	anaCtx, _ := f.user(t, "ana")
	bobCtx, bob := f.user(t, "bob")
	list := f.sharedList(t, anaCtx, bob)
	milk := f.item(t, anaCtx, list.ID, "Milk")

	out, err := f.svc.MarkOutOfStock(bobCtx, milk.ID, OutOfStock{ShoppingMode: true, Suggestions: []string{" Oat Milk ", "", "Soy Milk"}})
	require.NoError(t, err)
	require.True(t, out.Negotiated)
	require.Equal(t, 2, out.RequestsCreated)

	stored, err := f.mem.GetItem(context.Background(), milk.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOutOfStock, stored.Status)

	reqs := f.pending(t, list.ID)
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		require.Equal(t, "Milk", r.OriginalItemName)
		require.Equal(t, bob.ID, r.RequestedBy)
		require.Equal(t, models.RequestPending, r.Status)
	}

	f.notifier.Wait()
	require.Len(t, f.sink.sent, 1)
	require.Equal(t, "ExponentPushToken[ana]", f.sink.sent[0].DeviceToken)
	require.Equal(t, milk.ID.String(), f.sink.sent[0].Data["item_id"])
}

func TestMarkOutOfStock_BlankSuggestions(t *testing.T) {
	f := newFixture(t, nil)
	anaCtx, _ := f.user(t, "ana")
	_, bob := f.user(t, "bob")
	list := f.sharedList(t, anaCtx, bob)
	milk := f.item(t, anaCtx, list.ID, "Milk")

	_, err := f.svc.MarkOutOfStock(anaCtx, milk.ID, OutOfStock{ShoppingMode: true, Suggestions: []string{" ", ""}})
	require.ErrorIs(t, err, ErrNoSuggestions)

	stored, err := f.mem.GetItem(context.Background(), milk.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusNeeded, stored.Status)
}

func TestMarkOutOfStock_InsertFailureKeepsStatus(t *testing.T) {
	f := newFixture(t, func(m *memstore.Store) store.Store { return failingRequests{m} })
	anaCtx, _ := f.user(t, "ana")
	_, bob := f.user(t, "bob")
	list := f.sharedList(t, anaCtx, bob)
	milk := f.item(t, anaCtx, list.ID, "Milk")

	_, err := f.svc.MarkOutOfStock(anaCtx, milk.ID, OutOfStock{ShoppingMode: true, Suggestions: []string{"Oat Milk"}})
	require.True(t, apperrors.IsKind(err, apperrors.KindTransient))

	stored, err := f.mem.GetItem(context.Background(), milk.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOutOfStock, stored.Status)
	require.Empty(t, f.pending(t, list.ID))
}

func TestPendingRequests_ScopedAndEnriched(t *testing.T) {
	f := newFixture(t, nil)
	anaCtx, _ := f.user(t, "ana")
	bobCtx, bob := f.user(t, "bob")
	eveCtx, _ := f.user(t, "eve")
	groceries := f.sharedList(t, anaCtx, bob)
	other, err := f.lists.CreateList(anaCtx, lists.NewList{Name: "Pharmacy", Category: "pharmacy"})
	require.NoError(t, err)

	milk := f.item(t, anaCtx, groceries.ID, "Milk")
	aspirin := f.item(t, anaCtx, other.ID, "Aspirin")

	_, err = f.svc.CreateRequests(bobCtx, milk.ID, []string{"Oat Milk"})
	require.NoError(t, err)
	_, err = f.svc.CreateRequests(anaCtx, aspirin.ID, []string{"Ibuprofen"})
	require.NoError(t, err)

	// the original item is renamed after the request was made
	renamed := "Whole Milk"
	_, err = f.items.UpdateItem(anaCtx, milk.ID, models.ItemPatch{Name: &renamed})
	require.NoError(t, err)

	all, err := f.svc.PendingRequests(anaCtx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	bobs, err := f.svc.PendingRequests(bobCtx, nil)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	r := bobs[0]
	require.Equal(t, "Milk", r.OriginalItemName)
	require.Equal(t, "Whole Milk", r.ItemName)
	require.Equal(t, groceries.ID, r.ListID)
	require.Equal(t, "Groceries", r.ListName)
	require.Equal(t, "bob", r.RequesterName)

	scoped, err := f.svc.PendingRequests(anaCtx, &other.ID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "Ibuprofen", scoped[0].SuggestedReplacement)

	_, err = f.svc.PendingRequests(bobCtx, &other.ID)
	require.ErrorIs(t, err, lists.ErrNotMember)

	none, err := f.svc.PendingRequests(eveCtx, nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPendingRequests_HiddenAfterLeaving(t *testing.T) {
	f := newFixture(t, nil)
	anaCtx, _ := f.user(t, "ana")
	bobCtx, bob := f.user(t, "bob")
	list := f.sharedList(t, anaCtx, bob)
	milk := f.item(t, anaCtx, list.ID, "Milk")

	_, err := f.svc.MarkOutOfStock(bobCtx, milk.ID, OutOfStock{ShoppingMode: true, Suggestions: []string{"Oat Milk"}})
	require.NoError(t, err)

	before, err := f.svc.PendingRequests(bobCtx, nil)
	require.NoError(t, err)
	require.Len(t, before, 1)

	require.NoError(t, f.lists.LeaveList(bobCtx, list.ID))

	after, err := f.svc.PendingRequests(bobCtx, nil)
	require.NoError(t, err)
	require.Empty(t, after)
	_, err = f.svc.PendingRequests(bobCtx, &list.ID)
	require.ErrorIs(t, err, lists.ErrNotMember)

	// still pending for the members who remain
	owners, err := f.svc.PendingRequests(anaCtx, nil)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	require.Equal(t, models.RequestPending, owners[0].Status)
}

func TestRespond_AcceptAddsItemOnce(t *testing.T) {
	f := newFixture(t, nil)
	anaCtx, _ := f.user(t, "ana")
	bobCtx, bob := f.user(t, "bob")
	list := f.sharedList(t, anaCtx, bob)
	milk := f.item(t, anaCtx, list.ID, "Milk")

	out, err := f.svc.MarkOutOfStock(bobCtx, milk.ID, OutOfStock{ShoppingMode: true, Suggestions: []string{"Oat Milk"}})
	require.NoError(t, err)
	reqID := out.Requests[0].ID

	resp, err := f.svc.Respond(anaCtx, reqID, Response{Status: models.RequestAccepted, NewItemName: " Oat Milk 1L "})
	require.NoError(t, err)
	require.Equal(t, models.RequestAccepted, resp.Status)
	require.NotNil(t, resp.RespondedBy)

	_, err = f.svc.Respond(anaCtx, reqID, Response{Status: models.RequestRejected})
	require.ErrorIs(t, err, ErrAlreadyResolved)
	require.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	all, err := f.items.ListItems(anaCtx, list.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Oat Milk 1L", all[0].Name)
	require.Equal(t, models.StatusNeeded, all[0].Status)
	require.Equal(t, models.StatusOutOfStock, all[1].Status)
	require.Empty(t, f.pending(t, list.ID))
}

func TestRespond_RejectAndBlankNameAddNothing(t *testing.T) {
	f := newFixture(t, nil)
	anaCtx, _ := f.user(t, "ana")
	bobCtx, bob := f.user(t, "bob")
	list := f.sharedList(t, anaCtx, bob)
	milk := f.item(t, anaCtx, list.ID, "Milk")

	reqs, err := f.svc.CreateRequests(bobCtx, milk.ID, []string{"Oat Milk", "Soy Milk"})
	require.NoError(t, err)

	_, err = f.svc.Respond(anaCtx, reqs[0].ID, Response{Status: models.RequestRejected, NewItemName: "ignored"})
	require.NoError(t, err)
	_, err = f.svc.Respond(anaCtx, reqs[1].ID, Response{Status: models.RequestAccepted, NewItemName: "  "})
	require.NoError(t, err)

	all, err := f.items.ListItems(anaCtx, list.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRespond_Errors(t *testing.T) {
	f := newFixture(t, nil)
	anaCtx, _ := f.user(t, "ana")
	eveCtx, _ := f.user(t, "eve")
	list := f.sharedList(t, anaCtx)
	milk := f.item(t, anaCtx, list.ID, "Milk")
	reqs, err := f.svc.CreateRequests(anaCtx, milk.ID, []string{"Oat Milk"})
	require.NoError(t, err)

	_, err = f.svc.Respond(anaCtx, reqs[0].ID, Response{Status: models.RequestPending})
	require.ErrorIs(t, err, ErrInvalidResponse)

	_, err = f.svc.Respond(anaCtx, uuid.New(), Response{Status: models.RequestAccepted})
	require.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.svc.Respond(eveCtx, reqs[0].ID, Response{Status: models.RequestAccepted})
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRespond_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t, nil)
	anaCtx, _ := f.user(t, "ana")
	list := f.sharedList(t, anaCtx)
	milk := f.item(t, anaCtx, list.ID, "Milk")
	reqs, err := f.svc.CreateRequests(anaCtx, milk.ID, []string{"Oat Milk"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Respond(anaCtx, reqs[0].ID, Response{Status: models.RequestAccepted, NewItemName: "Oat Milk"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyResolved)
	}
	require.Equal(t, 1, ok)

	all, err := f.items.ListItems(anaCtx, list.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
