package items

import (
	"context"
	"testing"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	st    *memstore.Store
	lists *lists.Service
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	t.Cleanup(st.Close)
	ls := lists.NewService(st, nil)
	return &fixture{st: st, lists: ls, svc: NewService(st, ls)}
}

func (f *fixture) user(t *testing.T, name string) context.Context {
	t.Helper()
	u := identity.User{ID: uuid.New(), Email: name + "@example.com", DisplayName: name}
	require.NoError(t, f.st.UpsertProfile(context.Background(), models.Profile{ID: u.ID, Name: name, Email: u.Email}))
	return identity.WithUser(context.Background(), u)
}

func (f *fixture) list(t *testing.T, ctx context.Context) models.List {
	t.Helper()
	l, err := f.lists.CreateList(ctx, lists.NewList{Name: "Groceries", Category: "groceries"})
	require.NoError(t, err)
	return l
}

func TestAddItem_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := f.user(t, "ana")
	list := f.list(t, ctx)
	blank := "   "
	zero := 0

	item, err := f.svc.AddItem(ctx, list.ID, NewItem{Name: " Milk ", Notes: &blank, Quantity: &zero})
	require.NoError(t, err)
	require.Equal(t, "Milk", item.Name)
	require.Equal(t, 1, item.Quantity)
	require.Equal(t, models.StatusNeeded, item.Status)
	require.Nil(t, item.Notes)
	require.Nil(t, item.StoreName)
	require.Equal(t, "ana", item.CreatedByName)

	_, err = f.svc.AddItem(ctx, list.ID, NewItem{Name: "  "})
	require.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestAddItem_NonMember(t *testing.T) {
	f := newFixture(t)
	list := f.list(t, f.user(t, "ana"))

	_, err := f.svc.AddItem(f.user(t, "eve"), list.ID, NewItem{Name: "Milk"})
	require.ErrorIs(t, err, lists.ErrNotMember)

	_, err = f.svc.AddItem(context.Background(), list.ID, NewItem{Name: "Milk"})
	require.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestListItems_NewestFirstWithNames(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := memstore.New(memstore.WithClock(func() time.Time { return clock }))
	ls := lists.NewService(st, nil)
	f := &fixture{st: st, lists: ls, svc: NewService(st, ls)}

	ctx := f.user(t, "ana")
	list := f.list(t, ctx)
	for _, name := range []string{"Milk", "Eggs", "Bread"} {
		_, err := f.svc.AddItem(ctx, list.ID, NewItem{Name: name})
		require.NoError(t, err)
	}
	// an item whose creator has no profile
	_, err := st.InsertItem(context.Background(), models.Item{ListID: list.ID, Name: "Jam", CreatedBy: uuid.New()})
	require.NoError(t, err)

	items, err := f.svc.ListItems(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, items, 4)
	require.Equal(t, "Jam", items[0].Name)
	require.Equal(t, models.UnknownName, items[0].CreatedByName)
	require.Equal(t, "Bread", items[1].Name)
	require.Equal(t, "ana", items[1].CreatedByName)
	require.Equal(t, "Milk", items[3].Name)
}

func TestUpdateItemStatus_AnyTransition(t *testing.T) {
	f := newFixture(t)
	ctx := f.user(t, "ana")
	list := f.list(t, ctx)
	item, err := f.svc.AddItem(ctx, list.ID, NewItem{Name: "Milk"})
	require.NoError(t, err)

	for _, status := range []models.ItemStatus{models.StatusBought, models.StatusNeeded, models.StatusOutOfStock, models.StatusInCart, models.StatusNeeded} {
		updated, err := f.svc.UpdateItemStatus(ctx, item.ID, status)
		require.NoError(t, err)
		require.Equal(t, status, updated.Status)
		require.NotNil(t, updated.UpdatedBy)
		require.False(t, updated.UpdatedAt.Before(item.UpdatedAt))
	}

	_, err = f.svc.UpdateItemStatus(ctx, item.ID, "lost")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateItemStatus(ctx, uuid.New(), models.StatusBought)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestUpdateItem_Fields(t *testing.T) {
	f := newFixture(t)
	ctx := f.user(t, "ana")
	list := f.list(t, ctx)
	note := "organic"
	item, err := f.svc.AddItem(ctx, list.ID, NewItem{Name: "Milk", Notes: &note})
	require.NoError(t, err)

	name, qty, blank, shop := " Oat Milk ", 2, " ", "Corner shop"
	updated, err := f.svc.UpdateItem(ctx, item.ID, models.ItemPatch{Name: &name, Quantity: &qty, Notes: &blank, StoreName: &shop})
	require.NoError(t, err)
	require.Equal(t, "Oat Milk", updated.Name)
	require.Equal(t, 2, updated.Quantity)
	require.Nil(t, updated.Notes)
	require.Equal(t, "Corner shop", *updated.StoreName)

	bad := 0
	_, err = f.svc.UpdateItem(ctx, item.ID, models.ItemPatch{Quantity: &bad})
	require.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestDeleteItem(t *testing.T) {
	f := newFixture(t)
	ctx := f.user(t, "ana")
	list := f.list(t, ctx)
	item, err := f.svc.AddItem(ctx, list.ID, NewItem{Name: "Milk"})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteItem(f.user(t, "eve"), item.ID), ErrItemNotFound)
	require.NoError(t, f.svc.DeleteItem(ctx, item.ID))
	require.ErrorIs(t, f.svc.DeleteItem(ctx, item.ID), ErrItemNotFound)

	items, err := f.svc.ListItems(ctx, list.ID)
	require.NoError(t, err)
	require.Empty(t, items)
}
