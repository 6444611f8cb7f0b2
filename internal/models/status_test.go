package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func item(name string, status ItemStatus, created time.Time) Item {
	return Item{ID: uuid.New(), Name: name, Status: status, CreatedAt: created}
}

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestSortItems_InactiveLastStable(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	input := []Item{
		item("eggs", StatusBought, base.Add(1*time.Minute)),
		item("milk", StatusNeeded, base.Add(2*time.Minute)),
		item("bread", StatusOutOfStock, base.Add(3*time.Minute)),
		item("jam", StatusInCart, base.Add(4*time.Minute)),
		item("tea", StatusBought, base.Add(5*time.Minute)),
	}

	sorted := SortItems(input)
	require.Equal(t, []string{"milk", "jam", "eggs", "bread", "tea"}, names(sorted))

	// input untouched
	require.Equal(t, "eggs", input[0].Name)
}

func TestSortItems_CreationOrderWithinPartition(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// newest-first input, as returned by the item query
	input := []Item{
		item("c", StatusNeeded, base.Add(3*time.Minute)),
		item("b", StatusOutOfStock, base.Add(2*time.Minute)),
		item("a", StatusNeeded, base.Add(1*time.Minute)),
		item("z", StatusBought, base),
	}

	sorted := SortItems(input)
	require.Equal(t, []string{"a", "c", "z", "b"}, names(sorted))
}

func TestSortItems_EqualTimestampsKeepInputOrder(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	input := []Item{
		item("x", StatusOutOfStock, ts),
		item("y", StatusBought, ts),
		item("p", StatusNeeded, ts),
		item("q", StatusInCart, ts),
	}

	require.Equal(t, []string{"p", "q", "x", "y"}, names(SortItems(input)))
}

func TestSortItems_Empty(t *testing.T) {
	require.Empty(t, SortItems(nil))
}

func TestItemStatus_Helpers(t *testing.T) {
	require.True(t, StatusBought.IsInactive())
	require.True(t, StatusOutOfStock.IsInactive())
	require.False(t, StatusInCart.IsInactive())
	require.False(t, ItemStatus("lost").IsValid())
	require.Equal(t, "Out of Stock", StatusOutOfStock.Label())
	require.Equal(t, "Need", StatusNeeded.Label())
}

func TestRole_Helpers(t *testing.T) {
	require.False(t, RoleOwner.IsAssignable())
	require.True(t, RoleEditor.IsAssignable())
	require.True(t, RoleEditor.CanInvite())
	require.False(t, RoleMember.CanInvite())
	require.False(t, Role("admin").IsValid())
}

func TestDisplayName_Fallback(t *testing.T) {
	id := uuid.New()
	profiles := map[uuid.UUID]Profile{id: {ID: id, Name: "Ana"}}
	require.Equal(t, "Ana", DisplayName(profiles, id))
	require.Equal(t, UnknownName, DisplayName(profiles, uuid.New()))
}
