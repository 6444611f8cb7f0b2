package audit

import (
	"context"
	"testing"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWriterAndReader(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	owner, guest := uuid.New(), uuid.New()
	require.NoError(t, st.UpsertProfile(ctx, models.Profile{ID: owner, Name: "Ana", Email: "ana@example.com"}))

	listID := uuid.New()
	w := NewWriter(st)
	require.NoError(t, w.LogListCreated(ctx, listID, owner, "Groceries"))
	require.NoError(t, w.LogMemberRoleUpdated(ctx, listID, owner, guest, models.RoleMember, models.RoleEditor))
	require.NoError(t, w.LogMemberLeft(ctx, listID, guest))
	require.NoError(t, w.LogListCreated(ctx, uuid.New(), owner, "Other"))

	items, err := NewReader(st, st).ListByList(ctx, listID, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.Equal(t, EventListMemberLeft, items[0].Action)
	require.Equal(t, models.UnknownName, items[0].ActorName)
	require.NotNil(t, items[0].Meta)

	require.Equal(t, EventListMemberRoleUpdated, items[1].Action)
	require.Equal(t, "editor", items[1].Meta["new_role"])

	require.Equal(t, EventListCreated, items[2].Action)
	require.Equal(t, "Ana", items[2].ActorName)
}

func TestNilWriterDiscards(t *testing.T) {
	var w *Writer
	require.NoError(t, w.LogListCreated(context.Background(), uuid.New(), uuid.New(), "x"))
}
