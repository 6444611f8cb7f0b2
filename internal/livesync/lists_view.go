package livesync

import (
	"context"

	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
)

// ListsView mirrors the caller's list overview. Any change to lists,
// memberships or items triggers a refetch.
type ListsView struct {
	*view[[]models.ListSummary]
	lists *lists.Service
}

func NewListsView(registry *Registry, ls *lists.Service) *ListsView {
	v := &ListsView{lists: ls}
	v.view = newView("lists", registry, ls.UserLists)
	return v
}

func (v *ListsView) Mount(ctx context.Context) error {
	user, err := identity.Require(ctx)
	if err != nil {
		return err
	}
	scope := "user:" + user.ID.String()
	subs := make([]subscription, 0, 3)
	for _, table := range []store.Table{store.TableLists, store.TableMembers, store.TableItems} {
		subs = append(subs, subscription{
			key:    Key{Table: table, Scope: scope},
			handle: refetchAlways,
		})
	}
	return v.mount(ctx, subs)
}

// Lists returns the cached overview filtered by query.
func (v *ListsView) Lists(query string) []models.ListSummary {
	cached, _ := v.snapshot()
	out := make([]models.ListSummary, len(cached))
	copy(out, cached)
	return lists.FilterLists(out, query)
}
