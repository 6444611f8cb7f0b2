package livesync

import (
	"context"

	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

// MembersView mirrors the members of one list.
type MembersView struct {
	*view[[]models.MemberView]
	listID uuid.UUID
	lists  *lists.Service
}

func NewMembersView(registry *Registry, ls *lists.Service, listID uuid.UUID) *MembersView {
	v := &MembersView{listID: listID, lists: ls}
	v.view = newView("members", registry, func(ctx context.Context) ([]models.MemberView, error) {
		return ls.ListMembers(ctx, listID)
	})
	return v
}

func (v *MembersView) Mount(ctx context.Context) error {
	return v.mount(ctx, []subscription{{
		key:    Key{Table: store.TableMembers, Scope: v.listID.String()},
		filter: store.ListScope(v.listID),
		handle: refetchAlways,
	}})
}

// Members returns the cached members in join order.
func (v *MembersView) Members() []models.MemberView {
	cached, _ := v.snapshot()
	out := make([]models.MemberView, len(cached))
	copy(out, cached)
	return out
}

func (v *MembersView) Remove(ctx context.Context, membershipID uuid.UUID) error {
	if err := v.lists.RemoveMember(ctx, membershipID); err != nil {
		return err
	}
	_ = v.Refetch(ctx)
	return nil
}

func (v *MembersView) UpdateRole(ctx context.Context, membershipID uuid.UUID, role models.Role) error {
	if err := v.lists.UpdateMemberRole(ctx, membershipID, role); err != nil {
		return err
	}
	_ = v.Refetch(ctx)
	return nil
}
