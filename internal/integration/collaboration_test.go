package integration

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestE2E_Members_OwnerGuardrails_Activity(t *testing.T) {
	h := newMemoryHarness(t)

	ana := h.signIn(t, "Ana", "ana@example.com")
	bob := h.signIn(t, "Bob", "bob@example.com")
	cai := h.signIn(t, "Cai", "cai@example.com")

	// register the invitees up front so invitations resolve immediately
	bob.do(http.MethodGet, "/api/v1/invitations/received", nil, http.StatusOK, nil)
	cai.do(http.MethodGet, "/api/v1/invitations/received", nil, http.StatusOK, nil)

	listID := createList(t, ana, "Weekend", "other")
	bobInvite := invite(t, ana, listID, "bob@example.com", "")
	bob.do(http.MethodPost, "/api/v1/invitations/"+bobInvite.String()+"/accept", nil, http.StatusOK, nil)

	members := listMembers(t, ana, listID)
	require.Len(t, members, 2)
	require.Equal(t, ana.user.ID, members[0].UserID)
	require.Equal(t, models.RoleOwner, members[0].Role)
	require.True(t, members[0].IsCurrentUser)
	require.NotNil(t, members[0].Email)
	require.Nil(t, members[1].Email, "other members' emails are hidden")
	ownerRow, bobRow := members[0].ID, members[1].ID

	// members cannot invite, editors can
	env := bob.expectError(http.MethodPost, "/api/v1/lists/"+listID.String()+"/invitations", map[string]any{"email": "cai@example.com"}, http.StatusForbidden)
	require.Equal(t, "cannot_invite", env.Error.Code)

	env = bob.expectError(http.MethodPut, "/api/v1/lists/"+listID.String()+"/members/"+bobRow.String(), map[string]any{"role": "editor"}, http.StatusForbidden)
	require.Equal(t, "not_owner", env.Error.Code)

	ana.do(http.MethodPut, "/api/v1/lists/"+listID.String()+"/members/"+bobRow.String(), map[string]any{"role": "editor"}, http.StatusOK, nil)
	caiInvite := invite(t, bob, listID, "cai@example.com", "member")

	env = ana.expectError(http.MethodPut, "/api/v1/lists/"+listID.String()+"/members/"+bobRow.String(), map[string]any{"role": "owner"}, http.StatusBadRequest)
	require.Equal(t, "invalid_role", env.Error.Code)
	env = ana.expectError(http.MethodPut, "/api/v1/lists/"+listID.String()+"/members/"+ownerRow.String(), map[string]any{"role": "member"}, http.StatusForbidden)
	require.Equal(t, "cannot_change_owner_role", env.Error.Code)
	env = ana.expectError(http.MethodDelete, "/api/v1/lists/"+listID.String()+"/members/"+ownerRow.String(), nil, http.StatusForbidden)
	require.Equal(t, "cannot_remove_owner", env.Error.Code)
	env = ana.expectError(http.MethodPost, "/api/v1/lists/"+listID.String()+"/leave", nil, http.StatusForbidden)
	require.Equal(t, "owner_cannot_leave", env.Error.Code)

	// only the sender may cancel
	env = ana.expectError(http.MethodDelete, "/api/v1/invitations/"+caiInvite.String(), nil, http.StatusForbidden)
	require.Equal(t, "not_sender", env.Error.Code)

	var sent struct {
		Invitations []models.Invitation `json:"invitations"`
	}
	bob.do(http.MethodGet, "/api/v1/invitations/sent?list_id="+listID.String(), nil, http.StatusOK, &sent)
	require.Len(t, sent.Invitations, 1)
	require.Equal(t, "Cai", sent.Invitations[0].InvitedUserName)

	cai.do(http.MethodPost, "/api/v1/invitations/"+caiInvite.String()+"/decline", nil, http.StatusOK, nil)
	// cancelling is a hard delete whatever the state
	bob.do(http.MethodDelete, "/api/v1/invitations/"+caiInvite.String(), nil, http.StatusOK, nil)
	bob.do(http.MethodGet, "/api/v1/invitations/sent?list_id="+listID.String(), nil, http.StatusOK, &sent)
	require.Empty(t, sent.Invitations)

	bob.do(http.MethodPost, "/api/v1/lists/"+listID.String()+"/leave", nil, http.StatusOK, nil)
	require.Len(t, listMembers(t, ana, listID), 1)
	bob.expectError(http.MethodGet, "/api/v1/lists/"+listID.String(), nil, http.StatusNotFound)

	actions := make(map[string]bool)
	for _, ev := range listActivity(t, ana, listID, 50) {
		actions[ev.Action] = true
	}
	for _, want := range []string{
		"list.created",
		"invitation.sent",
		"invitation.accepted",
		"invitation.declined",
		"list.member_role_updated",
		"list.member_left",
		"invitation.cancelled",
	} {
		require.True(t, actions[want], "missing %s activity event", want)
	}

	env = cai.expectError(http.MethodGet, "/api/v1/lists/"+listID.String()+"/activity", nil, http.StatusNotFound)
	require.Equal(t, "list_not_found", env.Error.Code)

	ana.do(http.MethodDelete, "/api/v1/lists/"+listID.String(), nil, http.StatusOK, nil)
	ana.expectError(http.MethodGet, "/api/v1/lists/"+listID.String(), nil, http.StatusNotFound)
}

func TestE2E_ItemEditing(t *testing.T) {
	h := newMemoryHarness(t)
	ana := h.signIn(t, "Ana", "ana@example.com")
	listID := createList(t, ana, "Pharmacy", "pharmacy")

	var added struct {
		Item models.Item `json:"item"`
	}
	ana.do(http.MethodPost, "/api/v1/lists/"+listID.String()+"/items", map[string]any{
		"name":       " Aspirin ",
		"quantity":   "lots",
		"notes":      "  ",
		"store_name": "Corner shop",
	}, http.StatusCreated, &added)
	require.Equal(t, "Aspirin", added.Item.Name)
	require.Equal(t, 1, added.Item.Quantity)
	require.Nil(t, added.Item.Notes)
	require.Equal(t, "Corner shop", *added.Item.StoreName)
	itemPath := "/api/v1/items/" + added.Item.ID.String()

	var updated struct {
		Item models.Item `json:"item"`
	}
	ana.do(http.MethodPatch, itemPath, map[string]any{"quantity": 3, "notes": "500mg"}, http.StatusOK, &updated)
	require.Equal(t, 3, updated.Item.Quantity)
	require.Equal(t, "500mg", *updated.Item.Notes)
	require.Equal(t, "Aspirin", updated.Item.Name)

	ana.expectError(http.MethodPatch, itemPath, map[string]any{"quantity": 0}, http.StatusBadRequest)

	ana.do(http.MethodPut, itemPath+"/status", map[string]any{"status": "in_cart"}, http.StatusOK, &updated)
	require.Equal(t, models.StatusInCart, updated.Item.Status)
	ana.do(http.MethodPut, itemPath+"/status", map[string]any{"status": "needed"}, http.StatusOK, &updated)
	require.Equal(t, models.StatusNeeded, updated.Item.Status)

	env := ana.expectError(http.MethodPut, itemPath+"/status", map[string]any{"status": "lost"}, http.StatusBadRequest)
	require.Equal(t, "invalid_status", env.Error.Code)

	// a single-member list never negotiates, even in shopping mode
	var outcome struct {
		Negotiated bool `json:"negotiated"`
	}
	ana.do(http.MethodPost, itemPath+"/out-of-stock", map[string]any{
		"shopping_mode": true,
		"suggestions":   []string{"Ibuprofen"},
	}, http.StatusOK, &outcome)
	require.False(t, outcome.Negotiated)

	ana.do(http.MethodDelete, itemPath, nil, http.StatusOK, nil)
	ana.expectError(http.MethodDelete, itemPath, nil, http.StatusNotFound)
	ana.expectError(http.MethodPatch, "/api/v1/items/"+uuid.NewString(), map[string]any{"name": "x"}, http.StatusNotFound)
}

func TestE2E_PushTokenRegistration(t *testing.T) {
	h := newMemoryHarness(t)
	ana := h.signIn(t, "Ana", "ana@example.com")

	var resp struct {
		Registered bool `json:"registered"`
	}
	ana.do(http.MethodPut, "/api/v1/me/push-token", map[string]any{"token": "ExponentPushToken[abc]"}, http.StatusOK, &resp)
	require.True(t, resp.Registered)
	ana.do(http.MethodPut, "/api/v1/me/push-token", map[string]any{"token": " "}, http.StatusOK, &resp)
	require.False(t, resp.Registered)
}

func createList(t *testing.T, c *apiClient, name, category string) uuid.UUID {
	t.Helper()

	var created struct {
		List models.List `json:"list"`
	}
	c.do(http.MethodPost, "/api/v1/lists", map[string]any{
		"name":     name,
		"category": category,
	}, http.StatusCreated, &created)
	return created.List.ID
}

func invite(t *testing.T, c *apiClient, listID uuid.UUID, email, role string) uuid.UUID {
	t.Helper()

	payload := map[string]any{"email": email}
	if role != "" {
		payload["role"] = role
	}
	var sent struct {
		Invitation models.Invitation `json:"invitation"`
	}
	c.do(http.MethodPost, "/api/v1/lists/"+listID.String()+"/invitations", payload, http.StatusCreated, &sent)
	return sent.Invitation.ID
}

func listMembers(t *testing.T, c *apiClient, listID uuid.UUID) []models.MemberView {
	t.Helper()

	var resp struct {
		Members []models.MemberView `json:"members"`
	}
	c.do(http.MethodGet, "/api/v1/lists/"+listID.String()+"/members", nil, http.StatusOK, &resp)
	return resp.Members
}

func listActivity(t *testing.T, c *apiClient, listID uuid.UUID, limit int) []struct {
	Action string `json:"action"`
} {
	t.Helper()

	var resp struct {
		Events []struct {
			Action string `json:"action"`
		} `json:"events"`
	}
	c.do(http.MethodGet, "/api/v1/lists/"+listID.String()+"/activity?limit="+strconv.Itoa(limit), nil, http.StatusOK, &resp)
	return resp.Events
}
