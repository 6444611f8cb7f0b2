package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aliuyar1234/cartshare/internal/app"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialFeed(t *testing.T, h *harness, c *apiClient) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/v1/feed"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads messages until one of type want arrives.
func next(t *testing.T, conn *websocket.Conn, want string) app.FeedMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg app.FeedMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return msg
		}
	}
}

func TestFeed_ScopedSubscriptionDeliversListChanges(t *testing.T) {
	h := newMemoryHarness(t)
	ana := h.signIn(t, "Ana", "ana@example.com")
	listID := createList(t, ana, "Groceries", "groceries")

	conn := dialFeed(t, h, ana)
	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "subscribe", Table: "items", ListID: listID}))

	ack := next(t, conn, "subscribed")
	require.Equal(t, "items", ack.Table)
	require.True(t, strings.HasPrefix(ack.Channel, "items-"+listID.String()+"-"), ack.Channel)

	ana.do(http.MethodPost, "/api/v1/lists/"+listID.String()+"/items", map[string]any{"name": "Milk"}, http.StatusCreated, nil)

	msg := next(t, conn, "change")
	require.Equal(t, "items", msg.Table)
	require.Equal(t, "INSERT", msg.Op)
	require.Equal(t, listID, msg.ListID)
	require.Equal(t, "needed", msg.Status)
}

func TestFeed_RejectsForeignListsAndUnknownTables(t *testing.T) {
	h := newMemoryHarness(t)
	ana := h.signIn(t, "Ana", "ana@example.com")
	eve := h.signIn(t, "Eve", "eve@example.com")
	listID := createList(t, ana, "Groceries", "groceries")

	conn := dialFeed(t, h, eve)

	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "subscribe", Table: "items", ListID: listID}))
	msg := next(t, conn, "error")
	require.Equal(t, "list_not_found", msg.Code)

	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "subscribe", Table: "profiles"}))
	msg = next(t, conn, "error")
	require.Equal(t, "unknown_table", msg.Code)

	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "dance", Table: "items", ListID: uuid.New()}))
	msg = next(t, conn, "error")
	require.Equal(t, "bad_request", msg.Code)
}

func TestFeed_UnscopedSubscriptionFollowsMembership(t *testing.T) {
	h := newMemoryHarness(t)
	ana := h.signIn(t, "Ana", "ana@example.com")
	bob := h.signIn(t, "Bob", "bob@example.com")
	bob.do(http.MethodGet, "/api/v1/invitations/received", nil, http.StatusOK, nil)

	private := createList(t, ana, "Private", "other")
	shared := createList(t, ana, "Shared", "groceries")

	conn := dialFeed(t, h, bob)
	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "subscribe", Table: "list_members"}))
	next(t, conn, "subscribed")
	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "subscribe", Table: "items"}))
	next(t, conn, "subscribed")

	// not Bob's list yet: nothing may arrive for it
	ana.do(http.MethodPost, "/api/v1/lists/"+private.String()+"/items", map[string]any{"name": "Secret"}, http.StatusCreated, nil)

	invitationID := invite(t, ana, shared, "bob@example.com", "")
	bob.do(http.MethodPost, "/api/v1/invitations/"+invitationID.String()+"/accept", nil, http.StatusOK, nil)

	joined := next(t, conn, "change")
	require.Equal(t, "list_members", joined.Table)
	require.Equal(t, shared, joined.ListID)

	ana.do(http.MethodPost, "/api/v1/lists/"+shared.String()+"/items", map[string]any{"name": "Bread"}, http.StatusCreated, nil)
	added := next(t, conn, "change")
	require.Equal(t, "items", added.Table)
	require.Equal(t, shared, added.ListID)

	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "unsubscribe", Table: "items"}))
	next(t, conn, "unsubscribed")
}

func TestFeed_ScopedSubscriptionRevokedWhenMemberLeaves(t *testing.T) {
	h := newMemoryHarness(t)
	ana := h.signIn(t, "Ana", "ana@example.com")
	bob := h.signIn(t, "Bob", "bob@example.com")
	bob.do(http.MethodGet, "/api/v1/invitations/received", nil, http.StatusOK, nil)

	shared := createList(t, ana, "Shared", "groceries")
	invitationID := invite(t, ana, shared, "bob@example.com", "")
	bob.do(http.MethodPost, "/api/v1/invitations/"+invitationID.String()+"/accept", nil, http.StatusOK, nil)

	conn := dialFeed(t, h, bob)
	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "subscribe", Table: "items", ListID: shared}))
	next(t, conn, "subscribed")

	ana.do(http.MethodPost, "/api/v1/lists/"+shared.String()+"/items", map[string]any{"name": "Milk"}, http.StatusCreated, nil)
	require.Equal(t, shared, next(t, conn, "change").ListID)

	bob.do(http.MethodPost, "/api/v1/lists/"+shared.String()+"/leave", nil, http.StatusOK, nil)
	revoked := next(t, conn, "revoked")
	require.Equal(t, "items", revoked.Table)
	require.Equal(t, shared, revoked.ListID)

	ana.do(http.MethodPost, "/api/v1/lists/"+shared.String()+"/items", map[string]any{"name": "Bread"}, http.StatusCreated, nil)

	// resubscribing is refused, and nothing about the list arrives meanwhile
	require.NoError(t, conn.WriteJSON(app.FeedRequest{Action: "subscribe", Table: "items", ListID: shared}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg app.FeedMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.NotEqual(t, "change", msg.Type, "change delivered after leaving: %+v", msg)
		if msg.Type == "error" {
			require.Equal(t, "list_not_found", msg.Code)
			break
		}
	}
}
