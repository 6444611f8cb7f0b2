package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestExpoClient_Success(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"status":"ok","id":"ticket-1"}}`))
	}))
	defer srv.Close()

	c := NewExpoClient(srv.URL, 2000)
	ack, err := c.Send(context.Background(), Message{DeviceToken: "ExponentPushToken[x]", Title: "t", Body: "b"})
	require.NoError(t, err)
	require.Equal(t, Ack{Status: "ok", ID: "ticket-1"}, ack)
	require.Equal(t, "ExponentPushToken[x]", got.DeviceToken)
}

func TestExpoClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`},
		{name: "ticket error", status: http.StatusOK, body: `{"data":{"status":"error","message":"DeviceNotRegistered"}}`},
		{name: "request error", status: http.StatusOK, body: `{"errors":[{"code":"VALIDATION_ERROR","message":"bad"}]}`},
		{name: "garbage", status: http.StatusOK, body: `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewExpoClient(srv.URL, 2000).Send(context.Background(), Message{DeviceToken: "tok"})
			require.Error(t, err)
		})
	}
}

func TestExpoClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewExpoClient(srv.URL, 20).Send(context.Background(), Message{DeviceToken: "tok"})
	require.Error(t, err)
}

func TestExpoClient_EmptyToken(t *testing.T) {
	_, err := NewExpoClient("http://127.0.0.1:1", 100).Send(context.Background(), Message{})
	require.ErrorIs(t, err, ErrRejected)
}

type recordingSink struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

func (s *recordingSink) Send(_ context.Context, msg Message) (Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	if s.fail {
		return Ack{}, ErrRejected
	}
	return Ack{Status: "ok"}, nil
}

func TestNotifier_SkipsUsersWithoutToken(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	withToken, withoutToken := uuid.New(), uuid.New()
	token := "ExponentPushToken[abc]"
	require.NoError(t, st.UpsertProfile(ctx, models.Profile{ID: withToken, Name: "Ana", Email: "ana@example.com", PushToken: &token}))
	require.NoError(t, st.UpsertProfile(ctx, models.Profile{ID: withoutToken, Name: "Bo", Email: "bo@example.com"}))

	sink := &recordingSink{}
	n := NewNotifier(sink, st)
	n.ReplacementsRequested(ctx, []uuid.UUID{withToken, withoutToken, uuid.New()}, uuid.New(), uuid.New(), "Milk", 2)
	n.Wait()

	require.Len(t, sink.sent, 1)
	require.Equal(t, token, sink.sent[0].DeviceToken)
	require.Equal(t, "Item out of stock", sink.sent[0].Title)
	require.Contains(t, sink.sent[0].Body, "Milk")
}

func TestNotifier_FailuresAreSwallowed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := memstore.New()
	id := uuid.New()
	token := "tok"
	require.NoError(t, st.UpsertProfile(ctx, models.Profile{ID: id, Name: "Ana", PushToken: &token}))

	sink := &recordingSink{fail: true}
	n := NewNotifier(sink, st)
	n.InvitationReceived(ctx, id, uuid.New(), "Groceries", "Bo")
	cancel()
	n.Wait()

	require.Len(t, sink.sent, 1)
	require.Contains(t, sink.sent[0].Body, "Groceries")
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	n.InvitationReceived(context.Background(), uuid.New(), uuid.New(), "x", "y")
}
