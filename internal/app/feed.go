package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/livesync"
	"github.com/aliuyar1234/cartshare/internal/metrics"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize int64 = 4096

	// Changes queued for one connection before it is dropped as too slow
	eventBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// FeedRequest is a message sent by the client.
type FeedRequest struct {
	Action string    `json:"action"`
	Table  string    `json:"table"`
	ListID uuid.UUID `json:"list_id"`
}

// FeedMessage is a message sent to the client.
type FeedMessage struct {
	Type    string     `json:"type"`
	Table   string     `json:"table,omitempty"`
	Op      string     `json:"op,omitempty"`
	ID      uuid.UUID  `json:"id,omitempty"`
	ListID  uuid.UUID  `json:"list_id,omitempty"`
	Status  string     `json:"status,omitempty"`
	At      *time.Time `json:"at,omitempty"`
	Channel string     `json:"channel,omitempty"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
}

// HandleFeed handles GET /api/v1/feed. Clients subscribe per table, either
// to one list they belong to or, without list_id, to every list they belong
// to.
func HandleFeed(st store.Store, ls *lists.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := identity.Require(r.Context())
		if err != nil {
			apperrors.WriteAppError(w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Msg("Websocket upgrade failed")
			return
		}

		ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
		defer cancel()

		c := newFeedClient(conn, user, st, ls)
		metrics.FeedConnections.Inc()
		defer metrics.FeedConnections.Dec()

		log.Debug().Str("user_id", user.ID.String()).Msg("Feed connected")

		go c.writePump()
		go c.dispatch(ctx)
		c.readPump(ctx)

		c.registry.Close()
		c.stop()

		log.Debug().Str("user_id", user.ID.String()).Msg("Feed disconnected")
	}
}

type queuedChange struct {
	change store.Change
	scoped bool
	key    livesync.Key
	// guard marks member deletions watched for the connection's scoped leases
	guard bool
}

type feedClient struct {
	conn     *websocket.Conn
	user     identity.User
	store    store.Store
	lists    *lists.Service
	registry *livesync.Registry

	mu     sync.Mutex
	leases map[livesync.Key]*livesync.Lease
	guard  *livesync.Lease

	events chan queuedChange
	send   chan FeedMessage
	done   chan struct{}
	once   sync.Once

	// owned by dispatch
	memberOf map[uuid.UUID]bool
}

func newFeedClient(conn *websocket.Conn, user identity.User, st store.Store, ls *lists.Service) *feedClient {
	return &feedClient{
		conn:     conn,
		user:     user,
		store:    st,
		lists:    ls,
		registry: livesync.NewRegistry(st),
		leases:   make(map[livesync.Key]*livesync.Lease),
		events:   make(chan queuedChange, eventBuffer),
		send:     make(chan FeedMessage, 64),
		done:     make(chan struct{}),
	}
}

func (c *feedClient) stop() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump handles subscribe and unsubscribe requests until the peer goes away.
func (c *feedClient) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user_id", c.user.ID.String()).Msg("Feed read failed")
			}
			return
		}

		var req FeedRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.reply(FeedMessage{Type: "error", Code: "bad_request", Message: "Invalid message"})
			continue
		}
		c.handle(ctx, req)
	}
}

func (c *feedClient) handle(ctx context.Context, req FeedRequest) {
	table := store.Table(req.Table)
	if !table.IsValid() || table == store.TableProfiles {
		c.reply(FeedMessage{Type: "error", Code: "unknown_table", Table: req.Table, Message: "Unknown table"})
		return
	}

	key := livesync.Key{Table: table, Scope: "user:" + c.user.ID.String()}
	filter := store.Filter{}
	scoped := req.ListID != uuid.Nil
	if scoped {
		key.Scope = req.ListID.String()
		filter = store.ListScope(req.ListID)
	}

	switch req.Action {
	case "subscribe":
		if scoped {
			if _, _, err := c.lists.RequireMember(ctx, req.ListID, c.user.ID); err != nil {
				c.replyError(err, req)
				return
			}
			if err := c.watchMembership(); err != nil {
				c.replyError(apperrors.Transient("subscribe", err), req)
				return
			}
		}
		// held across Acquire so dispatch cannot see a change before the lease
		c.mu.Lock()
		lease, err := c.registry.Acquire(key, filter, func(ch store.Change) {
			c.enqueue(queuedChange{change: ch, scoped: scoped, key: key})
		})
		if err == nil {
			c.leases[key] = lease
		}
		c.mu.Unlock()
		if err != nil {
			c.replyError(apperrors.Transient("subscribe", err), req)
			return
		}
		c.reply(FeedMessage{Type: "subscribed", Table: req.Table, ListID: req.ListID, Channel: lease.Channel()})

	case "unsubscribe":
		c.mu.Lock()
		lease, ok := c.leases[key]
		delete(c.leases, key)
		c.mu.Unlock()
		if ok {
			lease.Release()
		}
		c.reply(FeedMessage{Type: "unsubscribed", Table: req.Table, ListID: req.ListID})

	default:
		c.reply(FeedMessage{Type: "error", Code: "bad_request", Message: "Unknown action"})
	}
}

// watchMembership subscribes once to member deletions so scoped leases can be
// revoked when the user leaves or is removed from their list.
func (c *feedClient) watchMembership() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guard != nil {
		return nil
	}
	key := livesync.Key{Table: store.TableMembers, Scope: "guard:" + c.user.ID.String()}
	lease, err := c.registry.Acquire(key, store.Filter{}, func(ch store.Change) {
		if ch.Op == store.OpDelete {
			c.enqueue(queuedChange{change: ch, guard: true})
		}
	})
	if err != nil {
		return err
	}
	c.guard = lease
	return nil
}

// revokeIfRemoved drops the scoped leases of a list the user no longer
// belongs to and tells the client.
func (c *feedClient) revokeIfRemoved(ctx context.Context, ch store.Change) {
	scope := ch.ListID.String()

	c.mu.Lock()
	held := false
	for key := range c.leases {
		if key.Scope == scope {
			held = true
			break
		}
	}
	c.mu.Unlock()
	if !held {
		return
	}

	_, err := c.store.FindMembership(ctx, ch.ListID, c.user.ID)
	if err == nil {
		return
	}
	if !store.IsCode(err, store.CodeNotFound) {
		log.Warn().Err(err).Str("list_id", scope).Msg("Failed to check feed membership")
		return
	}

	c.mu.Lock()
	var revoked []*livesync.Lease
	for key, lease := range c.leases {
		if key.Scope == scope {
			revoked = append(revoked, lease)
			delete(c.leases, key)
		}
	}
	c.mu.Unlock()

	for _, lease := range revoked {
		lease.Release()
		c.reply(FeedMessage{Type: "revoked", Table: string(lease.Key().Table), ListID: ch.ListID})
	}
}

// holds reports whether the connection still subscribes to key. Changes
// queued before a revoke are dropped by this check.
func (c *feedClient) holds(key livesync.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.leases[key]
	return ok
}

// enqueue runs on the publishing goroutine and never blocks it. A client that
// falls behind is disconnected and has to refetch after reconnecting.
func (c *feedClient) enqueue(q queuedChange) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.events <- q:
	default:
		log.Warn().Str("user_id", c.user.ID.String()).Msg("Feed client too slow, disconnecting")
		c.stop()
	}
}

// dispatch filters queued changes and hands them to the writer.
func (c *feedClient) dispatch(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case q := <-c.events:
			if q.guard {
				c.revokeIfRemoved(ctx, q.change)
				continue
			}
			if q.scoped && !c.holds(q.key) {
				continue
			}
			if !q.scoped && !c.admit(ctx, q.change) {
				continue
			}
			ch := q.change
			c.reply(FeedMessage{
				Type:   "change",
				Table:  string(ch.Table),
				Op:     string(ch.Op),
				ID:     ch.ID,
				ListID: ch.ListID,
				Status: ch.Status,
				At:     &ch.At,
			})
		}
	}
}

// admit reports whether an unscoped change concerns one of the user's lists.
// Membership is loaded once and then tracked from list and member events.
func (c *feedClient) admit(ctx context.Context, ch store.Change) bool {
	if c.memberOf == nil {
		c.memberOf = make(map[uuid.UUID]bool)
		memberships, err := c.store.MembershipsByUser(ctx, c.user.ID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", c.user.ID.String()).Msg("Failed to load feed memberships")
		}
		for _, m := range memberships {
			c.memberOf[m.ListID] = true
		}
	}

	known := c.memberOf[ch.ListID]
	switch {
	case ch.Table == store.TableLists && ch.Op == store.OpDelete:
		delete(c.memberOf, ch.ListID)
	case ch.Table == store.TableMembers:
		_, err := c.store.FindMembership(ctx, ch.ListID, c.user.ID)
		switch {
		case err == nil:
			c.memberOf[ch.ListID] = true
		case store.IsCode(err, store.CodeNotFound):
			delete(c.memberOf, ch.ListID)
		default:
			log.Warn().Err(err).Str("list_id", ch.ListID.String()).Msg("Failed to check feed membership")
		}
	}
	return known || c.memberOf[ch.ListID]
}

func (c *feedClient) reply(msg FeedMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

func (c *feedClient) replyError(err error, req FeedRequest) {
	var appErr *apperrors.Error
	msg := FeedMessage{Type: "error", Table: req.Table, ListID: req.ListID, Code: "internal_error", Message: "Internal server error"}
	if errors.As(err, &appErr) {
		msg.Code = appErr.Code
		msg.Message = appErr.Message
	}
	c.reply(msg)
}

// writePump serialises messages and keeps the connection alive with pings.
func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.stop()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
