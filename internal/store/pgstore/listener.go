package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	changeChannel   = "cartshare_changes"
	reconnectDelay  = time.Second
	dispatchBacklog = 1024
)

type notification struct {
	Table  string     `json:"table"`
	Op     string     `json:"op"`
	ID     uuid.UUID  `json:"id"`
	ListID *uuid.UUID `json:"list_id"`
	Status *string    `json:"status"`
	At     time.Time  `json:"at"`
}

func (n notification) change() store.Change {
	c := store.Change{
		Table: store.Table(n.Table),
		Op:    store.Op(n.Op),
		ID:    n.ID,
		At:    n.At,
	}
	if n.ListID != nil {
		c.ListID = *n.ListID
	}
	if n.Status != nil {
		c.Status = *n.Status
	}
	return c
}

func parseNotification(payload string) (store.Change, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return store.Change{}, fmt.Errorf("invalid change payload: %w", err)
	}
	c := n.change()
	if !c.Table.IsValid() {
		return store.Change{}, fmt.Errorf("unknown table %q", n.Table)
	}
	return c, nil
}

// listener holds one pool connection in LISTEN mode. Notifications are
// handed to a single dispatcher goroutine so slow subscribers never stall
// the connection and delivery order is preserved.
type listener struct {
	cancel context.CancelFunc
	done   chan struct{}
	events chan store.Change
}

func startListener(parent context.Context, pool *pgxpool.Pool, feed *store.Feed) (*listener, error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	l := &listener{
		cancel: cancel,
		done:   make(chan struct{}),
		events: make(chan store.Change, dispatchBacklog),
	}

	// Fail fast when the first LISTEN cannot be established.
	conn, err := pool.Acquire(parent)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(parent, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		cancel()
		return nil, fmt.Errorf("failed to listen on %s: %w", changeChannel, err)
	}

	go l.dispatch(feed)
	go l.run(ctx, pool, conn)
	return l, nil
}

func (l *listener) run(ctx context.Context, pool *pgxpool.Pool, conn *pgxpool.Conn) {
	defer close(l.events)

	for {
		err := l.receive(ctx, conn)
		conn.Release()
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("Change feed listener disconnected, reconnecting")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			conn, err = pool.Acquire(ctx)
			if err == nil {
				if _, err = conn.Exec(ctx, "LISTEN "+changeChannel); err == nil {
					break
				}
				conn.Release()
			}
			log.Warn().Err(err).Msg("Change feed listener reconnect failed")
		}
	}
}

func (l *listener) receive(ctx context.Context, conn *pgxpool.Conn) error {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		c, err := parseNotification(n.Payload)
		if err != nil {
			log.Warn().Err(err).Str("payload", n.Payload).Msg("Dropping change notification")
			continue
		}
		select {
		case l.events <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *listener) dispatch(feed *store.Feed) {
	defer close(l.done)
	for c := range l.events {
		feed.Publish(c)
	}
}

func (l *listener) stop() {
	l.cancel()
	<-l.done
}
