// Package memstore is an in-process implementation of store.Store. Every
// operation runs in a single critical section, which gives the same
// atomicity the PostgreSQL store gets from transactions.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
)

// Store is the in-memory Data Store Client.
type Store struct {
	mu   sync.Mutex
	feed *store.Feed

	clock func() time.Time
	last  time.Time

	lists       map[uuid.UUID]models.List
	members     map[uuid.UUID]models.Membership
	items       map[uuid.UUID]models.Item
	requests    map[uuid.UUID]models.ReplacementRequest
	invitations map[uuid.UUID]models.Invitation
	profiles    map[uuid.UUID]models.Profile
	audit       []models.AuditEvent
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for row timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func New(opts ...Option) *Store {
	s := &Store{
		feed:        store.NewFeed(),
		clock:       time.Now,
		lists:       make(map[uuid.UUID]models.List),
		members:     make(map[uuid.UUID]models.Membership),
		items:       make(map[uuid.UUID]models.Item),
		requests:    make(map[uuid.UUID]models.ReplacementRequest),
		invitations: make(map[uuid.UUID]models.Invitation),
		profiles:    make(map[uuid.UUID]models.Profile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feed exposes the change feed, mainly for tests.
func (s *Store) Feed() *store.Feed {
	return s.feed
}

func (s *Store) Subscribe(table store.Table, filter store.Filter, fn func(store.Change)) (store.SubscriptionID, error) {
	return s.feed.Subscribe(table, filter, fn)
}

func (s *Store) Unsubscribe(id store.SubscriptionID) {
	s.feed.Unsubscribe(id)
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() {
	s.feed.Close()
}

// now returns a strictly increasing timestamp so rows created in quick
// succession still have a total order. Callers must hold s.mu.
func (s *Store) now() time.Time {
	t := s.clock().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// read runs fn under the lock.
func (s *Store) read(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// write runs fn under the lock and publishes the changes it returns once the
// lock has been released.
func (s *Store) write(ctx context.Context, fn func() ([]store.Change, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	changes, err := fn()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, c := range changes {
		s.feed.Publish(c)
	}
	return nil
}

func change(table store.Table, op store.Op, id, listID uuid.UUID, status string, at time.Time) store.Change {
	return store.Change{Table: table, Op: op, ID: id, ListID: listID, Status: status, At: at}
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func newestFirst[T any](rows []T, created func(T) time.Time) {
	sort.SliceStable(rows, func(i, j int) bool {
		return created(rows[i]).After(created(rows[j]))
	})
}
