package store

import (
	"errors"
	"sync"
	"time"

	"github.com/aliuyar1234/cartshare/internal/metrics"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

type Table string

const (
	TableLists       Table = "lists"
	TableMembers     Table = "list_members"
	TableItems       Table = "items"
	TableRequests    Table = "replacement_requests"
	TableInvitations Table = "invitations"
	TableProfiles    Table = "profiles"
)

// Tables lists every table that publishes changes.
var Tables = []Table{TableLists, TableMembers, TableItems, TableRequests, TableInvitations, TableProfiles}

// IsValid reports whether t is a known table.
func (t Table) IsValid() bool {
	for _, known := range Tables {
		if t == known {
			return true
		}
	}
	return false
}

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change describes one row mutation. ListID is the owning list when the
// table has one; Status is the row status after the change when the table
// has a status column.
type Change struct {
	Table  Table     `json:"table"`
	Op     Op        `json:"op"`
	ID     uuid.UUID `json:"id"`
	ListID uuid.UUID `json:"list_id"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// Filter restricts a subscription to rows whose column equals Value.
// The zero Filter matches every row.
type Filter struct {
	Column string
	Value  uuid.UUID
}

const (
	ColumnListID = "list_id"
	ColumnID     = "id"
)

// ListScope is the filter used by list-scoped views.
func ListScope(listID uuid.UUID) Filter {
	return Filter{Column: ColumnListID, Value: listID}
}

func (f Filter) Matches(c Change) bool {
	switch f.Column {
	case "":
		return true
	case ColumnListID:
		return c.ListID == f.Value
	case ColumnID:
		return c.ID == f.Value
	default:
		return false
	}
}

type SubscriptionID string

// ChangeFeed delivers row changes to subscribers.
type ChangeFeed interface {
	Subscribe(table Table, filter Filter, fn func(Change)) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID)
}

var (
	ErrFeedClosed    = errors.New("change feed closed")
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unsupported filter column")
	ErrNilSubscriber = errors.New("subscriber callback is nil")
)

type subscription struct {
	table  Table
	filter Filter
	fn     func(Change)
}

// Feed is an in-process subscriber registry shared by the store
// implementations. Callbacks run on the publishing goroutine and are never
// invoked while the feed lock is held.
type Feed struct {
	mu     sync.RWMutex
	subs   map[SubscriptionID]subscription
	closed bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[SubscriptionID]subscription)}
}

func (f *Feed) Subscribe(table Table, filter Filter, fn func(Change)) (SubscriptionID, error) {
	if !table.IsValid() {
		return "", ErrUnknownTable
	}
	switch filter.Column {
	case "", ColumnListID, ColumnID:
	default:
		return "", ErrUnknownColumn
	}
	if fn == nil {
		return "", ErrNilSubscriber
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", ErrFeedClosed
	}

	id := SubscriptionID(ulid.Make().String())
	f.subs[id] = subscription{table: table, filter: filter, fn: fn}
	return id, nil
}

func (f *Feed) Unsubscribe(id SubscriptionID) {
	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
}

// Publish delivers c to every matching subscriber.
func (f *Feed) Publish(c Change) {
	metrics.FeedEvents.WithLabelValues(string(c.Table), string(c.Op)).Inc()

	f.mu.RLock()
	targets := make([]func(Change), 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.table == c.Table && sub.filter.Matches(c) {
			targets = append(targets, sub.fn)
		}
	}
	f.mu.RUnlock()

	for _, fn := range targets {
		deliver(fn, c)
	}
}

// Len returns the number of live subscriptions.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Close drops all subscriptions and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.subs = make(map[SubscriptionID]subscription)
	f.mu.Unlock()
}

func deliver(fn func(Change), c Change) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("table", string(c.Table)).
				Str("op", string(c.Op)).
				Msg("Change subscriber panicked")
		}
	}()
	fn(c)
}
