// Package livesync keeps local views of list data in step with the store:
// each view subscribes to the change feed for its scope, applies optimistic
// local mutations and reconciles by refetching the authoritative rows.
package livesync

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

// ErrRegistryClosed is returned by Acquire after Close.
var ErrRegistryClosed = errors.New("subscription registry closed")

// Key identifies a subscription slot. At most one live subscription exists
// per key.
type Key struct {
	Table store.Table
	Scope string
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s", k.Table, k.Scope)
}

// Registry owns change-feed subscriptions keyed by table and scope.
type Registry struct {
	feed store.ChangeFeed

	mu     sync.Mutex
	leases map[Key]*Lease
	closed bool
}

// Lease is one live subscription. Release is idempotent.
type Lease struct {
	registry    *Registry
	key         Key
	channel     string
	subID       store.SubscriptionID
	onDisplaced func()
	once        sync.Once
}

// AcquireOption configures a lease.
type AcquireOption func(*Lease)

// OnDisplaced registers fn to run when a later Acquire for the same key takes
// the lease over. fn runs after the lease is released, without registry locks.
func OnDisplaced(fn func()) AcquireOption {
	return func(l *Lease) { l.onDisplaced = fn }
}

func NewRegistry(feed store.ChangeFeed) *Registry {
	return &Registry{feed: feed, leases: make(map[Key]*Lease)}
}

// Acquire subscribes handler to key's table. A lease already held for the
// same key is released first and its holder told through OnDisplaced.
func (r *Registry) Acquire(key Key, filter store.Filter, handler func(store.Change), opts ...AcquireOption) (*Lease, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	previous := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	previous.displace()

	subID, err := r.feed.Subscribe(key.Table, filter, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	lease := &Lease{
		registry: r,
		key:      key,
		channel:  key.String() + "-" + ulid.Make().String(),
		subID:    subID,
	}
	for _, opt := range opts {
		opt(lease)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.feed.Unsubscribe(subID)
		return nil, ErrRegistryClosed
	}
	displaced := r.leases[key]
	r.leases[key] = lease
	r.mu.Unlock()

	// a concurrent Acquire for the same key may have won the slot in between
	displaced.displace()

	log.Debug().Str("channel", lease.channel).Msg("Subscription acquired")
	return lease, nil
}

// Len returns the number of live leases.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leases)
}

// Close releases every lease and rejects further Acquire calls.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	leases := make([]*Lease, 0, len(r.leases))
	for _, l := range r.leases {
		leases = append(leases, l)
	}
	r.mu.Unlock()

	for _, l := range leases {
		l.Release()
	}
}

func (l *Lease) Key() Key {
	return l.key
}

// Channel is the unique name of this subscription.
func (l *Lease) Channel() string {
	return l.channel
}

// displace releases a lease taken over by another Acquire.
func (l *Lease) displace() {
	if l == nil {
		return
	}
	l.Release()
	if l.onDisplaced != nil {
		l.onDisplaced()
	}
}

func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		r := l.registry
		r.mu.Lock()
		if r.leases[l.key] == l {
			delete(r.leases, l.key)
		}
		r.mu.Unlock()

		r.feed.Unsubscribe(l.subID)
		log.Debug().Str("channel", l.channel).Msg("Subscription released")
	})
}
