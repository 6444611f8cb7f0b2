package livesync

import (
	"context"
	"errors"
	"sync"

	"github.com/aliuyar1234/cartshare/internal/metrics"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/rs/zerolog/log"
)

// ErrNotMounted is returned by view operations that need a mounted view.
var ErrNotMounted = errors.New("view is not mounted")

// subscription describes one feed subscription a view holds while mounted.
type subscription struct {
	key    Key
	filter store.Filter
	// handle decides what a change means for the view. Returning true asks
	// for a refetch.
	handle func(store.Change) bool
}

// view is the shared state machine behind every live view: a cached value,
// mount state and fetch sequence numbers. A fetch result is applied only if
// the view is still in the same mount and no newer fetch has been applied.
type view[T any] struct {
	name     string
	registry *Registry
	load     func(ctx context.Context) (T, error)

	mu       sync.Mutex
	data     T
	loaded   bool
	mounted  bool
	ctx      context.Context
	mountGen uint64
	started  uint64
	applied  uint64
	lastErr  error
	leases   []*Lease
	onChange func()
}

func newView[T any](name string, registry *Registry, load func(ctx context.Context) (T, error)) *view[T] {
	return &view[T]{name: name, registry: registry, load: load}
}

// OnChange registers fn to run after the cached value changes. fn runs
// without the view lock held.
func (v *view[T]) OnChange(fn func()) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// mount subscribes and performs the initial fetch. ctx carries the caller's
// identity for every later refetch; its cancellation is ignored after mount.
func (v *view[T]) mount(ctx context.Context, subs []subscription) error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.mounted = true
	v.mountGen++
	v.ctx = context.WithoutCancel(ctx)
	gen := v.mountGen
	v.mu.Unlock()

	leases := make([]*Lease, 0, len(subs))
	for _, sub := range subs {
		lease, err := v.registry.Acquire(sub.key, sub.filter, func(c store.Change) {
			v.onEvent(gen, sub, c)
		}, OnDisplaced(func() { v.displaced(gen) }))
		if err != nil {
			for _, l := range leases {
				l.Release()
			}
			v.Unmount()
			return err
		}
		leases = append(leases, lease)
	}

	v.mu.Lock()
	if !v.mounted || v.mountGen != gen {
		// unmounted or displaced while subscribing
		v.mu.Unlock()
		for _, l := range leases {
			l.Release()
		}
		return ErrNotMounted
	}
	v.leases = leases
	v.mu.Unlock()

	return v.Refetch(ctx)
}

// Unmount releases the subscriptions. In-flight calls are not cancelled;
// their results are discarded.
func (v *view[T]) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	v.mountGen++
	leases := v.leases
	v.leases = nil
	v.mu.Unlock()

	for _, l := range leases {
		l.Release()
	}
}

// displaced unmounts the view when another view took over one of its
// subscription keys during mount gen.
func (v *view[T]) displaced(gen uint64) {
	v.mu.Lock()
	current := v.mounted && v.mountGen == gen
	v.mu.Unlock()
	if !current {
		return
	}
	log.Debug().Str("view", v.name).Msg("Subscription taken over, unmounting")
	v.Unmount()
}

// Mounted reports whether the view currently holds its subscriptions.
func (v *view[T]) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounted
}

// Err returns the error of the most recent failed refetch, cleared by the
// next successful one.
func (v *view[T]) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

func (v *view[T]) onEvent(gen uint64, sub subscription, c store.Change) {
	v.mu.Lock()
	current := v.mounted && v.mountGen == gen
	ctx := v.ctx
	v.mu.Unlock()
	if !current {
		return
	}
	if !sub.handle(c) {
		return
	}
	if err := v.Refetch(ctx); err != nil && !errors.Is(err, ErrNotMounted) {
		log.Warn().Err(err).Str("view", v.name).Str("table", string(c.Table)).Msg("Refetch after change failed")
	}
}

// Refetch loads the authoritative value and replaces the cache.
func (v *view[T]) Refetch(ctx context.Context) error {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return ErrNotMounted
	}
	v.started++
	seq := v.started
	gen := v.mountGen
	v.mu.Unlock()

	metrics.ViewRefetches.WithLabelValues(v.name).Inc()
	data, err := v.load(ctx)

	v.mu.Lock()
	if gen != v.mountGen || seq <= v.applied {
		v.mu.Unlock()
		log.Debug().Str("view", v.name).Uint64("seq", seq).Msg("Discarded stale fetch")
		return nil
	}
	if err != nil {
		v.lastErr = err
		v.mu.Unlock()
		return err
	}
	v.applied = seq
	v.data = data
	v.loaded = true
	v.lastErr = nil
	notify := v.onChange
	v.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// snapshot returns the cached value and whether a fetch has completed.
func (v *view[T]) snapshot() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.data, v.loaded
}

// mutate applies fn to the cached value if the view is mounted and loaded.
func (v *view[T]) mutate(fn func(T) T) bool {
	v.mu.Lock()
	if !v.mounted || !v.loaded {
		v.mu.Unlock()
		return false
	}
	v.data = fn(v.data)
	notify := v.onChange
	v.mu.Unlock()

	if notify != nil {
		notify()
	}
	return true
}

func refetchAlways(store.Change) bool { return true }
