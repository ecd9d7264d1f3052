// Package cache holds client-side query results keyed by query identity.
//
// A Query owns one value. Reads return the current value; writes go through
// Update, which runs the updater under the query lock so every
// read-modify-write is atomic with respect to other writers. Values are
// replaced, never edited in place, so readers holding an old value never
// observe a half-applied update.
package cache

import (
	"context"
	"sync"
)

// FetchFunc loads the authoritative value of a query.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// State is a snapshot of a query.
type State[T any] struct {
	Data    T
	HasData bool
	Loading bool
	Err     error
}

// Query is a single cached value with a fetcher.
type Query[T any] struct {
	key   string
	fetch FetchFunc[T]

	mu      sync.Mutex
	data    T
	hasData bool
	loading int
	err     error
	// gen is bumped by Reset and SetData; a fetch that started under an
	// older gen is dropped. applied is the seq of the newest stored fetch.
	gen     uint64
	seq     uint64
	applied uint64
	subs    map[int]chan struct{}
	nextSub int
}

// NewQuery creates an empty query. The key identifies it in a Client.
func NewQuery[T any](key string, fetch FetchFunc[T]) *Query[T] {
	return &Query[T]{
		key:   key,
		fetch: fetch,
		subs:  make(map[int]chan struct{}),
	}
}

func (q *Query[T]) Key() string { return q.key }

// Get returns the cached value and whether one has been stored.
func (q *Query[T]) Get() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.data, q.hasData
}

// State returns the full snapshot including loading and error flags.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return State[T]{Data: q.data, HasData: q.hasData, Loading: q.loading > 0, Err: q.err}
}

// Fetch loads the value from the fetcher and stores it. The fetch itself
// runs without holding the lock; an Update that lands while it is in
// flight is overwritten by the fetched value (last write wins). The result
// is dropped when Reset or SetData ran in the meantime, or when a fetch
// started later has already been stored.
func (q *Query[T]) Fetch(ctx context.Context) (T, error) {
	q.mu.Lock()
	q.loading++
	q.seq++
	gen, seq := q.gen, q.seq
	q.mu.Unlock()
	q.notify()

	v, err := q.fetch(ctx)

	q.mu.Lock()
	q.loading--
	switch {
	case gen != q.gen || seq < q.applied:
	case err != nil:
		q.err = err
	default:
		q.applied = seq
		q.data = v
		q.hasData = true
		q.err = nil
	}
	q.mu.Unlock()
	q.notify()
	return v, err
}

// Invalidate re-fetches the value from the authoritative source.
func (q *Query[T]) Invalidate(ctx context.Context) error {
	_, err := q.Fetch(ctx)
	return err
}

// SetData atomically stores v.
func (q *Query[T]) SetData(v T) {
	q.mu.Lock()
	q.gen++
	q.data = v
	q.hasData = true
	q.mu.Unlock()
	q.notify()
}

// Update atomically replaces the value with update(current). Nothing
// happens while the query holds no value; the first fetch is authoritative.
// The updater must not block and must not mutate current. It reports
// whether the update was applied.
func (q *Query[T]) Update(update func(current T) T) bool {
	q.mu.Lock()
	if !q.hasData {
		q.mu.Unlock()
		return false
	}
	q.data = update(q.data)
	q.mu.Unlock()
	q.notify()
	return true
}

// Reset drops the cached value, e.g. after logout.
func (q *Query[T]) Reset() {
	var zero T
	q.mu.Lock()
	q.gen++
	q.data = zero
	q.hasData = false
	q.err = nil
	q.mu.Unlock()
	q.notify()
}

// Subscribe returns a channel signalled after every change. Signals are
// coalesced: a slow reader sees at least one signal after the last change.
// Call cancel to stop receiving.
func (q *Query[T]) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch
	q.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subs, id)
			q.mu.Unlock()
		})
	}
}

func (q *Query[T]) notify() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
