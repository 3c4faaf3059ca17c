// Package memstore is an in-process implementation of the store contract
// the services are written against. Every write signals the live queries of
// the touched collection, which re-read the filtered view just like the
// MongoDB change stream implementation does.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/resonance/internal/live"
)

type table[T any] struct {
	key func(*T) string

	mu       sync.RWMutex
	rows     map[string]T
	watchers map[int64]*live.Notifier
	nextID   int64
}

func newTable[T any](key func(*T) string) *table[T] {
	return &table[T]{
		key:      key,
		rows:     make(map[string]T),
		watchers: make(map[int64]*live.Notifier),
	}
}

func (t *table[T]) get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	return v, ok
}

// update runs fn under the write lock. Watchers are signalled when fn
// reports a change.
func (t *table[T]) update(fn func(rows map[string]T) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fn(t.rows) {
		for _, n := range t.watchers {
			n.Signal()
		}
	}
}

// query returns copies of the matching rows in less order (id order when
// less is nil).
func (t *table[T]) query(match func(*T) bool, less func(a, b *T) bool) []T {
	t.mu.RLock()
	out := make([]T, 0, len(t.rows))
	for _, v := range t.rows {
		if match == nil || match(&v) {
			out = append(out, v)
		}
	}
	t.mu.RUnlock()

	if less == nil {
		less = func(a, b *T) bool { return t.key(a) < t.key(b) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

func (t *table[T]) watch(ctx context.Context, match func(*T) bool, less func(a, b *T) bool) <-chan live.Snapshot[T] {
	n := live.NewNotifier()

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = n
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.watchers, id)
		t.mu.Unlock()
	}()

	load := func(context.Context) live.Snapshot[T] {
		return live.Snapshot[T]{Items: t.query(match, less), At: time.Now()}
	}
	return live.Pump(ctx, n.C(), nil, load)
}

// watcherCount is used by tests to check subscriptions are torn down.
func (t *table[T]) watcherCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.watchers)
}
