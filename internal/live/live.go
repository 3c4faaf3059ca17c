// Package live holds the primitives shared by every live query: full
// replacement snapshots, the pump that turns change signals into snapshots,
// and the start/stop session used by the per-user components.
package live

import (
	"context"
	"time"
)

// Snapshot is one delivery of a live query. Items is the complete filtered
// view at the time of the read, not a delta.
type Snapshot[T any] struct {
	Items []T
	// Skipped counts stored documents that failed to decode and were left out.
	Skipped int
	// Err is set when the read or the underlying subscription failed. Items is
	// empty in that case and consumers keep whatever they had before.
	Err error
	At  time.Time
}

// Failed builds an error snapshot.
func Failed[T any](err error) Snapshot[T] {
	return Snapshot[T]{Err: err, At: time.Now()}
}

// Notifier coalesces change signals for one subscription. Signal never
// blocks; several signals before the reader wakes up collapse into one.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier returns a notifier with one pending signal so the first read
// happens immediately.
func NewNotifier() *Notifier {
	n := &Notifier{ch: make(chan struct{}, 1)}
	n.Signal()
	return n
}

// Signal marks the view as changed.
func (n *Notifier) Signal() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C is the channel readers wait on.
func (n *Notifier) C() <-chan struct{} { return n.ch }

// Loader reads the current filtered view.
type Loader[T any] func(ctx context.Context) Snapshot[T]

// Pump runs load every time changes fires and delivers the result on the
// returned channel, in order. A value on failures is delivered as an error
// snapshot and ends the stream. The channel is closed when ctx is done, when
// changes is closed, or after a failure.
func Pump[T any](ctx context.Context, changes <-chan struct{}, failures <-chan error, load Loader[T]) <-chan Snapshot[T] {
	out := make(chan Snapshot[T])

	send := func(s Snapshot[T]) bool {
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-failures:
				if !ok {
					failures = nil
					continue
				}
				send(Failed[T](err))
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				snap := load(ctx)
				if ctx.Err() != nil {
					return
				}
				if !send(snap) {
					return
				}
			}
		}
	}()

	return out
}
