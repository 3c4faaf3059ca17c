// Package notify renders and fans out user notifications. Callers never
// wait on delivery: Notify enqueues and returns, a worker renders the text,
// stores it and, subject to the per-recipient rate limit, pushes it to every
// live sink.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
)

// Directory resolves display names for notification text.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Limiter decides whether an event for key may go out now.
type Limiter interface {
	Allow(key string) bool
}

// Sink delivers one rendered notification.
type Sink interface {
	Deliver(ctx context.Context, n *data.Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n *data.Notification) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, n *data.Notification) error { return f(ctx, n) }

type event struct {
	recipientID string
	actorID     string
	kind        data.NotificationKind
	preview     string
	at          time.Time
}

// Dispatcher is the fire-and-forget notification sink used by the ledger and
// the chat channel.
type Dispatcher struct {
	dir          Directory
	limiter      Limiter
	archives     []Sink
	sinks        []Sink
	log          *zap.Logger
	now          func() time.Time
	queue        chan event
	sinkTimeout  time.Duration
	fallbackName string

	mu     sync.RWMutex
	closed bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSink adds a push target. Pushes are rate limited.
func WithSink(s Sink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, s) }
}

// WithArchive adds a target that receives every notification, rate limited
// or not.
func WithArchive(s Sink) Option {
	return func(d *Dispatcher) { d.archives = append(d.archives, s) }
}

// WithQueueSize sets how many notifications may wait for the worker.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.queue = make(chan event, n) }
}

// WithLimiter rate limits pushes per recipient and kind.
func WithLimiter(l Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher returns a Dispatcher. Run must be started for anything to
// be delivered.
func NewDispatcher(dir Directory, log *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		dir:          dir,
		log:          log.Named("notify"),
		now:          time.Now,
		queue:        make(chan event, 256),
		sinkTimeout:  5 * time.Second,
		fallbackName: "Someone",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify queues a notification for recipientID about actorID. It never
// blocks: when the queue is full the notification is dropped and logged.
func (d *Dispatcher) Notify(recipientID, actorID string, kind data.NotificationKind, preview string) {
	if recipientID == "" || recipientID == actorID {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- event{recipientID: recipientID, actorID: actorID, kind: kind, preview: preview, at: d.now()}:
	default:
		d.log.Warn("notification queue full, dropping",
			zap.String("recipient_id", recipientID),
			zap.String("type", string(kind)))
	}
}

// Run delivers queued notifications until ctx is done, then drains what is
// already queued and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()

			drain := context.WithoutCancel(ctx)
			for {
				select {
				case ev := <-d.queue:
					d.deliver(drain, ev)
				default:
					return nil
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev event) {
	log := d.log.With(zap.String("recipient_id", ev.recipientID), zap.String("type", string(ev.kind)))

	ctx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
	defer cancel()

	name := d.fallbackName
	if ev.actorID != "" && d.dir != nil {
		if n, err := d.dir.DisplayName(ctx, ev.actorID); err == nil && n != "" {
			name = n
		} else if err != nil {
			log.Debug("display name lookup failed", zap.String("actor_id", ev.actorID), zap.Error(err))
		}
	}

	title, body := Render(ev.kind, name, ev.preview)
	n := &data.Notification{
		ID:          uuid.NewString(),
		RecipientID: ev.recipientID,
		ActorID:     ev.actorID,
		Title:       title,
		Body:        body,
		Kind:        ev.kind,
		CreatedAt:   ev.at,
	}
	for _, s := range d.archives {
		if err := s.Deliver(ctx, n); err != nil {
			log.Warn("notification archive failed", zap.Error(err))
		}
	}

	if d.limiter != nil && !d.limiter.Allow(fmt.Sprintf("%s:%s", ev.recipientID, ev.kind)) {
		log.Debug("notification push rate limited")
		return
	}
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, n); err != nil {
			log.Warn("notification sink failed", zap.Error(err))
		}
	}
}

// Render builds the title and body shown to the recipient.
func Render(kind data.NotificationKind, actorName, preview string) (title, body string) {
	switch kind {
	case data.KindMatchRequest:
		return "New Match Request!", actorName + " wants to connect with you"
	case data.KindMatchAccepted:
		return "Match Accepted! 🎉", "You and " + actorName + " are now connected"
	case data.KindNewMessage:
		return actorName, preview
	}
	return actorName, preview
}
