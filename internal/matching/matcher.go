package matching

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/live"
)

// ListeningSource is the read side of the current_listening collection.
type ListeningSource interface {
	WatchPlaying(ctx context.Context) (<-chan live.Snapshot[data.ListeningState], error)
}

// Pool is the published candidate set of one user.
type Pool struct {
	UserID     string
	Candidates []PotentialMatch
	// Skipped counts listening records that could not be decoded.
	Skipped   int
	UpdatedAt time.Time
}

// Matcher keeps the candidate pool of a single user up to date. One actor
// goroutine consumes the listening subscription and replaces the pool on
// every snapshot.
type Matcher struct {
	src        ListeningSource
	log        *zap.Logger
	retryDelay time.Duration

	session live.Session
	changes *live.Notifier

	mu   sync.RWMutex
	pool Pool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithRetryDelay sets how long the actor waits before re-subscribing after
// the listening subscription ended with an error.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Matcher) { m.retryDelay = d }
}

// New returns a stopped Matcher.
func New(src ListeningSource, log *zap.Logger, opts ...Option) *Matcher {
	m := &Matcher{
		src:        src,
		log:        log.Named("matcher"),
		retryDelay: 2 * time.Second,
		changes:    live.NewNotifier(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins tracking candidates for userID. A running session for
// another user is fully stopped first and its pool discarded.
func (m *Matcher) Start(ctx context.Context, userID string) {
	m.session.Stop()

	m.mu.Lock()
	m.pool = Pool{UserID: userID}
	m.mu.Unlock()
	m.changes.Signal()

	m.session.Restart(ctx, func(ctx context.Context, gen uint64) {
		m.run(ctx, gen, userID)
	})
}

// Stop ends the session and waits for the actor to exit. The last pool stays
// readable.
func (m *Matcher) Stop() { m.session.Stop() }

// Pool returns the current candidate pool.
func (m *Matcher) Pool() Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.pool
	p.Candidates = append([]PotentialMatch(nil), m.pool.Candidates...)
	return p
}

// Changes fires after the pool was replaced. Signals coalesce.
func (m *Matcher) Changes() <-chan struct{} { return m.changes.C() }

func (m *Matcher) run(ctx context.Context, gen uint64, userID string) {
	log := m.log.With(zap.String("user_id", userID))
	for {
		m.consume(ctx, gen, userID, log)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.retryDelay):
			log.Info("resubscribing to listening states")
		}
	}
}

func (m *Matcher) consume(ctx context.Context, gen uint64, userID string, log *zap.Logger) {
	snaps, err := m.src.WatchPlaying(ctx)
	if err != nil {
		log.Error("listening subscription failed", zap.Error(err))
		return
	}
	for snap := range snaps {
		if snap.Err != nil {
			// keep the stale pool, it is still the best answer we have
			log.Error("listening subscription error", zap.Error(snap.Err))
			continue
		}
		if snap.Skipped > 0 {
			log.Warn("listening records skipped", zap.Int("skipped", snap.Skipped))
		}
		m.publish(gen, Pool{
			UserID:     userID,
			Candidates: Candidates(userID, snap.Items),
			Skipped:    snap.Skipped,
			UpdatedAt:  snap.At,
		})
	}
}

func (m *Matcher) publish(gen uint64, p Pool) {
	m.mu.Lock()
	if !m.session.Current(gen) {
		m.mu.Unlock()
		return
	}
	m.pool = p
	m.mu.Unlock()
	m.changes.Signal()
}
