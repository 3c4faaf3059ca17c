package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/live"
)

// MatchWatcher is the live side of the matches collection.
type MatchWatcher interface {
	WatchByRole(ctx context.Context, role data.Role, userID string) (<-chan live.Snapshot[data.Match], error)
}

// View is the published match state of one user.
type View struct {
	UserID string
	// Pending holds requests waiting for this user's answer.
	Pending []data.Match
	// Active holds matches both sides accepted.
	Active    []data.Match
	Skipped   int
	UpdatedAt time.Time
}

// Views keeps the pending and active lists of one user current. It runs one
// subscription per role column and merges them in a single actor.
type Views struct {
	src        MatchWatcher
	log        *zap.Logger
	retryDelay time.Duration

	session live.Session
	changes *live.Notifier

	mu   sync.RWMutex
	view View
}

// ViewsOption configures Views.
type ViewsOption func(*Views)

// WithViewsRetryDelay sets the pause before re-subscribing after a failure.
func WithViewsRetryDelay(d time.Duration) ViewsOption {
	return func(v *Views) { v.retryDelay = d }
}

// NewViews returns stopped Views.
func NewViews(src MatchWatcher, log *zap.Logger, opts ...ViewsOption) *Views {
	v := &Views{
		src:        src,
		log:        log.Named("match_views"),
		retryDelay: 2 * time.Second,
		changes:    live.NewNotifier(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Start begins tracking userID's matches, stopping any previous session.
func (v *Views) Start(ctx context.Context, userID string) {
	v.session.Stop()

	v.mu.Lock()
	v.view = View{UserID: userID}
	v.mu.Unlock()
	v.changes.Signal()

	v.session.Restart(ctx, func(ctx context.Context, gen uint64) {
		v.run(ctx, gen, userID)
	})
}

// Stop ends the session and waits for the actor.
func (v *Views) Stop() { v.session.Stop() }

// View returns the current lists.
func (v *Views) View() View {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := v.view
	out.Pending = append([]data.Match(nil), v.view.Pending...)
	out.Active = append([]data.Match(nil), v.view.Active...)
	return out
}

// Changes fires after the view was replaced.
func (v *Views) Changes() <-chan struct{} { return v.changes.C() }

// roleState is the latest good snapshot of one role subscription.
type roleState struct {
	items   []data.Match
	skipped int
}

func (v *Views) run(ctx context.Context, gen uint64, userID string) {
	log := v.log.With(zap.String("user_id", userID))
	latest := map[data.Role]roleState{}

	for {
		v.consume(ctx, gen, userID, latest, log)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(v.retryDelay):
			log.Info("resubscribing to matches")
		}
	}
}

// consume runs both role subscriptions until either ends. latest survives
// across resubscriptions so a failure never empties the view.
func (v *Views) consume(ctx context.Context, gen uint64, userID string, latest map[data.Role]roleState, log *zap.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	initiated, err := v.src.WatchByRole(ctx, data.RoleInitiator, userID)
	if err != nil {
		log.Error("initiator subscription failed", zap.Error(err))
		return
	}
	received, err := v.src.WatchByRole(ctx, data.RoleTarget, userID)
	if err != nil {
		log.Error("target subscription failed", zap.Error(err))
		return
	}

	for {
		var (
			snap live.Snapshot[data.Match]
			ok   bool
			role data.Role
		)
		select {
		case <-ctx.Done():
			return
		case snap, ok = <-initiated:
			role = data.RoleInitiator
		case snap, ok = <-received:
			role = data.RoleTarget
		}
		if !ok {
			return
		}
		if snap.Err != nil {
			log.Error("match subscription error", zap.String("role", string(role)), zap.Error(snap.Err))
			continue
		}
		latest[role] = roleState{items: snap.Items, skipped: snap.Skipped}

		pending, active := Reduce(userID, latest[data.RoleInitiator].items, latest[data.RoleTarget].items)
		v.publish(gen, View{
			UserID:    userID,
			Pending:   pending,
			Active:    active,
			Skipped:   latest[data.RoleInitiator].skipped + latest[data.RoleTarget].skipped,
			UpdatedAt: snap.At,
		})
	}
}

func (v *Views) publish(gen uint64, view View) {
	v.mu.Lock()
	if !v.session.Current(gen) {
		v.mu.Unlock()
		return
	}
	v.view = view
	v.mu.Unlock()
	v.changes.Signal()
}

// Reduce merges the two role snapshots of userID into the pending and active
// lists. The same match seen in both snapshots resolves by updated_at, not
// by arrival order. Several matches for one pair collapse to the lowest id.
// userID's own outbound requests appear in neither list.
func Reduce(userID string, initiated, received []data.Match) (pending, active []data.Match) {
	byID := make(map[string]data.Match, len(initiated)+len(received))
	for _, rows := range [][]data.Match{initiated, received} {
		for _, m := range rows {
			if cur, ok := byID[m.ID]; !ok || newer(&m, &cur) {
				byID[m.ID] = m
			}
		}
	}

	byPair := make(map[string]data.Match, len(byID))
	for _, m := range byID {
		key := m.PairKey
		if key == "" {
			key = data.PairKey(m.User1ID, m.User2ID)
		}
		if cur, ok := byPair[key]; !ok || m.ID < cur.ID {
			byPair[key] = m
		}
	}

	for _, m := range byPair {
		switch {
		case m.BothAccepted():
			active = append(active, m)
		case m.User2ID == userID && !m.User2Accepted:
			pending = append(pending, m)
		}
	}
	sortNewestFirst(pending)
	sortNewestFirst(active)
	return pending, active
}

// newer reports whether a is a later version of the same match than b.
func newer(a, b *data.Match) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	// same timestamp: the state machine only moves forward
	return progress(a) > progress(b)
}

func progress(m *data.Match) int {
	n := 0
	if m.User1Accepted {
		n++
	}
	if m.User2Accepted {
		n++
	}
	if m.ChatID != "" {
		n++
	}
	return n
}

func sortNewestFirst(ms []data.Match) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}
