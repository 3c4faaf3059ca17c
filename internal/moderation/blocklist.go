package moderation

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/live"
)

// BlockWatcher is the live side of the blocked_users collection.
type BlockWatcher interface {
	WatchBy(ctx context.Context, field data.BlockField, userID string) (<-chan live.Snapshot[data.BlockRecord], error)
}

// BlockList keeps one user's blocks current in both directions: the users
// they blocked and the users who blocked them. Either way the pair is hidden
// from each other.
type BlockList struct {
	src        BlockWatcher
	log        *zap.Logger
	retryDelay time.Duration

	session live.Session
	changes *live.Notifier

	mu        sync.RWMutex
	blocked   map[string]bool
	blockedBy map[string]bool
	// loaded tracks which directions have delivered a first snapshot.
	loaded [2]bool
}

// NewBlockList returns a stopped BlockList.
func NewBlockList(src BlockWatcher, log *zap.Logger) *BlockList {
	return &BlockList{
		src:        src,
		log:        log.Named("blocklist"),
		retryDelay: 2 * time.Second,
		changes:    live.NewNotifier(),
		blocked:    map[string]bool{},
		blockedBy:  map[string]bool{},
	}
}

// Start begins tracking userID's blocks, stopping any previous session.
func (b *BlockList) Start(ctx context.Context, userID string) {
	b.session.Stop()

	b.mu.Lock()
	b.blocked = map[string]bool{}
	b.blockedBy = map[string]bool{}
	b.loaded = [2]bool{}
	b.mu.Unlock()
	b.changes.Signal()

	b.session.Restart(ctx, func(ctx context.Context, gen uint64) {
		b.run(ctx, gen, userID)
	})
}

// Stop ends the session and waits for the actor.
func (b *BlockList) Stop() { b.session.Stop() }

// Hidden reports whether userID and the tracked user must not see each other.
func (b *BlockList) Hidden(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blocked[userID] || b.blockedBy[userID]
}

// Ready reports whether both directions have been read since Start. Before
// that Hidden may miss blocks.
func (b *BlockList) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded[0] && b.loaded[1]
}

// Blocked returns the ids the tracked user has blocked, sorted.
func (b *BlockList) Blocked() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.blocked))
	for id := range b.blocked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Changes fires after the set was replaced.
func (b *BlockList) Changes() <-chan struct{} { return b.changes.C() }

func (b *BlockList) run(ctx context.Context, gen uint64, userID string) {
	log := b.log.With(zap.String("user_id", userID))
	for {
		b.consume(ctx, gen, userID, log)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.retryDelay):
			log.Info("resubscribing to blocks")
		}
	}
}

func (b *BlockList) consume(ctx context.Context, gen uint64, userID string, log *zap.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mine, err := b.src.WatchBy(ctx, data.BlockerField, userID)
	if err != nil {
		log.Error("blocker subscription failed", zap.Error(err))
		return
	}
	theirs, err := b.src.WatchBy(ctx, data.BlockedField, userID)
	if err != nil {
		log.Error("blocked subscription failed", zap.Error(err))
		return
	}

	for {
		var (
			snap live.Snapshot[data.BlockRecord]
			ok   bool
			own  bool
		)
		select {
		case <-ctx.Done():
			return
		case snap, ok = <-mine:
			own = true
		case snap, ok = <-theirs:
		}
		if !ok {
			return
		}
		if snap.Err != nil {
			log.Error("block subscription error", zap.Error(snap.Err))
			continue
		}

		set := make(map[string]bool, len(snap.Items))
		for _, rec := range snap.Items {
			if own {
				set[rec.BlockedID] = true
			} else {
				set[rec.BlockerID] = true
			}
		}
		b.publish(gen, own, set)
	}
}

func (b *BlockList) publish(gen uint64, own bool, set map[string]bool) {
	b.mu.Lock()
	if !b.session.Current(gen) {
		b.mu.Unlock()
		return
	}
	if own {
		b.blocked = set
		b.loaded[0] = true
	} else {
		b.blockedBy = set
		b.loaded[1] = true
	}
	b.mu.Unlock()
	b.changes.Signal()
}

// Visible drops the items whose counterparty is hidden by bl.
func Visible[T any](bl *BlockList, items []T, counterparty func(*T) string) []T {
	out := make([]T, 0, len(items))
	for i := range items {
		if !bl.Hidden(counterparty(&items[i])) {
			out = append(out, items[i])
		}
	}
	return out
}
