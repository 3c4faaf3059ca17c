// Package ledger owns match records and their two-sided acceptance state:
// creation, accept and decline transitions, the one-time chat cascade when
// both parties have accepted, and the pending/active views per user.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/live"
	"github.com/PaulBabatuyi/resonance/internal/normalize"
)

var (
	// ErrSelfMatch is returned when a user tries to match with themselves.
	ErrSelfMatch = errors.New("cannot match with yourself")
	// ErrBlankUser is returned when a user id is empty.
	ErrBlankUser = errors.New("user id is required")
	// ErrMatchNotFound is returned by AcceptMatch and Get when the match is gone.
	ErrMatchNotFound = errors.New("match not found")
	// ErrNotParticipant is returned when the acting user is on neither side.
	ErrNotParticipant = errors.New("user is not part of this match")
)

// Outcome is the non-error result of a ledger transition.
type Outcome string

const (
	Created       Outcome = "created"
	AlreadyExists Outcome = "already_exists"
	Accepted      Outcome = "accepted"
	Declined      Outcome = "declined"
	AlreadyGone   Outcome = "already_gone"
)

// MatchStore is the matches collection contract.
type MatchStore interface {
	Insert(ctx context.Context, m *data.Match) error
	Get(ctx context.Context, id string) (*data.Match, error)
	FindByPair(ctx context.Context, user1ID, user2ID string) ([]data.Match, error)
	SetAccepted(ctx context.Context, id string, role data.Role, at time.Time) error
	ClaimChat(ctx context.Context, id, chatID string, at time.Time) (bool, error)
	ReleaseChat(ctx context.Context, id, chatID string) error
	Delete(ctx context.Context, id string) (bool, error)
	WatchByRole(ctx context.Context, role data.Role, userID string) (<-chan live.Snapshot[data.Match], error)
}

// ChatOpener creates and removes the chat attached to a match.
type ChatOpener interface {
	Open(ctx context.Context, m *data.Match, chatID string) error
	Exists(ctx context.Context, chatID string) (bool, error)
	Teardown(ctx context.Context, chatID string) error
}

// Notifier receives fire-and-forget notifications.
type Notifier interface {
	Notify(recipientID, actorID string, kind data.NotificationKind, preview string)
}

// Ledger runs the match lifecycle against the store. It holds no match
// state of its own; every decision is taken on freshly read records.
type Ledger struct {
	matches MatchStore
	chats   ChatOpener
	notify  Notifier
	log     *zap.Logger
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New wires a Ledger. notify may be nil.
func New(matches MatchStore, chats ChatOpener, notify Notifier, log *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		matches: matches,
		chats:   chats,
		notify:  notify,
		log:     log.Named("ledger"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateMatch records a match request from initiatorID to targetID over the
// given listening snapshot. If a match for the pair already exists in either
// role ordering it is returned with AlreadyExists.
//
// The existence check and the insert are two separate store calls. Two
// mutual requests racing through that window both insert; the views collapse
// the duplicates to the lowest id, and a unique pair_key index (strict mode)
// turns the second insert into AlreadyExists instead.
func (l *Ledger) CreateMatch(ctx context.Context, initiatorID, targetID string, listening data.ListeningState) (*data.Match, Outcome, error) {
	initiatorID, targetID = normalize.ID(initiatorID), normalize.ID(targetID)
	if initiatorID == "" || targetID == "" {
		return nil, "", ErrBlankUser
	}
	if initiatorID == targetID {
		return nil, "", ErrSelfMatch
	}

	existing, err := l.FindBetween(ctx, initiatorID, targetID)
	if err != nil {
		return nil, "", err
	}
	if len(existing) > 0 {
		return &existing[0], AlreadyExists, nil
	}

	now := l.now()
	m := &data.Match{
		ID:            uuid.NewString(),
		User1ID:       initiatorID,
		User2ID:       targetID,
		PairKey:       data.PairKey(initiatorID, targetID),
		TrackName:     listening.TrackName,
		ArtistName:    listening.ArtistName,
		ImageURL:      listening.ImageURL,
		User1Accepted: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.matches.Insert(ctx, m); err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			// lost the race against the mutual request under the unique pair index
			existing, ferr := l.FindBetween(ctx, initiatorID, targetID)
			if ferr == nil && len(existing) > 0 {
				return &existing[0], AlreadyExists, nil
			}
		}
		return nil, "", fmt.Errorf("insert match: %w", err)
	}

	l.log.Info("match created",
		zap.String("match_id", m.ID),
		zap.String("user1_id", m.User1ID),
		zap.String("user2_id", m.User2ID))
	l.send(targetID, initiatorID, data.KindMatchRequest, m.TrackName)
	return m, Created, nil
}

// AcceptMatch sets the acting user's acceptance flag. When both flags are
// set afterwards the chat cascade runs; it creates at most one chat per
// match, and accepting an already active match changes nothing.
func (l *Ledger) AcceptMatch(ctx context.Context, matchID, actingUserID string) (*data.Match, Outcome, error) {
	m, err := l.Get(ctx, matchID)
	if err != nil {
		return nil, "", err
	}
	role, ok := m.RoleOf(normalize.ID(actingUserID))
	if !ok {
		return nil, "", ErrNotParticipant
	}

	if m.BothAccepted() && m.ChatID != "" {
		if err := l.ensureChat(ctx, m); err != nil {
			return nil, "", err
		}
		return m, Accepted, nil
	}

	flipped := false
	if !accepted(m, role) {
		if err := l.matches.SetAccepted(ctx, m.ID, role, l.now()); err != nil {
			if errors.Is(err, data.ErrNotFound) {
				return nil, "", ErrMatchNotFound
			}
			return nil, "", fmt.Errorf("accept match: %w", err)
		}
		flipped = true

		// read back: the other side may have accepted in the meantime
		if m, err = l.Get(ctx, matchID); err != nil {
			return nil, "", err
		}
	}

	if m.BothAccepted() && m.ChatID == "" {
		if m, err = l.openChat(ctx, m); err != nil {
			return nil, "", err
		}
	}

	if flipped {
		l.log.Info("match accepted",
			zap.String("match_id", m.ID),
			zap.String("user_id", actingUserID),
			zap.Bool("active", m.BothAccepted()))
		l.send(m.OtherUserID(actingUserID), actingUserID, data.KindMatchAccepted, m.TrackName)
	}
	return m, Accepted, nil
}

// openChat runs the both-accepted cascade. The chat id is claimed on the
// match first with a conditional write; only the claimant creates the chat,
// and a failed creation releases the claim so a retry can run it again.
func (l *Ledger) openChat(ctx context.Context, m *data.Match) (*data.Match, error) {
	chatID := uuid.NewString()
	claimed, err := l.matches.ClaimChat(ctx, m.ID, chatID, l.now())
	if err != nil {
		return nil, fmt.Errorf("claim chat: %w", err)
	}
	if !claimed {
		// another accept won the claim, or the match was deleted
		return l.Get(ctx, m.ID)
	}

	out := *m
	out.ChatID = chatID
	// a duplicate means a concurrent repair already created this chat
	if err := l.chats.Open(ctx, &out, chatID); err != nil && !errors.Is(err, data.ErrDuplicate) {
		if rerr := l.matches.ReleaseChat(context.WithoutCancel(ctx), m.ID, chatID); rerr != nil {
			l.log.Error("release chat claim failed",
				zap.String("match_id", m.ID),
				zap.String("chat_id", chatID),
				zap.Error(rerr))
		}
		return nil, fmt.Errorf("open chat: %w", err)
	}

	// an unmatch between the claim and the insert would leave the chat orphaned
	if _, err := l.matches.Get(ctx, m.ID); errors.Is(err, data.ErrNotFound) {
		l.teardown(ctx, chatID)
		return nil, ErrMatchNotFound
	}

	l.log.Info("chat opened", zap.String("match_id", m.ID), zap.String("chat_id", chatID))
	return &out, nil
}

// ensureChat recreates the chat of an active match whose claim outlived the
// chat creation, either because the process died between the two writes or
// because releasing the claim failed. The stamped id is reused, so racing
// repairs create one chat.
func (l *Ledger) ensureChat(ctx context.Context, m *data.Match) error {
	ok, err := l.chats.Exists(ctx, m.ChatID)
	if err != nil {
		return fmt.Errorf("check chat: %w", err)
	}
	if ok {
		return nil
	}
	if err := l.chats.Open(ctx, m, m.ChatID); err != nil && !errors.Is(err, data.ErrDuplicate) {
		return fmt.Errorf("reopen chat: %w", err)
	}
	l.log.Warn("chat recreated for active match", zap.String("match_id", m.ID), zap.String("chat_id", m.ChatID))
	return nil
}

// DeclineMatch deletes a match. Declining a match that no longer exists is
// not an error.
func (l *Ledger) DeclineMatch(ctx context.Context, matchID string) (Outcome, error) {
	m, err := l.matches.Get(ctx, matchID)
	if errors.Is(err, data.ErrNotFound) {
		return AlreadyGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("get match: %w", err)
	}

	existed, err := l.matches.Delete(ctx, matchID)
	if err != nil {
		return "", fmt.Errorf("delete match: %w", err)
	}
	if m.ChatID != "" {
		l.teardown(ctx, m.ChatID)
	}
	if !existed {
		return AlreadyGone, nil
	}
	l.log.Info("match declined", zap.String("match_id", matchID))
	return Declined, nil
}

// Unmatch deletes the match and, when it has one, its chat with every
// message. A match that is already gone is not an error.
func (l *Ledger) Unmatch(ctx context.Context, m *data.Match) error {
	chatID := m.ChatID
	// the caller's copy may predate the chat claim
	if cur, err := l.matches.Get(ctx, m.ID); err == nil {
		chatID = cur.ChatID
	} else if !errors.Is(err, data.ErrNotFound) {
		return fmt.Errorf("get match: %w", err)
	}

	if _, err := l.matches.Delete(ctx, m.ID); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	if chatID != "" {
		if err := l.chats.Teardown(ctx, chatID); err != nil {
			return fmt.Errorf("teardown chat: %w", err)
		}
	}
	l.log.Info("unmatched", zap.String("match_id", m.ID), zap.String("chat_id", chatID))
	return nil
}

// Get returns a match by id.
func (l *Ledger) Get(ctx context.Context, matchID string) (*data.Match, error) {
	m, err := l.matches.Get(ctx, normalize.ID(matchID))
	if errors.Is(err, data.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// FindBetween returns every match between a and b in either role ordering,
// lowest id first. Each ordering is its own query.
func (l *Ledger) FindBetween(ctx context.Context, a, b string) ([]data.Match, error) {
	forward, err := l.matches.FindByPair(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("find match %s->%s: %w", a, b, err)
	}
	backward, err := l.matches.FindByPair(ctx, b, a)
	if err != nil {
		return nil, fmt.Errorf("find match %s->%s: %w", b, a, err)
	}
	out := append(forward, backward...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *Ledger) teardown(ctx context.Context, chatID string) {
	if err := l.chats.Teardown(context.WithoutCancel(ctx), chatID); err != nil {
		l.log.Error("chat teardown failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}

func (l *Ledger) send(recipientID, actorID string, kind data.NotificationKind, preview string) {
	if l.notify == nil {
		return
	}
	l.notify.Notify(recipientID, actorID, kind, preview)
}

func accepted(m *data.Match, role data.Role) bool {
	if role == data.RoleInitiator {
		return m.User1Accepted
	}
	return m.User2Accepted
}
