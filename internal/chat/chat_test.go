package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/memstore"
)

type note struct {
	recipient, actor string
	kind             data.NotificationKind
	preview          string
}

type recorder struct {
	mu    sync.Mutex
	notes []note
}

func (r *recorder) Notify(recipientID, actorID string, kind data.NotificationKind, preview string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{recipientID, actorID, kind, preview})
}

func setup(t *testing.T) (*Channel, *memstore.Store, *recorder) {
	t.Helper()
	store := memstore.New()
	rec := &recorder{}
	c := New(store.Chats(), store.Messages(), rec, zap.NewNop())

	m := &data.Match{ID: "m1", User1ID: "u1", User2ID: "u2", User1Accepted: true, User2Accepted: true}
	require.NoError(t, c.Open(context.Background(), m, "c1"))
	return c, store, rec
}

func TestSendMessageUpdatesLastMessageAt(t *testing.T) {
	ctx := context.Background()
	c, store, rec := setup(t)

	msg, err := c.SendMessage(ctx, "c1", "u1", "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "u1", msg.SenderID)

	chat, err := store.Chats().Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, chat.LastMessageAt.Equal(msg.SentAt))

	require.Len(t, rec.notes, 1)
	assert.Equal(t, note{"u2", "u1", data.KindNewMessage, "hi"}, rec.notes[0])
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	c, store, _ := setup(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.SendMessage(context.Background(), "c1", "u1", text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Zero(t, store.Messages().CountByChat("c1"))
}

func TestSendMessageChecksMembership(t *testing.T) {
	c, _, _ := setup(t)

	_, err := c.SendMessage(context.Background(), "c1", "intruder", "hello")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = c.SendMessage(context.Background(), "missing", "u1", "hello")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestSendMessageRollsBackWhenTouchFails(t *testing.T) {
	c, store, rec := setup(t)
	store.Fail("chats.Touch", errors.New("unavailable"))

	_, err := c.SendMessage(context.Background(), "c1", "u1", "hello")
	require.Error(t, err)
	assert.Zero(t, store.Messages().CountByChat("c1"), "no partial state")
	assert.Empty(t, rec.notes)
}

func TestHistoryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := base
	c := New(store.Chats(), store.Messages(), nil, zap.NewNop(), WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))
	require.NoError(t, c.Open(ctx, &data.Match{ID: "m", User1ID: "a", User2ID: "b"}, "c"))

	for _, text := range []string{"one", "two", "three"} {
		_, err := c.SendMessage(ctx, "c", "a", text)
		require.NoError(t, err)
	}

	all, err := c.History(ctx, "c", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Text)
	assert.Equal(t, "three", all[2].Text)

	last, err := c.History(ctx, "c", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Text)
}

func TestWatchDeliversOrderedThread(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, _, _ := setup(t)

	snaps, err := c.Watch(ctx, "c1")
	require.NoError(t, err)

	_, err = c.SendMessage(ctx, "c1", "u1", "first")
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, "c1", "u2", "second")
	require.NoError(t, err)

	var got []data.Message
	require.Eventually(t, func() bool {
		select {
		case s := <-snaps:
			got = s.Items
		default:
		}
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
}

func TestTeardownIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, store, _ := setup(t)
	_, err := c.SendMessage(ctx, "c1", "u1", "bye")
	require.NoError(t, err)

	require.NoError(t, c.Teardown(ctx, "c1"))
	assert.Zero(t, store.Messages().CountByChat("c1"))
	_, err = store.Chats().Get(ctx, "c1")
	assert.ErrorIs(t, err, data.ErrNotFound)

	assert.NoError(t, c.Teardown(ctx, "c1"))
}
