package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// sliceCursor replays marshalled documents the way *mongo.Cursor would.
type sliceCursor struct {
	docs   [][]byte
	cur    []byte
	closed bool
}

func (c *sliceCursor) Next(context.Context) bool {
	if len(c.docs) == 0 {
		return false
	}
	c.cur, c.docs = c.docs[0], c.docs[1:]
	return true
}

func (c *sliceCursor) Decode(v any) error          { return bson.Unmarshal(c.cur, v) }
func (c *sliceCursor) Err() error                  { return nil }
func (c *sliceCursor) Close(context.Context) error { c.closed = true; return nil }

func mustMarshal(t *testing.T, doc any) []byte {
	t.Helper()
	b, err := bson.Marshal(doc)
	require.NoError(t, err)
	return b
}

func TestDecodeEachSkipsMalformedDocuments(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	cur := &sliceCursor{docs: [][]byte{
		mustMarshal(t, ListeningState{UserID: "u1", TrackID: "t1", IsPlaying: true, UpdatedAt: now}),
		// is_playing has the wrong type
		mustMarshal(t, bson.M{"_id": "u2", "track_id": "t1", "is_playing": "yes"}),
		mustMarshal(t, ListeningState{UserID: "u3", ArtistID: "a1", IsPlaying: true, UpdatedAt: now}),
	}}

	items, skipped, err := decodeEach[ListeningState](context.Background(), cur, zap.NewNop(), "current_listening")
	require.NoError(t, err)

	assert.Equal(t, 1, skipped)
	require.Len(t, items, 2)
	assert.Equal(t, "u1", items[0].UserID)
	assert.Equal(t, "u3", items[1].UserID)
	assert.True(t, cur.closed)
}

func TestDecodeEachEmpty(t *testing.T) {
	items, skipped, err := decodeEach[Match](context.Background(), &sliceCursor{}, zap.NewNop(), "matches")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, skipped)
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("alice", "bob"), PairKey("bob", "alice"))
	assert.NotEqual(t, PairKey("alice", "bob"), PairKey("alice", "carol"))
}

func TestMatchRoles(t *testing.T) {
	m := &Match{User1ID: "u1", User2ID: "u2", User1Accepted: true}

	role, ok := m.RoleOf("u2")
	require.True(t, ok)
	assert.Equal(t, RoleTarget, role)

	_, ok = m.RoleOf("u3")
	assert.False(t, ok)

	assert.Equal(t, "u1", m.OtherUserID("u2"))
	assert.False(t, m.BothAccepted())
}

func TestMessageBefore(t *testing.T) {
	t0 := time.Now()
	a := &Message{ID: "a", SentAt: t0}
	b := &Message{ID: "b", SentAt: t0}
	c := &Message{ID: "0", SentAt: t0.Add(time.Millisecond)}

	assert.True(t, MessageBefore(a, b))
	assert.False(t, MessageBefore(b, a))
	assert.True(t, MessageBefore(b, c))
}
