package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/live"
	"github.com/PaulBabatuyi/resonance/internal/memstore"
)

func playing(userID, trackID, artistID string) data.ListeningState {
	return data.ListeningState{UserID: userID, TrackID: trackID, ArtistID: artistID, IsPlaying: true}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		local  data.ListeningState
		other  data.ListeningState
		want   MatchType
		wantOK bool
	}{
		{"same track wins over artist", playing("me", "t1", "a1"), playing("o", "t1", "a1"), SameTrack, true},
		{"same track different artist", playing("me", "t1", "a1"), playing("o", "t1", "a2"), SameTrack, true},
		{"same artist", playing("me", "t1", "a1"), playing("o", "t2", "a1"), SameArtist, true},
		{"nothing shared", playing("me", "t1", "a1"), playing("o", "t2", "a2"), "", false},
		{"empty ids never match", playing("me", "", ""), playing("o", "", ""), "", false},
		{"empty track falls through to artist", playing("me", "", "a1"), playing("o", "", "a1"), SameArtist, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(&tt.local, &tt.other)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCandidates(t *testing.T) {
	snapshot := []data.ListeningState{
		playing("me", "t1", "a1"),
		playing("track", "t1", "a1"),
		playing("artist", "t9", "a1"),
		playing("stranger", "t7", "a7"),
		playing("blank", "", ""),
	}

	pool := Candidates("me", snapshot)
	require.Len(t, pool, 2)

	byUser := map[string]MatchType{}
	for _, c := range pool {
		byUser[c.OtherUserID] = c.Type
	}
	assert.Equal(t, SameTrack, byUser["track"])
	assert.Equal(t, SameArtist, byUser["artist"])
	assert.NotContains(t, byUser, "me")
}

func TestCandidatesWithoutLocalRecordIsEmpty(t *testing.T) {
	snapshot := []data.ListeningState{playing("a", "t1", "a1"), playing("b", "t1", "a1")}
	assert.Empty(t, Candidates("me", snapshot))
}

func TestCandidatesBlankLocalNeverMatchesBlankOthers(t *testing.T) {
	snapshot := []data.ListeningState{playing("me", "", ""), playing("a", "", ""), playing("b", "", "")}
	assert.Empty(t, Candidates("me", snapshot))
}

func waitPool(t *testing.T, m *Matcher, cond func(Pool) bool) Pool {
	t.Helper()
	var p Pool
	require.Eventually(t, func() bool {
		p = m.Pool()
		return cond(p)
	}, 2*time.Second, 5*time.Millisecond)
	return p
}

func TestMatcherFollowsListeningChanges(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	listening := store.Listening()

	require.NoError(t, listening.Put(ctx, &data.ListeningState{UserID: "me", TrackID: "t1", ArtistID: "a1", IsPlaying: true}))
	require.NoError(t, listening.Put(ctx, &data.ListeningState{UserID: "bob", TrackID: "t1", ArtistID: "a1", IsPlaying: true}))

	m := New(listening, zap.NewNop())
	m.Start(ctx, "me")
	defer m.Stop()

	p := waitPool(t, m, func(p Pool) bool { return len(p.Candidates) == 1 })
	assert.Equal(t, "bob", p.Candidates[0].OtherUserID)
	assert.Equal(t, SameTrack, p.Candidates[0].Type)

	// bob pauses: he silently drops out of the pool
	require.NoError(t, listening.Put(ctx, &data.ListeningState{UserID: "bob", TrackID: "t1", ArtistID: "a1", IsPlaying: false}))
	waitPool(t, m, func(p Pool) bool { return len(p.Candidates) == 0 })
}

func TestMatcherRestartDiscardsPreviousUser(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	listening := store.Listening()

	require.NoError(t, listening.Put(ctx, &data.ListeningState{UserID: "a", TrackID: "t1", IsPlaying: true}))
	require.NoError(t, listening.Put(ctx, &data.ListeningState{UserID: "b", TrackID: "t1", IsPlaying: true}))
	require.NoError(t, listening.Put(ctx, &data.ListeningState{UserID: "c", TrackID: "t2", IsPlaying: true}))

	m := New(listening, zap.NewNop())
	m.Start(ctx, "a")
	waitPool(t, m, func(p Pool) bool { return len(p.Candidates) == 1 })

	m.Start(ctx, "c")
	defer m.Stop()
	assert.Equal(t, "c", m.Pool().UserID)

	// c plays t2 alone; nothing from a's session may show up
	require.NoError(t, listening.Put(ctx, &data.ListeningState{UserID: "b", TrackID: "t1", IsPlaying: true, UpdatedAt: time.Now()}))
	time.Sleep(50 * time.Millisecond)
	p := m.Pool()
	assert.Equal(t, "c", p.UserID)
	assert.Empty(t, p.Candidates)
}

func TestMatcherStopTearsDownSubscription(t *testing.T) {
	store := memstore.New()
	m := New(store.Listening(), zap.NewNop())
	m.Start(context.Background(), "me")
	require.Eventually(t, func() bool { return store.Watchers() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	require.Eventually(t, func() bool { return store.Watchers() == 0 }, time.Second, 5*time.Millisecond)
}

// flakySource fails once with an error snapshot, then serves a fixed view.
type flakySource struct {
	calls int
	view  []data.ListeningState
}

func (f *flakySource) WatchPlaying(ctx context.Context) (<-chan live.Snapshot[data.ListeningState], error) {
	f.calls++
	ch := make(chan live.Snapshot[data.ListeningState], 2)
	if f.calls == 1 {
		ch <- live.Snapshot[data.ListeningState]{Items: f.view, At: time.Now()}
		ch <- live.Failed[data.ListeningState](errors.New("stream reset"))
		close(ch)
		return ch, nil
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestMatcherKeepsStalePoolOnError(t *testing.T) {
	src := &flakySource{view: []data.ListeningState{playing("me", "t1", ""), playing("x", "t1", "")}}
	m := New(src, zap.NewNop(), WithRetryDelay(time.Hour))
	m.Start(context.Background(), "me")
	defer m.Stop()

	waitPool(t, m, func(p Pool) bool { return len(p.Candidates) == 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, m.Pool().Candidates, 1)
}
