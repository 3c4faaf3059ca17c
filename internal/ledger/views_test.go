package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
)

func TestReduceClassifiesAsymmetrically(t *testing.T) {
	pendingMatch := data.Match{ID: "m1", User1ID: "u1", User2ID: "u2", User1Accepted: true}

	pending, active := Reduce("u1", []data.Match{pendingMatch}, nil)
	assert.Empty(t, pending, "initiator never sees own request")
	assert.Empty(t, active)

	pending, active = Reduce("u2", nil, []data.Match{pendingMatch})
	require.Len(t, pending, 1)
	assert.Equal(t, "m1", pending[0].ID)
	assert.Empty(t, active)

	activeMatch := pendingMatch
	activeMatch.User2Accepted = true
	activeMatch.ChatID = "c1"
	for _, me := range []string{"u1", "u2"} {
		pending, active = Reduce(me, []data.Match{activeMatch}, []data.Match{activeMatch})
		assert.Empty(t, pending)
		require.Len(t, active, 1, me)
	}
}

func TestReduceLastWriteWinsByUpdatedAt(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	older := data.Match{ID: "m1", User1ID: "u2", User2ID: "u2b", User1Accepted: true, UpdatedAt: t0}
	newer := older
	newer.User2Accepted = true
	newer.UpdatedAt = t0.Add(time.Second)

	// the newer version arrives first in one role snapshot, the stale one later in the other
	_, active := Reduce("u2", []data.Match{newer}, []data.Match{older})
	require.Len(t, active, 1)

	_, active = Reduce("u2", []data.Match{older}, []data.Match{newer})
	require.Len(t, active, 1)
}

func TestReduceCollapsesDuplicatePairs(t *testing.T) {
	a := data.Match{ID: "b-id", User1ID: "x", User2ID: "y", PairKey: data.PairKey("x", "y"), User1Accepted: true}
	b := data.Match{ID: "a-id", User1ID: "y", User2ID: "x", PairKey: data.PairKey("y", "x"), User1Accepted: true}

	pendingX, _ := Reduce("x", []data.Match{a}, []data.Match{b})
	pendingY, _ := Reduce("y", []data.Match{b}, []data.Match{a})

	// lowest id wins: "a-id" has y as initiator, so only x sees a pending request
	require.Len(t, pendingX, 1)
	assert.Equal(t, "a-id", pendingX[0].ID)
	assert.Empty(t, pendingY)
}

func waitView(t *testing.T, v *Views, cond func(View) bool) View {
	t.Helper()
	var got View
	require.Eventually(t, func() bool {
		got = v.View()
		return cond(got)
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestViewsPendingAsymmetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u1 := NewViews(f.store.Matches(), zap.NewNop())
	u2 := NewViews(f.store.Matches(), zap.NewNop())
	u1.Start(ctx, "u1")
	u2.Start(ctx, "u2")
	defer u1.Stop()
	defer u2.Stop()

	m, _, err := f.ledger.CreateMatch(ctx, "u1", "u2", songA)
	require.NoError(t, err)

	got := waitView(t, u2, func(v View) bool { return len(v.Pending) == 1 })
	assert.Equal(t, m.ID, got.Pending[0].ID)

	// give u1's view the same chance to update before checking it stays empty
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, u1.View().Pending)
	assert.Empty(t, u1.View().Active)

	_, _, err = f.ledger.AcceptMatch(ctx, m.ID, "u2")
	require.NoError(t, err)

	waitView(t, u1, func(v View) bool { return len(v.Active) == 1 && v.Active[0].ChatID != "" })
	waitView(t, u2, func(v View) bool { return len(v.Active) == 1 && len(v.Pending) == 0 })
}

func TestViewsRestartForAnotherUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _, err := f.ledger.CreateMatch(ctx, "u1", "u2", songA)
	require.NoError(t, err)

	v := NewViews(f.store.Matches(), zap.NewNop())
	v.Start(ctx, "u2")
	waitView(t, v, func(v View) bool { return len(v.Pending) == 1 })

	v.Start(ctx, "u3")
	got := v.View()
	assert.Equal(t, "u3", got.UserID)
	assert.Empty(t, got.Pending)

	v.Stop()
	require.Eventually(t, func() bool { return f.store.Watchers() == 0 }, time.Second, 5*time.Millisecond)
}
