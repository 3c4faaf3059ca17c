package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/PaulBabatuyi/resonance/api/v1"
	"github.com/PaulBabatuyi/resonance/internal/data"
)

type fakeSender struct {
	last *v1.Notification
	fail bool
}

func (f *fakeSender) Send(n *v1.Notification) error {
	if f.fail {
		return errors.New("send fail")
	}
	f.last = n
	return nil
}

func TestConnectionHub_RegisterAndSend(t *testing.T) {
	hub := NewConnectionHub()

	senderA := &fakeSender{}
	senderB := &fakeSender{}
	idA := hub.Register("alice", senderA)
	_ = hub.Register("alice", senderB)
	assert.Equal(t, 2, hub.Connected("alice"))

	require.NoError(t, hub.SendToUser("alice", &v1.Notification{ID: "n1"}))
	require.NotNil(t, senderA.last)
	assert.Equal(t, "n1", senderA.last.ID)
	assert.Equal(t, "n1", senderB.last.ID)

	hub.Unregister("alice", idA)
	require.NoError(t, hub.SendToUser("alice", &v1.Notification{ID: "n2"}))
	assert.Equal(t, "n1", senderA.last.ID, "unregistered stream gets nothing")
	assert.Equal(t, "n2", senderB.last.ID)
}

func TestConnectionHub_SendToOffline(t *testing.T) {
	hub := NewConnectionHub()
	assert.ErrorIs(t, hub.SendToUser("nobody", &v1.Notification{}), errNotConnected)
}

func TestConnectionHub_SendPartialFailure(t *testing.T) {
	hub := NewConnectionHub()

	ok := &fakeSender{}
	bad := &fakeSender{fail: true}
	_ = hub.Register("d", ok)
	_ = hub.Register("d", bad)

	assert.Error(t, hub.SendToUser("d", &v1.Notification{ID: "x"}))
	assert.Equal(t, 1, hub.Connected("d"), "failed stream is dropped")

	require.NoError(t, hub.SendToUser("d", &v1.Notification{ID: "y"}))
	assert.Equal(t, "y", ok.last.ID)
}

func TestConnectionHub_Presence(t *testing.T) {
	var (
		mu     sync.Mutex
		events []bool
	)
	hub := NewConnectionHub()
	hub.presence = func(userID string, online bool) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "u1", userID)
		events = append(events, online)
	}

	a := hub.Register("u1", &fakeSender{})
	b := hub.Register("u1", &fakeSender{})
	hub.Unregister("u1", a)
	hub.Unregister("u1", a)
	hub.Unregister("u1", b)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, events, "only the first open and the last close count")
}

func TestConnectionHub_PresenceUnderChurn(t *testing.T) {
	var (
		mu     sync.Mutex
		events []bool
	)
	hub := NewConnectionHub()
	hub.presence = func(_ string, online bool) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, online)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				id := hub.Register("u1", &fakeSender{})
				hub.Unregister("u1", id)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	for i, online := range events {
		require.Equal(t, i%2 == 0, online, "event %d out of order", i)
	}
	assert.False(t, events[len(events)-1])
	assert.Zero(t, hub.Connected("u1"))
}

func TestConnectionHub_DeliverSink(t *testing.T) {
	hub := NewConnectionHub()
	n := &data.Notification{ID: "n1", RecipientID: "u2", ActorID: "u1", Kind: data.KindNewMessage, Title: "Ana", Body: "hi"}

	assert.NoError(t, hub.Deliver(context.Background(), n), "offline recipient is not an error")

	s := &fakeSender{}
	hub.Register("u2", s)
	require.NoError(t, hub.Deliver(context.Background(), n))
	require.NotNil(t, s.last)
	assert.Equal(t, "new_message", s.last.Kind)
	assert.Equal(t, "hi", s.last.Body)
}

func TestQueuedSenderDropsWhenFull(t *testing.T) {
	q := newQueuedSender(1)
	require.NoError(t, q.Send(&v1.Notification{ID: "1"}))
	assert.ErrorIs(t, q.Send(&v1.Notification{ID: "2"}), errQueueFull)
	assert.ErrorIs(t, q.Send(&v1.Notification{ID: "3"}), errQueueFull)

	select {
	case <-q.dropped:
	default:
		t.Fatal("dropped should be closed after a failed push")
	}
	assert.Equal(t, "1", (<-q.ch).ID)
}
