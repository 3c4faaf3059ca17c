package main

import (
	"context"
	"errors"
	"sync"

	v1 "github.com/PaulBabatuyi/resonance/api/v1"
	"github.com/PaulBabatuyi/resonance/internal/data"
)

// errNotConnected is returned by SendToUser when the user has no open stream.
var errNotConnected = errors.New("user not connected")

// StreamSender is what the hub needs from a connection: the ability to push
// a notification to the client.
type StreamSender interface {
	Send(*v1.Notification) error
}

// ConnectionHub tracks the open notification streams of every user. A user
// may hold several connections (phone and tablet); each gets every push.
type ConnectionHub struct {
	mu      sync.RWMutex
	streams map[string]map[int64]StreamSender
	nextID  int64

	// presence, if set, is called when a user's first stream opens and when
	// their last one closes. presenceMu orders the calls with the stream
	// count changes that trigger them.
	presence   func(userID string, online bool)
	presenceMu sync.Mutex
}

// NewConnectionHub creates a new hub instance.
func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{streams: make(map[string]map[int64]StreamSender)}
}

// Register adds a stream for userID and returns the id to unregister it with.
func (h *ConnectionHub) Register(userID string, s StreamSender) int64 {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	h.mu.Lock()
	conns, ok := h.streams[userID]
	if !ok {
		conns = make(map[int64]StreamSender)
		h.streams[userID] = conns
	}
	h.nextID++
	id := h.nextID
	conns[id] = s
	first := len(conns) == 1
	h.mu.Unlock()

	if first && h.presence != nil {
		h.presence(userID, true)
	}
	return id
}

// Unregister removes a stream. Unknown ids are ignored.
func (h *ConnectionHub) Unregister(userID string, id int64) {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	h.mu.Lock()
	conns, ok := h.streams[userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := conns[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, id)
	last := len(conns) == 0
	if last {
		delete(h.streams, userID)
	}
	h.mu.Unlock()

	if last && h.presence != nil {
		h.presence(userID, false)
	}
}

// Connected reports how many streams userID holds.
func (h *ConnectionHub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[userID])
}

// SendToUser pushes n to every stream of userID. Streams that fail are
// dropped from the hub; the first error is returned.
func (h *ConnectionHub) SendToUser(userID string, n *v1.Notification) error {
	h.mu.RLock()
	targets := make(map[int64]StreamSender, len(h.streams[userID]))
	for id, s := range h.streams[userID] {
		targets[id] = s
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return errNotConnected
	}

	var firstErr error
	for id, s := range targets {
		if err := s.Send(n); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			h.Unregister(userID, id)
		}
	}
	return firstErr
}

// Deliver implements notify.Sink. Offline users are not an error; the
// notification is still persisted by the store sink.
func (h *ConnectionHub) Deliver(_ context.Context, n *data.Notification) error {
	err := h.SendToUser(n.RecipientID, toNotification(n))
	if errors.Is(err, errNotConnected) {
		return nil
	}
	return err
}

// queuedSender decouples hub pushes from the gRPC stream: the hub enqueues,
// the stream handler goroutine drains and sends. A full queue fails the push,
// the hub drops the connection and dropped is closed so the handler can end
// the stream.
type queuedSender struct {
	ch      chan *v1.Notification
	dropped chan struct{}
	once    sync.Once
}

var errQueueFull = errors.New("notification stream is not keeping up")

func newQueuedSender(size int) *queuedSender {
	return &queuedSender{
		ch:      make(chan *v1.Notification, size),
		dropped: make(chan struct{}),
	}
}

func (q *queuedSender) Send(n *v1.Notification) error {
	select {
	case q.ch <- n:
		return nil
	default:
		q.once.Do(func() { close(q.dropped) })
		return errQueueFull
	}
}
