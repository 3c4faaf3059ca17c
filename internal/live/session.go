package live

import (
	"context"
	"sync"
)

// Session owns the lifetime of one running actor goroutine. Restart stops
// the previous actor and waits for it before starting the next, so updates
// can never leak from one user's context into another's.
type Session struct {
	// ops serialises Restart and Stop against each other.
	ops    sync.Mutex
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	gen    uint64
}

// Restart stops any running actor and starts run in a new goroutine. run
// receives the generation it belongs to; Current reports whether that
// generation is still the active one.
func (s *Session) Restart(parent context.Context, run func(ctx context.Context, gen uint64)) uint64 {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		run(ctx, gen)
	}()

	return gen
}

// Stop cancels the running actor, if any, and waits for it to return.
func (s *Session) Stop() {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.stop()
}

func (s *Session) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	// bump so a stopped actor fails Current even before it observes ctx
	s.gen++
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Current reports whether gen is the generation of the running actor.
func (s *Session) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil && s.gen == gen
}

// Running reports whether an actor is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
