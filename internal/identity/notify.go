// ABOUTME: Subscriber registry for session-change notifications
// ABOUTME: Fans provider push events out to registered callbacks with unsubscribe handles

package identity

import (
	"sync"

	"github.com/google/uuid"
)

// subscribers is a small fan-out registry for session-change callbacks.
// Callbacks are invoked outside the lock so a subscriber may unsubscribe
// (or re-subscribe) from within its own callback.
type subscribers struct {
	mu  sync.Mutex
	fns map[string]func(*Session)
}

func newSubscribers() *subscribers {
	return &subscribers{fns: make(map[string]func(*Session))}
}

// add registers a callback and returns its unsubscribe function.
// Unsubscribing twice is a no-op.
func (s *subscribers) add(fn func(*Session)) func() {
	id := uuid.New().String()

	s.mu.Lock()
	s.fns[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

// notify invokes every registered callback with the new session value.
func (s *subscribers) notify(sess *Session) {
	s.mu.Lock()
	targets := make([]func(*Session), 0, len(s.fns))
	for _, fn := range s.fns {
		targets = append(targets, fn)
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(sess)
	}
}
