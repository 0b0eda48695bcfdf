package replica

import (
	"sync"

	"github.com/aretw0/furrow/pkg/core"
)

// subscription is one consumer of a document's event stream. Delivery and
// termination happen under the owning Doc's subMu, so the channel is never
// written after it is closed.
type subscription struct {
	events chan core.Event
	doc    *Doc

	mu    sync.Mutex
	ended bool
	err   error
}

var _ core.Subscription = (*subscription)(nil)

func (s *subscription) Events() <-chan core.Event { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.doc.unsubscribe(s)
	return nil
}

// deliver must be called with doc.subMu held.
func (s *subscription) deliver(ev core.Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// end must be called with doc.subMu held.
func (s *subscription) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.events)
}
