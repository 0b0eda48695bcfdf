// Package session owns the active replicated document and the background
// worker that bridges its event stream to UI notifications.
//
// At most one session is recorded at a time. Installing a new one cancels the
// previous worker without waiting for it, so for a short window the retiring
// worker may still deliver a notification after the new session is live.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/furrow/pkg/core"
)

// Session pairs an active document with the worker draining its events.
type Session struct {
	doc       core.Document
	worker    *bridgeWorker
	installed time.Time
}

// Document returns the session's document.
func (s *Session) Document() core.Document { return s.doc }

// Installed returns when the session was installed.
func (s *Session) Installed() time.Time { return s.installed }

// Done is closed once the session's worker has stopped.
func (s *Session) Done() <-chan struct{} { return s.worker.done }

// Outcome returns the worker state; OutcomeRunning until it stops.
func (s *Session) Outcome() Outcome {
	o, _ := s.worker.snapshot()
	return o
}

// Err returns the stream fault that stopped the worker, if any.
func (s *Session) Err() error {
	s.worker.mu.Lock()
	defer s.worker.mu.Unlock()
	return s.worker.err
}

// Notifications returns how many update-all signals the worker has emitted.
func (s *Session) Notifications() int {
	_, n := s.worker.snapshot()
	return n
}

// Manager holds the single active session.
type Manager struct {
	mu      sync.Mutex
	current *Session
	closed  bool

	installs int
	retired  int

	// ctx bounds every worker; it is cancelled by Close.
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	release func(core.Document)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and its workers.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRelease sets a hook that receives the document of a replaced session
// once the new session is live. It is not called when the same document is
// installed again.
func WithRelease(release func(core.Document)) Option {
	return func(m *Manager) {
		m.release = release
	}
}

// NewManager creates a Manager with no active session.
func NewManager(opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		ctx:    ctx,
		cancel: cancel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Install makes doc the active document.
//
// It subscribes to doc, starts a worker that forwards notifications to sink,
// then swaps the session slot, cancelling the previous worker if there was one.
// The previous worker is not awaited; its document is handed to the release
// hook, if one is set. If the subscription cannot be opened the error wraps
// core.ErrSubscription and the current session is left untouched.
func (m *Manager) Install(ctx context.Context, sink core.Sink, doc core.Document) error {
	if m.isClosed() {
		return fmt.Errorf("session manager: %w", core.ErrClosed)
	}

	sub, err := doc.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("%w: document %s: %v", core.ErrSubscription, doc.ID(), err)
	}

	w := newBridgeWorker(doc.ID(), sub, sink, m.logger)
	if err := w.Start(m.ctx); err != nil {
		_ = sub.Close()
		if m.ctx.Err() != nil {
			return fmt.Errorf("session manager: %w", core.ErrClosed)
		}
		return fmt.Errorf("%w: document %s: start worker: %v", core.ErrSubscription, doc.ID(), err)
	}

	next := &Session{doc: doc, worker: w, installed: time.Now()}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		w.retire()
		return fmt.Errorf("session manager: %w", core.ErrClosed)
	}
	prev := m.current
	if prev != nil {
		prev.worker.retire()
		m.retired++
	}
	m.current = next
	m.installs++
	m.mu.Unlock()

	if prev != nil {
		m.logger.Info("replaced active document", "previous", prev.doc.ID(), "doc", doc.ID())
		if m.release != nil && prev.doc.ID() != doc.ID() {
			m.release(prev.doc)
		}
	} else {
		m.logger.Info("installed active document", "doc", doc.ID())
	}
	return nil
}

// Current returns the active session, if any.
func (m *Manager) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Document returns the active document or core.ErrNoActiveList.
func (m *Manager) Document() (core.Document, error) {
	s, ok := m.Current()
	if !ok {
		return nil, core.ErrNoActiveList
	}
	return s.doc, nil
}

// Close cancels the active worker and waits for it to stop or for ctx to expire.
// Further Install calls fail with core.ErrClosed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cur := m.current
	m.mu.Unlock()

	m.cancel()
	if cur == nil {
		return nil
	}
	select {
	case <-cur.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for live events worker: %w", ctx.Err())
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
