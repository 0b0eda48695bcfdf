package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aretw0/furrow/pkg/core"
)

// RefreshMsg asks the model to re-fetch the list. It is what an
// update-all notification becomes inside the program.
type RefreshMsg struct{}

// Sink turns notifications into RefreshMsg for a running program.
// Notifications that arrive before Attach are dropped; the model loads the
// list on start anyway.
type Sink struct {
	program atomic.Pointer[tea.Program]
}

// Attach binds the sink to p.
func (s *Sink) Attach(p *tea.Program) {
	s.program.Store(p)
}

// Emit implements core.Sink. It never blocks the caller.
func (s *Sink) Emit(name string) {
	if name != core.NotifyUpdateAll {
		return
	}
	p := s.program.Load()
	if p == nil {
		return
	}
	go p.Send(RefreshMsg{})
}

var _ core.Sink = (*Sink)(nil)
