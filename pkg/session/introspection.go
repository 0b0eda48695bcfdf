package session

import (
	"time"

	"github.com/aretw0/introspection"
)

// ManagerState exposes internal state for observability.
type ManagerState struct {
	Active        bool       `json:"active"`
	DocumentID    string     `json:"document_id,omitempty"`
	Installed     *time.Time `json:"installed,omitempty"`
	Outcome       string     `json:"outcome,omitempty"`
	Notifications int        `json:"notifications"`
	Installs      int        `json:"installs"`
	Retired       int        `json:"retired"`
	Closed        bool       `json:"closed"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := ManagerState{
		Installs: m.installs,
		Retired:  m.retired,
		Closed:   m.closed,
	}
	if m.current != nil {
		installed := m.current.installed
		outcome, notified := m.current.worker.snapshot()
		st.Active = true
		st.DocumentID = m.current.doc.ID()
		st.Installed = &installed
		st.Outcome = outcome.String()
		st.Notifications = notified
	}
	return st
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "session-manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
