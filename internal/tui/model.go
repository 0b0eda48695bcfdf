// Package tui is the terminal front end: a bubbletea program over the
// application operations.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/todos"
)

// Service is the set of application operations the model drives.
type Service interface {
	NewList(ctx context.Context) (string, error)
	SetTicket(ctx context.Context, ticket string) error
	GetTicket(ctx context.Context) (string, error)
	GetTodos(ctx context.Context) ([]todos.Todo, error)
	NewTodo(ctx context.Context, id, label string) (todos.Todo, error)
	ToggleDone(ctx context.Context, id string) (todos.Todo, error)
	UpdateTodo(ctx context.Context, id, label string) (todos.Todo, error)
	DeleteTodo(ctx context.Context, id string) error
}

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeEdit
	modeJoin
)

type todosLoadedMsg struct {
	items []todos.Todo
	err   error
}

type ticketMsg struct {
	ticket string
	err    error
}

type actionDoneMsg struct {
	err error
}

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	service Service
	styles  *Styles
	keys    KeyMap

	items    []todos.Todo
	selected int
	mode     mode
	input    textinput.Model
	ticket   string
	noList   bool
	err      error
	width    int
}

// NewModel creates a model over service.
func NewModel(ctx context.Context, service Service) *Model {
	ti := textinput.New()
	ti.CharLimit = 512
	return &Model{
		ctx:     ctx,
		service: service,
		styles:  DefaultStyles(),
		keys:    DefaultKeyMap(),
		input:   ti,
	}
}

// Init loads the list.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.GetTodos(m.ctx)
		return todosLoadedMsg{items: items, err: err}
	}
}

func (m *Model) run(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: fn(m.ctx)}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case RefreshMsg:
		return m, m.load()

	case todosLoadedMsg:
		m.noList = errors.Is(msg.err, core.ErrNoActiveList)
		if msg.err != nil {
			m.items = nil
			if !m.noList {
				m.err = msg.err
			}
			return m, nil
		}
		m.items = msg.items
		if m.selected >= len(m.items) {
			m.selected = max(len(m.items)-1, 0)
		}
		return m, nil

	case ticketMsg:
		m.err = msg.err
		m.ticket = msg.ticket
		return m, nil

	case actionDoneMsg:
		m.err = msg.err
		return m, m.load()

	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.items)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.load()
	case key.Matches(msg, m.keys.NewList):
		m.ticket = ""
		return m, m.run(func(ctx context.Context) error {
			_, err := m.service.NewList(ctx)
			return err
		})
	case key.Matches(msg, m.keys.Ticket):
		return m, func() tea.Msg {
			t, err := m.service.GetTicket(m.ctx)
			return ticketMsg{ticket: t, err: err}
		}
	case key.Matches(msg, m.keys.Join):
		return m, m.startInput(modeJoin, "paste a ticket", "")
	case key.Matches(msg, m.keys.Add):
		if m.noList {
			return m, nil
		}
		return m, m.startInput(modeAdd, "what needs doing?", "")
	}

	item, ok := m.current()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Toggle):
		return m, m.run(func(ctx context.Context) error {
			_, err := m.service.ToggleDone(ctx, item.ID)
			return err
		})
	case key.Matches(msg, m.keys.Delete):
		return m, m.run(func(ctx context.Context) error {
			return m.service.DeleteTodo(ctx, item.ID)
		})
	case key.Matches(msg, m.keys.Edit):
		return m, m.startInput(modeEdit, "", item.Label)
	}
	return m, nil
}

func (m *Model) startInput(md mode, placeholder, value string) tea.Cmd {
	m.mode = md
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stopInput()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		md := m.mode
		m.stopInput()
		if value == "" {
			return m, nil
		}
		return m, m.submit(md, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) stopInput() {
	m.mode = modeBrowse
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) submit(md mode, value string) tea.Cmd {
	switch md {
	case modeAdd:
		return m.run(func(ctx context.Context) error {
			_, err := m.service.NewTodo(ctx, "", value)
			return err
		})
	case modeEdit:
		item, ok := m.current()
		if !ok {
			return nil
		}
		return m.run(func(ctx context.Context) error {
			_, err := m.service.UpdateTodo(ctx, item.ID, value)
			return err
		})
	case modeJoin:
		m.ticket = ""
		return m.run(func(ctx context.Context) error {
			return m.service.SetTicket(ctx, value)
		})
	}
	return nil
}

func (m *Model) current() (todos.Todo, bool) {
	if m.selected < 0 || m.selected >= len(m.items) {
		return todos.Todo{}, false
	}
	return m.items[m.selected], true
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("furrow"))
	b.WriteString("\n\n")

	switch {
	case m.noList:
		b.WriteString(m.styles.Muted.Render("No list yet. Press n to start one or J to join with a ticket."))
		b.WriteString("\n")
	case len(m.items) == 0:
		b.WriteString(m.styles.Muted.Render("Nothing to do."))
		b.WriteString("\n")
	}

	for i, item := range m.items {
		check := "[ ]"
		label := item.Label
		if item.Done {
			check = "[x]"
			label = m.styles.Done.Render(label)
		}
		line := fmt.Sprintf("%s %s", check, label)
		if i == m.selected {
			line = m.styles.Selected.Render(fmt.Sprintf("%s %s", check, item.Label))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.mode != modeBrowse {
		b.WriteString("\n")
		b.WriteString(m.styles.Input.Render(m.input.View()))
		b.WriteString("\n")
	}
	if m.ticket != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("ticket: "))
		b.WriteString(m.ticket)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := make([]string, 0, len(m.keys.ShortHelp()))
	for _, k := range m.keys.ShortHelp() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(m.styles.Help.Render(strings.Join(help, " • ")))
	return b.String()
}

// Run starts the program on the terminal and blocks until it exits or ctx is done.
func Run(ctx context.Context, service Service, sink *Sink) error {
	p := tea.NewProgram(NewModel(ctx, service), tea.WithAltScreen(), tea.WithContext(ctx))
	if sink != nil {
		sink.Attach(p)
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
