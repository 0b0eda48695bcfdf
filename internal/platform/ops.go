package platform

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/lifecycle"

	docevents "github.com/aretw0/furrow/pkg/adapters/lifecycle"
	"github.com/aretw0/furrow/pkg/adapters/replica"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/todos"
)

// NewList creates a fresh list and makes it the active one.
// It returns the new list id.
func (a *App) NewList(ctx context.Context) (string, error) {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()

	doc, err := a.node.CreateDocument(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: creating list: %v", core.ErrSetup, err)
	}
	if err := a.install(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID(), nil
}

// OpenList reopens a list stored on this node and makes it the active one.
func (a *App) OpenList(ctx context.Context, id string) error {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()

	doc, err := a.node.OpenDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("opening list %s: %w", id, err)
	}
	return a.install(ctx, doc)
}

// SetTicket joins the list named by ticket and makes it the active one.
func (a *App) SetTicket(ctx context.Context, ticket string) error {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()

	t, err := replica.ParseTicket(ticket)
	if err != nil {
		return err
	}
	doc, err := a.node.JoinDocument(ctx, t)
	if err != nil {
		return fmt.Errorf("%w: joining list %s: %v", core.ErrSetup, t.Doc, err)
	}
	return a.install(ctx, doc)
}

func (a *App) install(ctx context.Context, doc core.Document) error {
	if err := a.manager.Install(ctx, a.sink, doc); err != nil {
		if errors.Is(err, core.ErrSubscription) {
			return fmt.Errorf("%w: %w", core.ErrSetup, err)
		}
		return err
	}
	return nil
}

// release closes a list that is no longer active, dropping its peer connections.
func (a *App) release(doc core.Document) {
	c, ok := doc.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		a.logger.Warn("releasing list", "list", doc.ID(), "error", err)
		return
	}
	a.logger.Debug("released list", "list", doc.ID())
}

// Events returns a lifecycle source carrying the raw events of the active list.
// The source ends when the list is replaced or ctx passed to Start is done.
func (a *App) Events(ctx context.Context) (lifecycle.Source, error) {
	doc, err := a.manager.Document()
	if err != nil {
		return nil, err
	}
	sub, err := doc.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", core.ErrSubscription, doc.ID(), err)
	}
	return docevents.NewSource(sub), nil
}

// GetTicket returns a join ticket for the active list.
func (a *App) GetTicket(ctx context.Context) (string, error) {
	list, err := a.list()
	if err != nil {
		return "", err
	}
	return list.Ticket(ctx)
}

// GetTodos returns the live items of the active list.
func (a *App) GetTodos(ctx context.Context) ([]todos.Todo, error) {
	list, err := a.list()
	if err != nil {
		return nil, err
	}
	return list.All(ctx)
}

// NewTodo adds an item to the active list. The id is generated when empty.
func (a *App) NewTodo(ctx context.Context, id, label string) (todos.Todo, error) {
	list, err := a.list()
	if err != nil {
		return todos.Todo{}, err
	}
	return list.Add(ctx, id, label)
}

// ToggleDone flips the done flag of an item.
func (a *App) ToggleDone(ctx context.Context, id string) (todos.Todo, error) {
	list, err := a.list()
	if err != nil {
		return todos.Todo{}, err
	}
	return list.Toggle(ctx, id)
}

// UpdateTodo changes the label of an item.
func (a *App) UpdateTodo(ctx context.Context, id, label string) (todos.Todo, error) {
	list, err := a.list()
	if err != nil {
		return todos.Todo{}, err
	}
	return list.Update(ctx, id, label)
}

// DeleteTodo removes an item.
func (a *App) DeleteTodo(ctx context.Context, id string) error {
	list, err := a.list()
	if err != nil {
		return err
	}
	return list.Delete(ctx, id)
}

// list returns the active list or core.ErrNoActiveList.
func (a *App) list() (*todos.List, error) {
	doc, err := a.manager.Document()
	if err != nil {
		return nil, err
	}
	return todos.New(doc), nil
}
