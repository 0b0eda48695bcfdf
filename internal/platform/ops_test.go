package platform_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/internal/platform"
	"github.com/aretw0/furrow/pkg/adapters/replica"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/session"
)

type countingSink struct {
	n atomic.Int64
}

func (s *countingSink) Emit(name string) {
	if name == core.NotifyUpdateAll {
		s.n.Add(1)
	}
}

func openApp(t *testing.T, dir string, sink core.Sink) *platform.App {
	t.Helper()
	app, err := platform.Setup(context.Background(),
		platform.WithDataDir(dir),
		platform.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		platform.WithSink(sink),
	)
	require.NoError(t, err)
	return app
}

func closeApp(t *testing.T, app *platform.App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, app.Close(ctx))
}

func setupApp(t *testing.T, sink core.Sink) *platform.App {
	t.Helper()
	app := openApp(t, t.TempDir(), sink)
	t.Cleanup(func() { closeApp(t, app) })
	return app
}

// listState returns the node's view of list id, if it is open.
func listState(app *platform.App, id string) (replica.DocState, bool) {
	for _, d := range app.Node().State().(replica.NodeState).Documents {
		if d.ID == id {
			return d, true
		}
	}
	return replica.DocState{}, false
}

func TestApp_NoActiveList(t *testing.T) {
	app := setupApp(t, nil)
	ctx := context.Background()

	_, err := app.GetTodos(ctx)
	assert.ErrorIs(t, err, core.ErrNoActiveList)
	_, err = app.GetTicket(ctx)
	assert.ErrorIs(t, err, core.ErrNoActiveList)
	_, err = app.NewTodo(ctx, "", "milk")
	assert.ErrorIs(t, err, core.ErrNoActiveList)
	assert.ErrorIs(t, app.DeleteTodo(ctx, "x"), core.ErrNoActiveList)
}

func TestApp_TodoLifecycle(t *testing.T) {
	sink := &countingSink{}
	app := setupApp(t, sink)
	ctx := context.Background()

	id, err := app.NewList(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	milk, err := app.NewTodo(ctx, "", "milk")
	require.NoError(t, err)
	_, err = app.NewTodo(ctx, "", "eggs")
	require.NoError(t, err)

	toggled, err := app.ToggleDone(ctx, milk.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Done)

	updated, err := app.UpdateTodo(ctx, milk.ID, "oat milk")
	require.NoError(t, err)
	assert.Equal(t, "oat milk", updated.Label)
	assert.True(t, updated.Done)

	items, err := app.GetTodos(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.ElementsMatch(t, []string{"oat milk", "eggs"}, []string{items[0].Label, items[1].Label})

	require.NoError(t, app.DeleteTodo(ctx, milk.ID))
	items, err = app.GetTodos(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// five local writes, five notifications
	require.Eventually(t, func() bool { return sink.n.Load() == 5 }, 5*time.Second, 10*time.Millisecond)

	st := app.State().(platform.AppState)
	sess := st.Session.(session.ManagerState)
	assert.Equal(t, id, sess.DocumentID)
	assert.Equal(t, 5, sess.Notifications)
}

func TestApp_NewListReplacesSession(t *testing.T) {
	app := setupApp(t, nil)
	ctx := context.Background()

	first, err := app.NewList(ctx)
	require.NoError(t, err)
	_, err = app.NewTodo(ctx, "", "first list item")
	require.NoError(t, err)

	second, err := app.NewList(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	items, err := app.GetTodos(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, app.OpenList(ctx, first))
	items, err = app.GetTodos(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	st := app.Manager().State().(session.ManagerState)
	assert.Equal(t, 3, st.Installs)
	assert.Equal(t, 2, st.Retired)
}

func TestApp_SetTicketInvalid(t *testing.T) {
	app := setupApp(t, nil)
	ctx := context.Background()

	id, err := app.NewList(ctx)
	require.NoError(t, err)

	err = app.SetTicket(ctx, "not a ticket")
	assert.ErrorIs(t, err, core.ErrInvalidTicket)

	doc, err := app.Manager().Document()
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID())
}

func TestApp_SyncBetweenApps(t *testing.T) {
	ctx := context.Background()
	alice := setupApp(t, nil)
	bobSink := &countingSink{}
	bob := setupApp(t, bobSink)

	_, err := alice.NewList(ctx)
	require.NoError(t, err)
	_, err = alice.NewTodo(ctx, "", "shared")
	require.NoError(t, err)

	ticket, err := alice.GetTicket(ctx)
	require.NoError(t, err)
	require.NoError(t, bob.SetTicket(ctx, ticket))

	require.Eventually(t, func() bool {
		items, err := bob.GetTodos(ctx)
		return err == nil && len(items) == 1 && items[0].Label == "shared"
	}, 5*time.Second, 20*time.Millisecond)

	// and back the other way
	_, err = bob.NewTodo(ctx, "", "reply")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		items, err := alice.GetTodos(ctx)
		return err == nil && len(items) == 2
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return bobSink.n.Load() > 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestApp_SwitchingListsReleasesPrevious(t *testing.T) {
	ctx := context.Background()
	alice := setupApp(t, nil)
	bob := setupApp(t, nil)

	shared, err := alice.NewList(ctx)
	require.NoError(t, err)
	_, err = alice.NewTodo(ctx, "", "shared")
	require.NoError(t, err)
	ticket, err := alice.GetTicket(ctx)
	require.NoError(t, err)

	require.NoError(t, bob.SetTicket(ctx, ticket))
	require.Eventually(t, func() bool {
		d, ok := listState(bob, shared)
		return ok && len(d.Peers) == 1
	}, 5*time.Second, 20*time.Millisecond)

	own, err := bob.NewList(ctx)
	require.NoError(t, err)

	_, open := listState(bob, shared)
	assert.False(t, open, "replaced list should be closed")
	_, open = listState(bob, own)
	assert.True(t, open)

	require.Eventually(t, func() bool {
		d, ok := listState(alice, shared)
		return ok && len(d.Peers) == 0
	}, 5*time.Second, 20*time.Millisecond)

	// Later writes to the shared list no longer reach bob's active list.
	_, err = alice.NewTodo(ctx, "", "after switch")
	require.NoError(t, err)
	items, err := bob.GetTodos(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestApp_OpenListAfterRestartResumesSync(t *testing.T) {
	ctx := context.Background()
	alice := setupApp(t, nil)
	bobDir := t.TempDir()

	shared, err := alice.NewList(ctx)
	require.NoError(t, err)
	_, err = alice.NewTodo(ctx, "", "before")
	require.NoError(t, err)
	ticket, err := alice.GetTicket(ctx)
	require.NoError(t, err)

	bob := openApp(t, bobDir, nil)
	require.NoError(t, bob.SetTicket(ctx, ticket))
	require.Eventually(t, func() bool {
		items, err := bob.GetTodos(ctx)
		return err == nil && len(items) == 1
	}, 5*time.Second, 20*time.Millisecond)
	closeApp(t, bob)
	require.Eventually(t, func() bool {
		d, ok := listState(alice, shared)
		return ok && len(d.Peers) == 0
	}, 5*time.Second, 20*time.Millisecond)

	_, err = alice.NewTodo(ctx, "", "while away")
	require.NoError(t, err)

	bob = openApp(t, bobDir, nil)
	t.Cleanup(func() { closeApp(t, bob) })
	require.NoError(t, bob.OpenList(ctx, shared))

	require.Eventually(t, func() bool {
		items, err := bob.GetTodos(ctx)
		return err == nil && len(items) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestApp_Events(t *testing.T) {
	app := setupApp(t, nil)
	ctx := context.Background()

	_, err := app.Events(ctx)
	assert.ErrorIs(t, err, core.ErrNoActiveList)

	_, err = app.NewList(ctx)
	require.NoError(t, err)
	src, err := app.Events(ctx)
	require.NoError(t, err)
	require.NoError(t, src.Start(ctx))

	_, err = app.NewTodo(ctx, "", "milk")
	require.NoError(t, err)
	select {
	case ev, ok := <-src.Events():
		require.True(t, ok)
		assert.Contains(t, ev.String(), "InsertLocal")
	case <-time.After(5 * time.Second):
		t.Fatal("no event from the active list")
	}

	// Replacing the list ends its stream.
	_, err = app.NewList(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-src.Events():
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
