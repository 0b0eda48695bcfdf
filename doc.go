// Package furrow is the composition root for the furrow application: a
// shared to-do list replicated between peers.
//
// It wires a local replica node (pkg/adapters/replica) to the session manager
// (pkg/session), which keeps at most one list active and forwards its change
// events to the UI layer as "update-all" notifications.
//
// Usage:
//
//	app, err := furrow.Setup(ctx,
//		furrow.WithDataDir("./lists"),
//		furrow.WithSink(sink),
//	)
//	if err != nil {
//		return err
//	}
//	defer app.Close(ctx)
//
//	if _, err := app.NewList(ctx); err != nil {
//		return err
//	}
//	_, err = app.NewTodo(ctx, "", "buy milk")
package furrow
