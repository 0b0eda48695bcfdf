package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/furrow/pkg/adapters/replica"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/session"
)

// App is the process-wide application state: one replica node and the
// session manager that tracks the active list.
type App struct {
	node    *replica.Node
	manager *session.Manager
	sink    core.Sink
	logger  *slog.Logger
	watcher *configWatcher
	cancel  context.CancelFunc

	// switchMu serializes list changes so a released list is never reinstalled mid-close.
	switchMu sync.Mutex
}

// Setup brings up the node and the session manager.
//
//	app, err := platform.Setup(ctx, platform.WithDataDir(dir), platform.WithSink(sink))
func Setup(ctx context.Context, opts ...Option) (*App, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	dataDir, err := ResolveDataDir(o.config.DataDir, o.devSafety && IsDevRun())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSetup, err)
	}
	if dataDir != o.config.DataDir && o.config.DataDir != "" {
		logger.Warn("development run, using temporary data directory", "requested", o.config.DataDir, "path", dataDir)
	}

	node, err := replica.Open(ctx, replica.Config{
		DataDir:     dataDir,
		ListenAddr:  o.config.ListenAddr,
		Advertise:   o.config.Advertise,
		EventBuffer: o.config.EventBuffer,
		Logger:      logger.With("component", "replica"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening node in %s: %v", core.ErrSetup, dataDir, err)
	}

	sink := o.sink
	if sink == nil {
		sink = core.SinkFunc(func(name string) {
			logger.Debug("notification", "name", name)
		})
	}

	runCtx, cancel := context.WithCancel(context.Background())
	app := &App{
		node:   node,
		sink:   sink,
		logger: logger,
		cancel: cancel,
	}
	app.manager = session.NewManager(
		session.WithLogger(logger.With("component", "session")),
		session.WithRelease(app.release),
	)

	if o.configPath != "" && o.level != nil {
		w, err := watchConfig(runCtx, o.configPath, o.level, logger)
		if err != nil {
			logger.Warn("config file will not be watched", "path", o.configPath, "error", err)
		} else {
			app.watcher = w
		}
	}

	logger.Info("node ready", "node", node.ID(), "addr", node.Addr(), "data_dir", dataDir)
	return app, nil
}

// Node returns the replica node.
func (a *App) Node() *replica.Node { return a.node }

// Manager returns the session manager.
func (a *App) Manager() *session.Manager { return a.manager }

// Close stops the active session, then the node.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.manager.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	a.cancel()
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.node.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AppState aggregates the state of the node and the session manager.
type AppState struct {
	Node    any `json:"node"`
	Session any `json:"session"`
}

// State implements introspection.Introspectable.
func (a *App) State() any {
	return AppState{
		Node:    a.node.State(),
		Session: a.manager.State(),
	}
}

// ComponentType implements introspection.Component.
func (a *App) ComponentType() string {
	return "app"
}

var _ introspection.Introspectable = (*App)(nil)
var _ introspection.Component = (*App)(nil)
