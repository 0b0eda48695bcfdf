package platform

import (
	"log/slog"

	"github.com/aretw0/furrow/pkg/core"
)

// options holds the internal configuration for the application.
type options struct {
	config     Config
	logger     *slog.Logger
	sink       core.Sink
	configPath string
	level      *slog.LevelVar
	devSafety  bool
}

// Option defines a functional option for configuring the application.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:    nil,
		sink:      nil,
		devSafety: true,
	}
}

// WithConfig applies a loaded configuration. Later options override it.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = o.config.Merge(cfg)
	}
}

// WithDataDir sets the directory holding the node store.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.config.DataDir = dir
	}
}

// WithListenAddr sets the address peers connect to.
func WithListenAddr(addr string) Option {
	return func(o *options) {
		o.config.ListenAddr = addr
	}
}

// WithEventBuffer sets the per-subscriber event buffer of the node.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config.EventBuffer = size
	}
}

// WithLogger sets the logger for the application.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSink sets where update-all notifications go.
// Without one, notifications are only logged.
func WithSink(sink core.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithConfigWatch reloads log_level from path into level whenever the file changes.
func WithConfigWatch(path string, level *slog.LevelVar) Option {
	return func(o *options) {
		o.configPath = path
		o.level = level
	}
}

// WithDevSafety controls whether `go run` / `go test` binaries are redirected
// to a temporary data directory. Enabled by default.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}
