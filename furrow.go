package furrow

import (
	"context"
	"log/slog"

	"github.com/aretw0/furrow/internal/platform"
	"github.com/aretw0/furrow/pkg/core"
)

// --- Types ---

// App is the running application: one replica node and the active list.
type App = platform.App

// Config is the on-disk configuration.
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for configuring furrow.
type Option = platform.Option

// WithConfig applies a loaded configuration file.
func WithConfig(cfg Config) Option {
	return platform.WithConfig(cfg)
}

// WithDataDir sets the directory holding the node store.
func WithDataDir(dir string) Option {
	return platform.WithDataDir(dir)
}

// WithListenAddr sets the address peers connect to.
func WithListenAddr(addr string) Option {
	return platform.WithListenAddr(addr)
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithSink sets where update-all notifications are delivered.
func WithSink(sink core.Sink) Option {
	return platform.WithSink(sink)
}

// WithConfigWatch keeps level in sync with the log_level of the config file at path.
func WithConfigWatch(path string, level *slog.LevelVar) Option {
	return platform.WithConfigWatch(path, level)
}

// WithDevSafety controls the temporary data directory used by `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Lifecycle ---

// Setup opens the local node and returns the application.
func Setup(ctx context.Context, opts ...Option) (*App, error) {
	return platform.Setup(ctx, opts...)
}

// LoadConfig reads a YAML config file. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() (string, error) {
	return platform.DefaultConfigPath()
}
