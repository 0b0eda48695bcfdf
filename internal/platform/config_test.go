package platform

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing File", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Config{}, cfg)
	})

	t.Run("Valid File", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/furrow
listen_addr: 0.0.0.0:4919
advertise: [lists.example.org:4919]
log_level: debug
event_buffer: 128
`), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, Config{
			DataDir:     "/srv/furrow",
			ListenAddr:  "0.0.0.0:4919",
			Advertise:   []string{"lists.example.org:4919"},
			LogLevel:    "debug",
			EventBuffer: 128,
		}, cfg)
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("data_dir: [unterminated"), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("Negative Buffer", func(t *testing.T) {
		path := filepath.Join(dir, "negative.yaml")
		require.NoError(t, os.WriteFile(path, []byte("event_buffer: -1"), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestConfig_Merge(t *testing.T) {
	base := Config{DataDir: "a", ListenAddr: "b", LogLevel: "info"}
	got := base.Merge(Config{ListenAddr: "c", EventBuffer: 8})
	assert.Equal(t, Config{DataDir: "a", ListenAddr: "c", LogLevel: "info", EventBuffer: 8}, got)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		err  bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{" WARN ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"chatty", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWatchConfig_ReloadsLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := watchConfig(ctx, path, level, logger)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, slog.LevelDebug, level.Level(), "initial load")

	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))
	require.Eventually(t, func() bool {
		return level.Level() == slog.LevelWarn
	}, 5*time.Second, 20*time.Millisecond)

	// a broken file keeps the last good level
	require.NoError(t, os.WriteFile(path, []byte("log_level: chatty\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, slog.LevelWarn, level.Level())
}
