package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk application configuration.
type Config struct {
	DataDir     string   `yaml:"data_dir,omitempty"`
	ListenAddr  string   `yaml:"listen_addr,omitempty"`
	Advertise   []string `yaml:"advertise,omitempty"`
	LogLevel    string   `yaml:"log_level,omitempty"`
	EventBuffer int      `yaml:"event_buffer,omitempty"`
}

// LoadConfig reads a YAML config file. A missing file yields the zero Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.EventBuffer < 0 {
		return cfg, fmt.Errorf("parsing config %s: event_buffer must not be negative", path)
	}
	return cfg, nil
}

// Merge returns c with every non-zero field of override applied on top.
func (c Config) Merge(override Config) Config {
	if override.DataDir != "" {
		c.DataDir = override.DataDir
	}
	if override.ListenAddr != "" {
		c.ListenAddr = override.ListenAddr
	}
	if len(override.Advertise) > 0 {
		c.Advertise = override.Advertise
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.EventBuffer != 0 {
		c.EventBuffer = override.EventBuffer
	}
	return c
}

// ParseLevel maps "debug", "info", "warn" or "error" to a slog level.
// The empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
