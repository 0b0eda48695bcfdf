package replica

import "log/slog"

const (
	DefaultListenAddr  = "127.0.0.1:0"
	DefaultEventBuffer = 64
)

// Config holds the configuration for a replica node.
type Config struct {
	DataDir     string
	ListenAddr  string   // host:port to accept peers on; DefaultListenAddr if empty
	Advertise   []string // addresses put in tickets; the listener address if empty
	EventBuffer int      // per-subscriber buffer; DefaultEventBuffer if zero
	Logger      *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
