// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Loading layers a YAML file and SCORECAST_* env vars over the defaults.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UpdateKey is the shared secret the scoring engine sends with each
	// update. Empty denies every update.
	UpdateKey string `koanf:"update_key"`

	// FanoutWorkers sets the number of fan-out shards, one worker each.
	FanoutWorkers int `koanf:"fanout_workers"`

	// FanoutQueueSize bounds each shard's fan-out queue.
	FanoutQueueSize int `koanf:"fanout_queue_size"`

	// AllowedOrigins is a comma separated list of origins allowed to open a
	// display socket. Empty allows any origin.
	AllowedOrigins string `koanf:"allowed_origins"`

	// WSWriteTimeoutMS bounds a single frame write to a display.
	WSWriteTimeoutMS int `koanf:"ws_write_timeout_ms"`

	// WSPingIntervalMS sets how often idle displays are pinged.
	WSPingIntervalMS int `koanf:"ws_ping_interval_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":8080",
		FanoutWorkers:    runtime.NumCPU(),
		FanoutQueueSize:  1024,
		WSWriteTimeoutMS: 5_000,
		WSPingIntervalMS: 30_000,
	}
}

// Origins returns AllowedOrigins split into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// WriteTimeout returns WSWriteTimeoutMS as a duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutMS) * time.Millisecond
}

// PingInterval returns WSPingIntervalMS as a duration.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.WSPingIntervalMS) * time.Millisecond
}
