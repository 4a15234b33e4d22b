package config

import (
	"context"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "SCORECAST_"
	envConfigPath = "SCORECAST_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SCORECAST_CONFIG is set
//  3. env (prefix SCORECAST_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrap(ErrLoadConfig, err)
		}
	}

	// SCORECAST_FANOUT_WORKERS -> fanout_workers. Keys stay flat so the
	// underscores match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, wrap(ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, wrap(ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot run the service.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.FanoutWorkers <= 0:
		return invalid("fanout_workers must be positive, got %d", c.FanoutWorkers)
	case c.FanoutQueueSize <= 0:
		return invalid("fanout_queue_size must be positive, got %d", c.FanoutQueueSize)
	case c.WSWriteTimeoutMS <= 0:
		return invalid("ws_write_timeout_ms must be positive, got %d", c.WSWriteTimeoutMS)
	case c.WSPingIntervalMS <= 0:
		return invalid("ws_ping_interval_ms must be positive, got %d", c.WSPingIntervalMS)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
