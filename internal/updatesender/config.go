// Package updatesender posts competition updates to a running broadcaster,
// standing in for the scoring engine during rehearsals and load tests.
package updatesender

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid sender config")
	ErrInvalidField  = errors.New("invalid field; want key=value")
)

// Config holds configuration for one sending run.
type Config struct {
	BaseURL  string        // Base URL of the broadcaster
	Key      string        // Shared update secret
	Count    int           // Number of updates to send
	Interval time.Duration // Pause between dispatching updates
	Workers  int           // Number of concurrent senders
	Timeout  time.Duration // HTTP request timeout
	Fields   Fields        // Extra update fields sent with every update
	Verbose  bool          // Log every response
}

func (c *Config) validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return fmt.Errorf("%w: url must not be empty", ErrInvalidConfig)
	case c.Count < 1:
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidConfig, c.Count)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.Interval < 0:
		return fmt.Errorf("%w: interval must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Stats holds the outcome of a run.
type Stats struct {
	Sent      int
	Accepted  int
	Denied    int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Fields collects repeated -field key=value flags. It implements flag.Value.
type Fields map[string]string

// String implements flag.Value.
func (f Fields) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (f Fields) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("%w: %q", ErrInvalidField, s)
	}
	f[k] = v
	return nil
}
