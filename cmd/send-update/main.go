package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/scorecast/internal/updatesender"
	"github.com/okian/scorecast/pkg/logger"
)

// Default configuration constants.
const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
)

func main() {
	fields := updatesender.Fields{}
	var (
		baseURL  = flag.String("url", defaultBaseURL, "Base URL of the broadcaster")
		key      = flag.String("key", os.Getenv("SCORECAST_UPDATE_KEY"), "Shared update secret")
		count    = flag.Int("count", 1, "Number of updates to send")
		interval = flag.Duration("interval", 0, "Pause between updates")
		workers  = flag.Int("workers", 1, "Number of concurrent senders")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Log every accepted update")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Var(fields, "field", "Update field key=value; repeatable")
	flag.Parse()

	if *help {
		updatesender.ShowHelp(os.Stdout)
		return
	}

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := updatesender.Run(ctx, &updatesender.Config{
		BaseURL:  *baseURL,
		Key:      *key,
		Count:    *count,
		Interval: *interval,
		Workers:  *workers,
		Timeout:  *timeout,
		Fields:   fields,
		Verbose:  *verbose,
	})
	if stats != nil {
		updatesender.PrintStats(os.Stdout, stats)
	}
	if err != nil {
		logger.Get().Error(ctx, "send failed", logger.Error(err))
		os.Exit(1)
	}
	if stats.Denied > 0 || stats.Failed > 0 {
		os.Exit(1)
	}
}
