package updatesender

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/scorecast/pkg/logger"
)

// Run sends cfg.Count updates and returns the tally. Updates are dispatched
// in startNumber order, cfg.Interval apart; with more than one worker they
// may arrive out of order.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := logger.Get().Named("sender")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "sending updates",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("count", cfg.Count),
		logger.Int("workers", cfg.Workers),
		logger.Duration("interval", cfg.Interval),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	var sent, accepted, denied, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	var pace *time.Ticker
	if cfg.Interval > 0 {
		pace = time.NewTicker(cfg.Interval)
		defer pace.Stop()
	}

	var dispatchErr error
dispatch:
	for seq := 1; seq <= cfg.Count; seq++ {
		if pace != nil && seq > 1 {
			select {
			case <-gctx.Done():
				dispatchErr = gctx.Err()
				break dispatch
			case <-pace.C:
			}
		}
		if gctx.Err() != nil {
			dispatchErr = gctx.Err()
			break
		}

		form := buildForm(cfg, seq)
		g.Go(func() error {
			outcome, err := client.post(gctx, form)
			sent.Add(1)
			switch outcome {
			case OutcomeAccepted:
				accepted.Add(1)
			case OutcomeDenied:
				denied.Add(1)
			default:
				failed.Add(1)
			}
			if err != nil {
				log.Warn(gctx, "update not accepted",
					logger.String("outcome", string(outcome)),
					logger.String("startNumber", form.Get("startNumber")),
					logger.Error(err),
				)
			} else if cfg.Verbose {
				log.Info(gctx, "update accepted", logger.String("startNumber", form.Get("startNumber")))
			}
			return nil
		})
	}

	// Workers never return errors; a failed update is counted, not fatal.
	_ = g.Wait()

	stats.Sent = int(sent.Load())
	stats.Accepted = int(accepted.Load())
	stats.Denied = int(denied.Load())
	stats.Failed = int(failed.Load())
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if dispatchErr != nil {
		return stats, fmt.Errorf("sending interrupted after %d updates: %w", stats.Sent, dispatchErr)
	}
	return stats, nil
}
