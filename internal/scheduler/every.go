package scheduler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Every calls fn once per interval on clk until ctx is done. A tick that arrives while fn is
// still running is dropped rather than queued.
func Every(ctx context.Context, clk clock.Clock, interval time.Duration, fn func(context.Context)) error {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}
