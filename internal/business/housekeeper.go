package business

import (
	"context"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// housekeep purges expired credentials every interval until ctx is done.
func housekeep(ctx context.Context, purger expiredPurger, interval time.Duration) {
	c := time.Tick(interval)
	for {
		n, err := purger.DeleteExpired(ctx)
		if err != nil {
			slogctx.Error(ctx, "Error during credential housekeeping", "error", err)
		} else if n > 0 {
			slogctx.Info(ctx, "Purged expired credentials", "count", n)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return
		}
	}
}
