package refresh

import (
	"context"
	"log"
	"time"
)

// RunPeriodic calls fn every interval until ctx is done. Failures are logged
// and the next tick tries again.
func RunPeriodic(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				log.Printf("[%s] run failed: %v", name, err)
			}
		}
	}
}
