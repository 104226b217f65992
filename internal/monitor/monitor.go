package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/breakerbox/internal/registry"
)

// Watch sweeps the box every interval and logs breakers flipping between
// available and unavailable. It blocks until ctx is cancelled; run it in its
// own goroutine, one per box.
func Watch(
	ctx context.Context,
	box *registry.Registry,
	interval time.Duration,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := make(map[string]registry.StatusCode)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Breaker monitor stopped",
				slog.String("box", box.Box()))
			return

		case <-ticker.C:
			statuses := box.StatusAll()

			for name, st := range statuses {
				prev, seen := last[name]
				if seen && prev != st.Code {
					if st.Code == registry.StatusOk {
						logger.Info("Breaker is back up",
							slog.String("box", box.Box()),
							slog.String("breaker", name))
					} else {
						logger.Warn("Breaker is down",
							slog.String("box", box.Box()),
							slog.String("breaker", name))
					}
				}
				last[name] = st.Code
			}

			// Forget breakers that were removed since the last sweep.
			for name := range last {
				if _, ok := statuses[name]; !ok {
					delete(last, name)
				}
			}
		}
	}
}
