package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// SweepInterval is how often long-running commands purge expired entries.
const SweepInterval = 5 * time.Minute

// Sweeper removes expired key-value entries.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// StartSweep periodically sweeps expired KV entries. It blocks until the
// context is cancelled.
func StartSweep(ctx context.Context, s Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				log.Debug().Err(err).Msg("kv sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("kv sweep")
			}
		}
	}
}
