package pipeline

import (
	"context"
	"time"

	"github.com/llmify/llmstxt-service/common/contentstore"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically reclaims unreferenced content rows past the retention
// window. One instance per process is enough; the sweep itself is idempotent.
type Sweeper struct {
	store     *contentstore.Store
	interval  time.Duration
	retention time.Duration
	budget    time.Duration
}

func NewSweeper(store *contentstore.Store, interval, retention, budget time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:     store,
		interval:  interval,
		retention: retention,
		budget:    budget,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.store.Sweep(ctx, s.retention, s.budget)
			if err != nil {
				log.Error().Err(err).Msg("Content sweep failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Content sweep reclaimed rows")
			}
		}
	}
}
