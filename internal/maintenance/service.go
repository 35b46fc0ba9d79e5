// Package maintenance runs the background housekeeping of the store.
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// PruneInterval is how often old cache entries are removed.
	PruneInterval = 24 * time.Hour

	// CacheMaxAge is how long an analysis result stays cached.
	CacheMaxAge = 30 * 24 * time.Hour

	// InterruptedReason is recorded on analyses cut short by a restart.
	InterruptedReason = "analysis interrupted by restart"
)

// Store is the housekeeping the service performs.
type Store interface {
	FailInterruptedAnalyses(reason string) (int64, error)
	PruneAnalysisCache(cutoff time.Time) (int64, error)
}

// Service recovers interrupted analyses and prunes the analysis cache.
type Service struct {
	store    Store
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// NewService creates a maintenance service with the default schedule.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		interval: PruneInterval,
		maxAge:   CacheMaxAge,
		now:      time.Now,
	}
}

// Recover fails every image left in analysis_requested by a previous run,
// so a caller can re-analyze it. It must run before requests are served.
func (s *Service) Recover() {
	n, err := s.store.FailInterruptedAnalyses(InterruptedReason)
	if err != nil {
		log.Error().Err(err).Msg("failed to recover interrupted analyses")
		return
	}
	if n > 0 {
		log.Warn().Int64("images", n).Msg("marked interrupted analyses as failed")
	}
}

// Run prunes the cache once and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("starting maintenance service")
	s.pruneCache()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("maintenance service stopped")
			return
		case <-ticker.C:
			s.pruneCache()
		}
	}
}

func (s *Service) pruneCache() {
	n, err := s.store.PruneAnalysisCache(s.now().Add(-s.maxAge))
	if err != nil {
		log.Error().Err(err).Msg("failed to prune analysis cache")
		return
	}
	log.Debug().Int64("entries", n).Msg("pruned analysis cache")
}
