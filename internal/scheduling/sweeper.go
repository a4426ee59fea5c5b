package scheduling

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-scheduling/internal/clock"
)

// DefaultSweepInterval is how often the sweeper wakes between passes.
const DefaultSweepInterval = time.Hour

const sweepPassTimeout = 20 * time.Second

// Sweeper periodically promotes elapsed scheduled appointments to
// completed. A transient store failure is logged and the loop continues;
// rows missed by a failed pass are picked up on the next one.
type Sweeper struct {
	svc      *Service
	clock    clock.Clock
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(svc *Service, clk clock.Clock, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		svc:      svc,
		clock:    clk,
		interval: interval,
		log:      log,
	}
}

// Run executes one pass immediately, then one per interval until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep pass with its own timeout.
func (s *Sweeper) RunOnce(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, sweepPassTimeout)
	defer cancel()

	start := time.Now()
	completed, err := s.svc.CompleteElapsedAppointments(passCtx, s.clock.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("sweep pass failed")
		return
	}

	s.log.Debug().
		Int64("completed", completed).
		Dur("took", time.Since(start)).
		Msg("sweep pass complete")
}
