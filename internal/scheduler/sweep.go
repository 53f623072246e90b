package scheduler

import (
	"context"
	"time"

	"github.com/wambuik/chamaflow/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweepScheduler runs the lateness sweep over active contribution records on
// a fixed cron schedule.
type SweepScheduler struct {
	cron            *cron.Cron
	ngumbatoService service.NgumbatoServices
	schedule        string
	log             *zap.Logger
}

func NewSweepScheduler(ngumbatoService service.NgumbatoServices, schedule string, log *zap.Logger) *SweepScheduler {
	return &SweepScheduler{
		cron:            cron.New(),
		ngumbatoService: ngumbatoService,
		schedule:        schedule,
		log:             log,
	}
}

// Start registers the sweep job and starts the cron loop. Each run gets its
// own timeout so a stuck database cannot pile up overlapping sweeps.
func (s *SweepScheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()

		start := time.Now()
		changed, err := s.ngumbatoService.SweepLateness(ctx, time.Now().UTC())
		if err != nil {
			s.log.Error("Lateness sweep failed",
				zap.Error(err),
				zap.Duration("elapsed", time.Since(start)),
			)
			return
		}

		if changed > 0 {
			s.log.Info("Lateness sweep completed",
				zap.Int("records_updated", changed),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("Lateness sweep scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *SweepScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Lateness sweep scheduler stopped")
}
