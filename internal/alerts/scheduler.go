package alerts

import (
	"context"
	"time"

	"jobboard-workers/internal/common/logger"
)

// Scheduler runs the due alerts on a fixed tick until its context ends.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	timeout  time.Duration
	logger   logger.Logger
}

func NewScheduler(runner *Runner, interval time.Duration, log logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		timeout:  interval,
		logger:   logger.Component(log, "alerts.scheduler"),
	}
}

// Run ticks once immediately and then every interval. It returns nil when
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Job alert scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("Job alert scheduler stopped", nil)
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.runner.RunDue(runCtx); err != nil {
		s.logger.Error("Job alert run failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
