package workflows

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/coverbridge/coverbridge/internal/observability"
)

// Scheduler runs the renewal sweep on a cron schedule and notes the
// result on the matching CRM leads.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron
	logger *observability.Logger
	window time.Duration
}

// NewScheduler creates a scheduler. spec is a standard 5-field cron
// expression; window is the renewal horizon.
func NewScheduler(runner *Runner, spec string, window time.Duration, logger *observability.Logger) (*Scheduler, error) {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	s := &Scheduler{
		runner: runner,
		cron:   cron.New(),
		logger: logger,
		window: window,
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := s.runner.RenewalCheck(ctx, s.window)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(ctx, "renewal sweep failed", "error", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Info(ctx, "renewal sweep completed", "summary", summary)
	}
}
