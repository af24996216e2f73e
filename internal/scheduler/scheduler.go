// Package scheduler runs a job on a cron expression or a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

// Job is one scheduled run. Errors are logged and do not stop the schedule.
type Job func(ctx context.Context) error

// Scheduler runs Job on its schedule and whenever Trigger is called. Runs
// never overlap.
type Scheduler struct {
	cron     string
	interval time.Duration
	job      Job
	log      *logging.Logger
	now      func() time.Time
	trigger  chan struct{}
	runs     chan struct{} // receives after every run, for tests
}

// New creates a scheduler from the synth config. A cron schedule takes
// precedence over the interval.
func New(cfg config.SynthConfig, job Job, log *logging.Logger) (*Scheduler, error) {
	cron := strings.TrimSpace(cfg.Schedule)
	if cron != "" && !gronx.New().IsValid(cron) {
		return nil, fmt.Errorf("invalid cron expression: %s", cron)
	}
	if cron == "" && cfg.Interval <= 0 {
		return nil, fmt.Errorf("scheduler needs a cron expression or a positive interval")
	}
	return &Scheduler{
		cron:     cron,
		interval: cfg.Interval,
		job:      job,
		log:      log.Sub("scheduler"),
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Describe returns a human-readable form of the schedule.
func (s *Scheduler) Describe() string {
	if s.cron != "" {
		return "cron " + s.cron
	}
	return "every " + s.interval.String()
}

// Next returns the first run time after ref.
func (s *Scheduler) Next(ref time.Time) (time.Time, error) {
	if s.cron == "" {
		return ref.Add(s.interval), nil
	}
	next, err := gronx.NextTickAfter(s.cron, ref, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("next tick for %q: %w", s.cron, err)
	}
	return next, nil
}

// Trigger requests a run as soon as the current one, if any, finishes.
// Requests made while one is already pending are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done. When immediate is true the job runs once
// before the first scheduled tick.
func (s *Scheduler) Run(ctx context.Context, immediate bool) error {
	s.log.Info().Str("schedule", s.Describe()).Msg("scheduler started")
	if immediate {
		s.runJob(ctx, "startup")
	}

	for {
		now := s.now()
		next, err := s.Next(now)
		if err != nil {
			return err
		}
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-s.trigger:
			timer.Stop()
			s.runJob(ctx, "trigger")
		case <-timer.C:
			s.runJob(ctx, "schedule")
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	start := s.now()
	if err := s.job(ctx); err != nil {
		s.log.Error().Err(err).Str("reason", reason).Msg("scheduled run failed")
	} else {
		s.log.Debug().Str("reason", reason).Dur("took", s.now().Sub(start)).Msg("scheduled run complete")
	}
	if s.runs != nil {
		select {
		case s.runs <- struct{}{}:
		default:
		}
	}
}
