package scraper

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// NextRun returns the first time strictly after now at hour:00 local time.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Scheduler runs the scraper once a day. Runs are sequential, so they never
// overlap.
type Scheduler struct {
	log        *zap.Logger
	runner     Runner
	hour       int
	runOnStart bool
	now        func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(lc fx.Lifecycle, log *zap.Logger, runner Runner, hour int, runOnStart bool) *Scheduler {
	s := newScheduler(log, runner, hour, runOnStart)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop scheduler")
			s.Stop()
			return nil
		},
	})
	return s
}

func newScheduler(log *zap.Logger, runner Runner, hour int, runOnStart bool) *Scheduler {
	return &Scheduler{
		log:        log,
		runner:     runner,
		hour:       hour,
		runOnStart: runOnStart,
		now:        time.Now,
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
}

// Stop cancels any in-flight run and waits for the loop to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Sugar().Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.runOnStart {
		s.runOnce(ctx)
	}

	for {
		next := NextRun(s.now(), s.hour)
		s.log.Sugar().Infow("Next scrape scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	// Errors are logged by the runner; the next day retries from scratch.
	_, _ = s.runner.Run(ctx)
}
