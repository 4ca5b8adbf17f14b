package scraper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"
)

func TestNextRun(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		rome = time.UTC
	}

	tests := map[string]struct {
		now  time.Time
		hour int
		want time.Time
	}{
		"before hour": {
			time.Date(2024, 5, 10, 3, 30, 0, 0, time.UTC), 4,
			time.Date(2024, 5, 10, 4, 0, 0, 0, time.UTC),
		},
		"exactly on hour": {
			time.Date(2024, 5, 10, 4, 0, 0, 0, time.UTC), 4,
			time.Date(2024, 5, 11, 4, 0, 0, 0, time.UTC),
		},
		"after hour": {
			time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC), 0,
			time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC),
		},
		"month rollover": {
			time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), 0,
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		"keeps location": {
			time.Date(2024, 5, 10, 1, 0, 0, 0, rome), 2,
			time.Date(2024, 5, 10, 2, 0, 0, 0, rome),
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := NextRun(tc.now, tc.hour)
			assert.True(t, tc.want.Equal(got), "want %v, got %v", tc.want, got)
			assert.Equal(t, tc.now.Location(), got.Location())
		})
	}
}

type countingRunner struct {
	calls atomic.Int32
	ran   chan struct{}
}

func (r *countingRunner) Run(ctx context.Context) (*Result, error) {
	r.calls.Add(1)
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return &Result{}, nil
}

func TestScheduler_RunOnStartThenStop(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 1)}
	lc := fxtest.NewLifecycle(t)
	s := NewScheduler(lc, zaptest.NewLogger(t), runner, 4, true)
	// Never reach the daily hour during the test.
	s.now = func() time.Time { return time.Date(2024, 5, 10, 5, 0, 0, 0, time.UTC) }

	lc.RequireStart()

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not run on start")
	}

	lc.RequireStop()
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_NoRunOnStart(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 1)}
	s := newScheduler(zaptest.NewLogger(t), runner, 4, false)

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Zero(t, runner.calls.Load())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := newScheduler(zaptest.NewLogger(t), &countingRunner{}, 0, false)
	s.Stop()
}
