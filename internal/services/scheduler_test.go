package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type fakeRunner struct {
	mu      sync.Mutex
	periods []core.Period
	err     error
}

func (r *fakeRunner) Run(_ context.Context, p core.Period) (BatchSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods = append(r.periods, p)
	return BatchSummary{Period: p}, r.err
}

func (r *fakeRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.periods)
}

type fakeCheckpoint struct {
	mu      sync.Mutex
	last    core.Period
	readErr error
	writes  int
}

func (c *fakeCheckpoint) LastCompleted(context.Context) (core.Period, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.readErr
}

func (c *fakeCheckpoint) MarkCompleted(_ context.Context, p core.Period) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = p
	c.writes++
	return nil
}

func TestSchedulerReportsClosedMonthOnce(t *testing.T) {
	runner := &fakeRunner{}
	cp := &fakeCheckpoint{}
	s := NewScheduler(runner, cp, SchedulerConfig{Interval: time.Hour}, log.Discard())
	now := time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	s.tick(ctx)
	s.tick(ctx)
	if runner.calls() != 1 || runner.periods[0] != (core.Period{Month: 2, Year: 2024}) {
		t.Fatalf("expected one run for February, got %v", runner.periods)
	}

	now = time.Date(2024, 4, 1, 0, 30, 0, 0, time.UTC)
	s.tick(ctx)
	if runner.calls() != 2 || runner.periods[1] != (core.Period{Month: 3, Year: 2024}) {
		t.Fatalf("expected a run for March once it closed, got %v", runner.periods)
	}
	if s.LastPeriod() != (core.Period{Month: 3, Year: 2024}) || cp.last != s.LastPeriod() {
		t.Fatalf("unexpected last period %v, checkpoint %v", s.LastPeriod(), cp.last)
	}
}

func TestSchedulerMidMonthStartReportsPreviousMonth(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, &fakeCheckpoint{}, DefaultSchedulerConfig(), log.Discard())
	s.now = func() time.Time { return time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC) }

	s.tick(context.Background())
	if runner.calls() != 1 || runner.periods[0] != (core.Period{Month: 12, Year: 2023}) {
		t.Fatalf("expected December 2023, got %v", runner.periods)
	}
}

func TestSchedulerRestartDoesNotRepeatRun(t *testing.T) {
	runner := &fakeRunner{}
	cp := &fakeCheckpoint{}
	now := func() time.Time { return time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC) }

	first := NewScheduler(runner, cp, DefaultSchedulerConfig(), log.Discard())
	first.now = now
	first.tick(context.Background())

	restarted := NewScheduler(runner, cp, DefaultSchedulerConfig(), log.Discard())
	restarted.now = now
	restarted.tick(context.Background())

	if runner.calls() != 1 {
		t.Fatalf("restart repeated the run: %v", runner.periods)
	}
	if restarted.LastPeriod() != (core.Period{Month: 3, Year: 2024}) {
		t.Fatalf("restarted scheduler did not load the checkpoint: %v", restarted.LastPeriod())
	}
}

func TestSchedulerRetriesFailedRun(t *testing.T) {
	runner := &fakeRunner{err: errors.New("store unreachable")}
	cp := &fakeCheckpoint{}
	s := NewScheduler(runner, cp, DefaultSchedulerConfig(), log.Discard())
	s.now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }

	s.tick(context.Background())
	s.tick(context.Background())
	if runner.calls() != 2 {
		t.Fatalf("expected a retry after failure, got %d calls", runner.calls())
	}
	if cp.writes != 0 || !s.LastPeriod().IsZero() {
		t.Fatal("failed run must not mark the period done")
	}
}

func TestSchedulerSkipsWhenCheckpointUnreadable(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, &fakeCheckpoint{readErr: errors.New("redis down")}, DefaultSchedulerConfig(), log.Discard())
	s.now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }

	s.tick(context.Background())
	if runner.calls() != 0 {
		t.Fatal("must not run without knowing the last completed period")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, nil, SchedulerConfig{Interval: 10 * time.Millisecond}, log.Discard())
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("expected error when starting twice")
	}
	if !s.IsRunning() {
		t.Fatal("expected scheduler to be running")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("expected scheduler to be stopped")
	}
	if runner.calls() < 1 {
		t.Fatal("expected an immediate run on start")
	}
}

func TestSchedulerStopNotRunning(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, nil, DefaultSchedulerConfig(), log.Discard())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop should not error when not running: %v", err)
	}
}
