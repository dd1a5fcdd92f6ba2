package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// BatchRunner runs one batch for a period. *Orchestrator satisfies it.
type BatchRunner interface {
	Run(ctx context.Context, period core.Period) (BatchSummary, error)
}

// RunCheckpoint persists the last period the scheduled batch completed,
// so a restarted worker does not mail the same month twice.
type RunCheckpoint interface {
	LastCompleted(ctx context.Context) (core.Period, error)
	MarkCompleted(ctx context.Context, p core.Period) error
}

// SchedulerConfig holds configuration for the monthly scheduler.
type SchedulerConfig struct {
	// Interval is how often the scheduler checks whether the last closed
	// month still needs a run (default: 1h).
	Interval time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Interval: time.Hour}
}

// Scheduler runs the batch for the month that has just closed, once. The
// completed period is read from and written to a RunCheckpoint; a failed
// run is retried on the next tick. Months missed while no worker ran are
// not backfilled.
type Scheduler struct {
	runner     BatchRunner
	checkpoint RunCheckpoint
	config     SchedulerConfig
	now        func() time.Time
	logger     *log.Logger

	mu      sync.Mutex
	running bool
	last    core.Period
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler builds a scheduler. A nil checkpoint keeps the completed
// period in memory only.
func NewScheduler(runner BatchRunner, checkpoint RunCheckpoint, config SchedulerConfig, logger *log.Logger) *Scheduler {
	if checkpoint == nil {
		checkpoint = &memoryCheckpoint{}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		runner:     runner,
		checkpoint: checkpoint,
		config:     config,
		now:        time.Now,
		logger:     logger.WithComponent(log.ComponentBatch),
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Monthly scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "Monthly scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Monthly scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastPeriod returns the most recent period that completed a run.
func (s *Scheduler) LastPeriod() core.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs the batch for the previous month unless the checkpoint says it
// is done.
func (s *Scheduler) tick(ctx context.Context) {
	period := core.NewPeriod(s.now()).Previous()

	last, err := s.checkpoint.LastCompleted(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Cannot read scheduler checkpoint",
			log.FieldPeriod, period.String(),
			log.FieldError, err)
		return
	}
	s.mu.Lock()
	s.last = last
	s.mu.Unlock()
	if !last.Before(period) {
		return
	}

	summary, err := s.runner.Run(ctx, period)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled batch run failed",
			log.FieldPeriod, period.String(),
			log.FieldError, err)
		return
	}
	if err := s.checkpoint.MarkCompleted(ctx, period); err != nil {
		s.logger.ErrorContext(ctx, "Cannot save scheduler checkpoint",
			log.FieldPeriod, period.String(),
			log.FieldError, err)
	}
	s.mu.Lock()
	s.last = period
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Scheduled batch run complete",
		log.FieldPeriod, period.String(),
		"sent", summary.Sent)
}

type memoryCheckpoint struct {
	mu   sync.Mutex
	last core.Period
}

func (m *memoryCheckpoint) LastCompleted(context.Context) (core.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *memoryCheckpoint) MarkCompleted(_ context.Context, p core.Period) error {
	m.mu.Lock()
	m.last = p
	m.mu.Unlock()
	return nil
}
