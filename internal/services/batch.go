package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/delivery"
	"fintrack/internal/log"
	"fintrack/internal/report"

	"golang.org/x/sync/errgroup"
)

// DefaultPoolSize bounds concurrent renders in a batch run.
const DefaultPoolSize = 10

// Batch stages recorded on a UserFailure.
const (
	StageLedger  = "ledger"
	StageEntries = "entries"
	StageRender  = "render"
	StageCompose = "compose"
	StageSend    = "send"
)

// UserFailure records why one user did not receive a report.
type UserFailure struct {
	UserID string `json:"user_id"`
	Stage  string `json:"stage"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// BatchSummary is the outcome of one batch run.
type BatchSummary struct {
	Period    core.Period
	Total     int
	WithData  int
	Generated int
	Sent      int
	Failures  []UserFailure
	Duration  time.Duration
}

// MarshalJSON renders the public view of the summary.
func (s BatchSummary) MarshalJSON() ([]byte, error) {
	type users struct {
		Count int `json:"count"`
		Sent  int `json:"sent"`
	}
	return json.Marshal(struct {
		Period string `json:"period"`
		Users  users  `json:"users"`
	}{s.Period.String(), users{Count: s.Total, Sent: s.Sent}})
}

// Orchestrator runs the monthly report for every opted-in user.
type Orchestrator struct {
	source   ReportSource
	renderer *report.Renderer
	mailer   Mailer
	poolSize int
	logger   *log.Logger
	events   *log.StructuredLogger
}

type OrchestratorOption func(*Orchestrator)

// WithPoolSize sets the number of concurrent renders. Values below one
// keep the default.
func WithPoolSize(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

func WithOrchestratorLogger(l *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(source ReportSource, renderer *report.Renderer, mailer Mailer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		source:   source,
		renderer: renderer,
		mailer:   mailer,
		poolSize: DefaultPoolSize,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent(log.ComponentBatch)
	o.events = log.NewStructuredLogger(o.logger)
	return o
}

// Run generates and emails the period's report for each opted-in user.
// Per-user failures are recorded in the summary; only failing to list the
// users aborts the run.
func (o *Orchestrator) Run(ctx context.Context, period core.Period) (BatchSummary, error) {
	start := time.Now()
	summary := BatchSummary{Period: period}
	if err := period.Validate(); err != nil {
		return summary, err
	}

	users, err := o.source.GetAllowReportUsers(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "Cannot list opted-in users",
			log.FieldOperation, log.OpFetch,
			log.FieldError, err)
		return summary, fmt.Errorf("list users: %w", err)
	}
	summary.Total = len(users)
	o.logger.InfoContext(ctx, "Batch run started",
		log.FieldPeriod, period.String(),
		"users", len(users),
		"pool_size", o.poolSize)

	tasks := o.collect(ctx, users, period, &summary)
	summary.WithData = len(tasks)

	// Documents of one run live in their own directory until every mail
	// has gone out; on-demand rotation never reaches into it.
	renderer := o.renderer.ForRun(runName(period, start))
	o.render(ctx, renderer, tasks, period)

	for i := range tasks {
		t := &tasks[i]
		if !t.Rendered() {
			o.fail(ctx, &summary, t.User.ID, StageRender, t.Err)
			continue
		}
		summary.Generated++
		err := o.dispatch(ctx, *t, period)
		renderer.Release(t.Document)
		if err != nil {
			o.fail(ctx, &summary, t.User.ID, stageOf(err), err)
			continue
		}
		summary.Sent++
	}
	if err := renderer.Storage().Remove(ctx); err != nil {
		o.logger.WarnContext(ctx, "Cannot remove run directory",
			log.FieldOperation, log.OpClear,
			log.FieldError, err)
	}

	summary.Duration = time.Since(start)
	o.logger.InfoContext(ctx, "Batch run finished",
		log.FieldPeriod, period.String(),
		"users", summary.Total,
		"with_data", summary.WithData,
		"generated", summary.Generated,
		"sent", summary.Sent,
		"failures", len(summary.Failures),
		log.FieldDuration, summary.Duration.Milliseconds())
	return summary, nil
}

// collect fetches each user's ledger and entries and keeps the users that
// have data for the period.
func (o *Orchestrator) collect(ctx context.Context, users []core.User, period core.Period, summary *BatchSummary) []core.GenerationTask {
	tasks := make([]core.GenerationTask, 0, len(users))
	for _, u := range users {
		ledger, err := o.source.GetLedger(ctx, u.ID, u.CurrentLedger)
		if err != nil {
			o.fail(ctx, summary, u.ID, StageLedger, err)
			continue
		}
		entries, err := o.source.GetPeriodEntries(ctx, u.ID, ledger.ID, period)
		if err != nil {
			o.fail(ctx, summary, u.ID, StageEntries, err)
			continue
		}
		if len(entries) == 0 {
			o.logger.DebugContext(ctx, "No entries for period",
				log.FieldUserID, u.ID,
				log.FieldPeriod, period.String())
			continue
		}
		tasks = append(tasks, core.GenerationTask{User: u, Ledger: ledger, Entries: entries})
	}
	return tasks
}

// render fills each task's own slot. Task errors stay on the task so one
// failure never cancels the others.
func (o *Orchestrator) render(ctx context.Context, renderer *report.Renderer, tasks []core.GenerationTask, period core.Period) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.poolSize)
	for i := range tasks {
		g.Go(func() error {
			t := &tasks[i]
			engine := renderer.NewEngine().SetPeriod(period)
			if tag, err := core.ParseLocale(t.User.Locale); err == nil {
				engine.SetLocale(tag)
			}
			t.Document, t.Err = engine.Generate(gctx, t.User, t.Ledger, t.Entries)
			return nil
		})
	}
	_ = g.Wait()
}

type stagedError struct {
	stage string
	err   error
}

func (e *stagedError) Error() string { return e.err.Error() }
func (e *stagedError) Unwrap() error { return e.err }

func stageOf(err error) string {
	if se, ok := err.(*stagedError); ok {
		return se.stage
	}
	return StageSend
}

func (o *Orchestrator) dispatch(ctx context.Context, t core.GenerationTask, period core.Period) error {
	mail, err := delivery.ComposeMonthly(t.User, t.Ledger, period, o.renderer.Format().Extension)
	if err != nil {
		return &stagedError{stage: StageCompose, err: err}
	}
	if err := o.mailer.Send(ctx, mail.Subject, mail.HTMLBody, t.User.Email, t.Document.Path, mail.AttachmentName); err != nil {
		return &stagedError{stage: StageSend, err: err}
	}
	return nil
}

// fail records a per-user failure and logs it.
func (o *Orchestrator) fail(ctx context.Context, s *BatchSummary, userID, stage string, err error) {
	kind := core.Kind(err)
	s.Failures = append(s.Failures, UserFailure{
		UserID: userID,
		Stage:  stage,
		Kind:   kind,
		Error:  err.Error(),
	})
	fields := log.NewFields()
	fields[log.FieldUserID] = userID
	fields[log.FieldPeriod] = s.Period.String()
	o.events.LogError(ctx, "Report not delivered", err, kind, stage, fields)
}

// runName names the storage directory of one batch run.
func runName(period core.Period, start time.Time) string {
	return fmt.Sprintf("%04d%02d-%s", period.Year, period.Month, start.UTC().Format("20060102T150405.000000000"))
}
