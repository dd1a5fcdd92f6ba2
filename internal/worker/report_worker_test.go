package worker

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type fakeRunner struct {
	calls []core.Period
	err   error
}

func (r *fakeRunner) Run(_ context.Context, p core.Period) (services.BatchSummary, error) {
	r.calls = append(r.calls, p)
	return services.BatchSummary{Period: p, Total: 3, Sent: 2}, r.err
}

func TestHandleRunMessage(t *testing.T) {
	runner := &fakeRunner{}
	w := NewReportWorker(runner, nil, log.Discard())
	msg := amqp.NewReportRunMessage(core.Period{Month: 3, Year: 2024})

	if err := w.HandleRunMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleRunMessage: %v", err)
	}
	if len(runner.calls) != 1 || runner.calls[0] != (core.Period{Month: 3, Year: 2024}) {
		t.Fatalf("unexpected runs %v", runner.calls)
	}

	// Redelivery of the same message does not email users twice.
	if err := w.HandleRunMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleRunMessage: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected duplicate to be skipped, got %d runs", len(runner.calls))
	}
}

func TestHandleRunMessageFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("store unreachable")}
	w := NewReportWorker(runner, nil, log.Discard())
	msg := amqp.NewReportRunMessage(core.Period{Month: 3, Year: 2024})

	if err := w.HandleRunMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error from failed run")
	}
	// A failed run is not remembered, so a retry runs again.
	runner.err = nil
	if err := w.HandleRunMessage(context.Background(), msg); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runner.calls))
	}
}
