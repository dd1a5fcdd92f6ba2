// Package worker runs batch report requests delivered over AMQP.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// processedTTL is how long a handled message id is remembered.
const processedTTL = 24 * time.Hour

// ReportWorker runs one batch per run request. Requests are handled one
// at a time and a message id already handled is acknowledged without a
// second run.
type ReportWorker struct {
	runner    services.BatchRunner
	processed cache.Cache[services.BatchSummary]
	logger    *log.Logger
	mu        sync.Mutex
}

func NewReportWorker(runner services.BatchRunner, processed cache.Cache[services.BatchSummary], logger *log.Logger) *ReportWorker {
	if processed == nil {
		processed = cache.NewLRUCache[services.BatchSummary](256, processedTTL)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReportWorker{
		runner:    runner,
		processed: processed,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRunMessage processes a single report run message from AMQP.
func (w *ReportWorker) HandleRunMessage(ctx context.Context, msg *amqp.ReportRunMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.processed.Get(msg.ID); ok {
		w.logger.InfoContext(ctx, "Skipping already processed run",
			log.FieldMessageID, msg.ID,
			log.FieldPeriod, prev.Period.String())
		return nil
	}

	period := msg.Period()
	fields := log.NewFields()
	fields[log.FieldMessageID] = msg.ID
	fields[log.FieldPeriod] = period.String()
	fields["requested_at"] = msg.RequestedAt
	if msg.RequestID != "" {
		fields = fields.WithRequestID(msg.RequestID)
	}
	w.logger.InfoContext(ctx, "Processing report run", fields.ToSlice()...)

	summary, err := w.runner.Run(ctx, period)
	if err != nil {
		return fmt.Errorf("run batch for %s: %w", period, err)
	}
	w.processed.Set(msg.ID, summary)

	w.logger.InfoContext(ctx, "Report run complete",
		log.FieldMessageID, msg.ID,
		log.FieldPeriod, period.String(),
		"users", summary.Total,
		"sent", summary.Sent,
		"failures", len(summary.Failures))
	return nil
}
