package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// scheduledRun names the batch_runs row of the monthly scheduler.
const scheduledRun = "monthly_report"

// LastCompleted returns the last period the scheduled batch finished, or
// the zero period when it never ran.
func (r *SQLiteRepository) LastCompleted(ctx context.Context) (core.Period, error) {
	var key string
	err := r.db.QueryRowContext(ctx,
		`SELECT period FROM batch_runs WHERE name = ?`, scheduledRun).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, nil
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("read batch checkpoint: %w", err)
	}
	return core.ParsePeriodKey(key)
}

// MarkCompleted records p as the last finished scheduled batch.
func (r *SQLiteRepository) MarkCompleted(ctx context.Context, p core.Period) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO batch_runs (name, period, completed_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET period = excluded.period, completed_at = excluded.completed_at`,
		scheduledRun, p.Key(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write batch checkpoint: %w", err)
	}
	return nil
}
