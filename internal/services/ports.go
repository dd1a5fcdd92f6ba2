package services

import (
	"context"

	"fintrack/internal/core"
)

// ReportSource resolves the data a report is built from. *fetch.Fetcher
// satisfies it.
type ReportSource interface {
	GetUser(ctx context.Context, id string) (core.User, error)
	GetAllowReportUsers(ctx context.Context) ([]core.User, error)
	GetLedger(ctx context.Context, ownerID string, ledgerID int64) (core.Ledger, error)
	GetPeriodEntries(ctx context.Context, ownerID string, ledgerID int64, period core.Period) ([]core.Entry, error)
}

// Mailer sends one document as an email attachment. *delivery.Dispatcher
// satisfies it.
type Mailer interface {
	Send(ctx context.Context, subject, htmlBody, to, attachmentPath, attachmentName string) error
}
