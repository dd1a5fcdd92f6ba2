package services

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

// ReportRequest is an on-demand report for the authenticated user.
type ReportRequest struct {
	UserID   string
	LedgerID int64
	Period   core.Period
	Locale   string
}

// ReportService renders single reports on request. The user's
// allow_report flag does not apply here.
type ReportService struct {
	source   ReportSource
	renderer *report.Renderer
	logger   *log.Logger
	events   *log.StructuredLogger
}

func NewReportService(source ReportSource, renderer *report.Renderer, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentReport)
	return &ReportService{
		source:   source,
		renderer: renderer,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
	}
}

// Generate validates the request, fetches the ledger's entries for the
// period and renders them. A period without entries fails with
// core.ErrNoEntries and produces no document. The storage is rotated
// before writing. The caller must Release the returned document once it
// has been served.
func (s *ReportService) Generate(ctx context.Context, req ReportRequest) (core.ReportDocument, error) {
	locale := req.Locale
	if locale == "" {
		locale = core.DefaultLocale
	}
	tag, err := core.ParseLocale(locale)
	if err != nil {
		return core.ReportDocument{}, err
	}
	if err := req.Period.Validate(); err != nil {
		return core.ReportDocument{}, err
	}

	user, err := s.source.GetUser(ctx, req.UserID)
	if err != nil {
		return core.ReportDocument{}, err
	}
	ledger, err := s.source.GetLedger(ctx, user.ID, req.LedgerID)
	if err != nil {
		return core.ReportDocument{}, err
	}
	entries, err := s.source.GetPeriodEntries(ctx, user.ID, ledger.ID, req.Period)
	if err != nil {
		return core.ReportDocument{}, err
	}
	if len(entries) == 0 {
		return core.ReportDocument{}, fmt.Errorf("%s: %w", req.Period, core.ErrNoEntries)
	}

	doc, err := s.renderer.NewEngine().
		SetPeriod(req.Period).
		SetCurrency(ledger.Currency).
		SetLocale(tag).
		SetRotation(true).
		Generate(ctx, user, ledger, entries)
	if err != nil {
		return core.ReportDocument{}, err
	}

	s.events.LogReportGenerated(ctx, user.ID, ledger.ID, req.Period.String(), doc.Path, len(entries))
	return doc, nil
}

// Release lets rotation reclaim a document returned by Generate.
func (s *ReportService) Release(doc core.ReportDocument) {
	s.renderer.Release(doc)
}
