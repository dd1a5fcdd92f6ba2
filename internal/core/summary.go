package core

import "time"

// ReportDocument is a rendered report persisted on disk.
type ReportDocument struct {
	Path        string
	Filename    string
	ContentType string
	GeneratedAt time.Time
}

// GenerationTask is one unit of work of a batch run. It lives only for the
// duration of that run.
type GenerationTask struct {
	User     User
	Ledger   Ledger
	Entries  []Entry
	Document ReportDocument
	Err      error
}

// Rendered reports whether the task produced a document.
func (t GenerationTask) Rendered() bool {
	return t.Err == nil && t.Document.Path != ""
}
