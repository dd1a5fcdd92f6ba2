// Package report assembles a period report into a format-neutral Document
// and writes it to managed storage through a pluggable Writer.
package report

import (
	"io"
	"time"

	"fintrack/internal/core"
)

// NoDataPlaceholder replaces the chart of an empty statistics block.
const NoDataPlaceholder = "No entry data"

// Table column headers.
var TableHeader = []string{"No.", "Date", "Category", "Debit", "Credit"}

// Document is the laid-out content of one report. Writers render it
// without further computation.
type Document struct {
	Title       string
	Period      core.Period
	Info        []InfoRow
	Table       Table
	Statistics  []StatBlock
	GeneratedAt time.Time
}

type InfoRow struct {
	Label string
	Value string
}

// Table is the itemized transaction table.
type Table struct {
	Header []string
	Rows   [][]string
	Totals []string
}

// StatBlock is one polarity's chart and breakdown.
type StatBlock struct {
	Title  string
	Total  string
	Slices []Slice
	Rows   []StatRow
}

// Empty reports whether the block should show NoDataPlaceholder.
func (b StatBlock) Empty() bool {
	return len(b.Rows) == 0
}

// Slice is one proportional chart segment. Fraction is in [0, 1].
type Slice struct {
	Label    string
	Fraction float64
}

type StatRow struct {
	Label  string // "category (pct%)"
	Amount string
}

// Format describes a document encoding.
type Format struct {
	Name        string
	Extension   string
	ContentType string
}

// Writer encodes a Document.
type Writer interface {
	Format() Format
	Write(w io.Writer, doc Document) error
}
