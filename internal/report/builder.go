package report

import (
	"fmt"
	"sort"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/stats"
)

// Input is everything Build needs. Formatter carries locale and currency.
type Input struct {
	User        core.User
	Ledger      core.Ledger
	Entries     []core.Entry
	Period      core.Period
	Formatter   *core.Formatter
	GeneratedAt time.Time
}

// Build lays out the report. It is deterministic for a given Input.
func Build(in Input) (Document, error) {
	if in.Period.IsZero() {
		return Document{}, core.ErrPeriodNotDefined
	}
	start, end, err := in.Period.Range()
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", core.ErrPeriodNotDefined, err)
	}
	if in.Formatter == nil {
		return Document{}, fmt.Errorf("%w: no formatter", core.ErrRenderFailed)
	}
	f := in.Formatter

	entries := make([]core.Entry, len(in.Entries))
	copy(entries, in.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date.Time)
	})

	doc := Document{
		Title:       fmt.Sprintf("Monthly Report - %s", in.Period),
		Period:      in.Period,
		GeneratedAt: in.GeneratedAt,
		Info: []InfoRow{
			{Label: "Username", Value: in.User.Username},
			{Label: "Email", Value: in.User.Email},
			{Label: "Ledger", Value: fmt.Sprintf("%s (%s)", in.Ledger.Name, f.Currency())},
			{Label: "Period", Value: f.Date(start) + " - " + f.Date(end)},
			{Label: "Generated on", Value: f.Timestamp(in.GeneratedAt)},
		},
		Table: buildTable(entries, f),
	}

	summary := stats.Summarize(entries)
	doc.Statistics = []StatBlock{
		buildBlock("Expense", summary.Expense, f),
		buildBlock("Income", summary.Income, f),
	}
	return doc, nil
}

// buildTable fills one amount column per row. Income lands in Debit and
// expense in Credit, the way the ledger app labels them.
func buildTable(entries []core.Entry, f *core.Formatter) Table {
	t := Table{Header: append([]string(nil), TableHeader...)}
	for i, e := range entries {
		row := []string{fmt.Sprintf("%d.", i+1), e.Date.String(), e.Category, "-", "-"}
		if e.IsIncome() {
			row[3] = f.Amount(e.Amount)
		} else {
			row[4] = f.Amount(e.Amount)
		}
		t.Rows = append(t.Rows, row)
	}
	debit, credit := stats.Totals(entries)
	t.Totals = []string{"", "", "Total", f.Amount(debit), f.Amount(credit)}
	return t
}

func buildBlock(title string, b stats.Breakdown, f *core.Formatter) StatBlock {
	block := StatBlock{Title: title, Total: f.Amount(b.Total)}
	if b.Empty() {
		return block
	}
	labels, shares := b.Chart()
	for i, c := range b.Categories {
		block.Slices = append(block.Slices, Slice{Label: labels[i], Fraction: shares[i]})
		block.Rows = append(block.Rows, StatRow{
			Label:  fmt.Sprintf("%s (%s)", c.Name, f.Percent(c.Percent)),
			Amount: f.Amount(c.Amount),
		})
	}
	return block
}
