// Package stats computes per-polarity category totals and percentage
// breakdowns for a list of entries.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// CategoryTotal is the summed magnitude of one category and its share of
// the polarity total.
type CategoryTotal struct {
	Name    string
	Amount  decimal.Decimal
	Percent decimal.Decimal
}

// Breakdown holds the categories of one polarity in first-seen order.
type Breakdown struct {
	Categories []CategoryTotal
	Total      decimal.Decimal
}

// Summary is the income and expense breakdown of an entry list.
type Summary struct {
	Income  Breakdown
	Expense Breakdown
}

// Empty reports whether the bucket has nothing to chart: no entries, or
// only zero-amount ones.
func (b Breakdown) Empty() bool {
	return len(b.Categories) == 0 || b.Total.IsZero()
}

// Chart returns the labels and shares in [0, 1] of the proportional chart.
// An empty bucket has no chart.
func (b Breakdown) Chart() (labels []string, shares []float64) {
	if b.Empty() {
		return nil, nil
	}
	labels = make([]string, 0, len(b.Categories))
	shares = make([]float64, 0, len(b.Categories))
	for _, c := range b.Categories {
		labels = append(labels, c.Name)
		shares = append(shares, c.Amount.DivRound(b.Total, 8).InexactFloat64())
	}
	return labels, shares
}

// Summarize splits entries by polarity and totals each category.
//
// Percentages are rounded half-to-even to two places, then the rounding
// residue is handed out one hundredth at a time by largest remainder, so a
// non-empty bucket always sums to exactly 100.00. Ties go to the category
// seen first. A bucket whose total is zero reports 0 for every category.
func Summarize(entries []core.Entry) Summary {
	var income, expense accumulator
	for _, e := range entries {
		if e.IsIncome() {
			income.add(e.Category, e.Amount)
		} else {
			expense.add(e.Category, e.Amount)
		}
	}
	return Summary{Income: income.breakdown(), Expense: expense.breakdown()}
}

// Totals returns the summed income and expense magnitudes.
func Totals(entries []core.Entry) (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, e := range entries {
		if e.IsIncome() {
			income = income.Add(e.Amount)
		} else {
			expense = expense.Add(e.Amount)
		}
	}
	return income, expense
}

type accumulator struct {
	order []string
	sums  map[string]decimal.Decimal
}

func (a *accumulator) add(category string, amount decimal.Decimal) {
	if a.sums == nil {
		a.sums = make(map[string]decimal.Decimal)
	}
	cur, ok := a.sums[category]
	if !ok {
		a.order = append(a.order, category)
		cur = decimal.Zero
	}
	a.sums[category] = cur.Add(amount)
}

func (a *accumulator) breakdown() Breakdown {
	b := Breakdown{Total: decimal.Zero}
	if len(a.order) == 0 {
		return b
	}
	for _, name := range a.order {
		b.Total = b.Total.Add(a.sums[name])
	}
	b.Categories = make([]CategoryTotal, 0, len(a.order))
	exact := make([]decimal.Decimal, 0, len(a.order))
	for _, name := range a.order {
		amount := a.sums[name]
		share, pct := decimal.Zero, decimal.Zero
		if !b.Total.IsZero() {
			share = amount.Mul(hundred).DivRound(b.Total, 12)
			pct = share.RoundBank(2)
		}
		exact = append(exact, share)
		b.Categories = append(b.Categories, CategoryTotal{Name: name, Amount: amount, Percent: pct})
	}
	if !b.Total.IsZero() {
		distribute(b.Categories, exact)
	}
	return b
}

// distribute moves the rounded percentages onto 100.00 by adjusting the
// categories whose rounding lost (or gained) the most.
func distribute(cats []CategoryTotal, exact []decimal.Decimal) {
	sum := decimal.Zero
	for _, c := range cats {
		sum = sum.Add(c.Percent)
	}
	units := hundred.Sub(sum).Div(cent).IntPart()
	if units == 0 {
		return
	}

	idx := make([]int, len(cats))
	for i := range idx {
		idx[i] = i
	}
	// residue > 0 means the category was rounded down.
	residue := func(i int) decimal.Decimal { return exact[i].Sub(cats[i].Percent) }
	step := cent
	if units > 0 {
		sort.SliceStable(idx, func(a, b int) bool { return residue(idx[a]).GreaterThan(residue(idx[b])) })
	} else {
		sort.SliceStable(idx, func(a, b int) bool { return residue(idx[a]).LessThan(residue(idx[b])) })
		step = cent.Neg()
		units = -units
	}
	for k := int64(0); k < units && int(k) < len(idx); k++ {
		i := idx[k]
		cats[i].Percent = cats[i].Percent.Add(step)
	}
}
