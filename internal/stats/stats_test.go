package stats

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func entry(amount string, income bool, category string, day int) core.Entry {
	return core.Entry{
		Date:       core.NewDate(2024, 3, day),
		Amount:     decimal.RequireFromString(amount),
		IsPositive: income,
		Category:   category,
	}
}

func TestSummarizeSalaryAndGroceries(t *testing.T) {
	s := Summarize([]core.Entry{
		entry("100", true, "salary", 5),
		entry("40", false, "groceries", 10),
	})
	if len(s.Income.Categories) != 1 || s.Income.Categories[0].Name != "salary" {
		t.Fatalf("unexpected income categories %+v", s.Income.Categories)
	}
	if !s.Income.Categories[0].Percent.Equal(hundred) {
		t.Fatalf("expected salary at 100%%, got %s", s.Income.Categories[0].Percent)
	}
	if len(s.Expense.Categories) != 1 || s.Expense.Categories[0].Name != "groceries" {
		t.Fatalf("unexpected expense categories %+v", s.Expense.Categories)
	}
	if !s.Expense.Total.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected expense total 40, got %s", s.Expense.Total)
	}
}

func TestSummarizeFirstSeenOrder(t *testing.T) {
	s := Summarize([]core.Entry{
		entry("5", false, "rent", 1),
		entry("3", false, "food", 2),
		entry("7", false, "rent", 3),
		entry("1", false, "bus", 4),
	})
	want := []string{"rent", "food", "bus"}
	for i, c := range s.Expense.Categories {
		if c.Name != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], c.Name)
		}
	}
	if !s.Expense.Categories[0].Amount.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected rent sum 12, got %s", s.Expense.Categories[0].Amount)
	}
}

func percentSum(b Breakdown) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range b.Categories {
		sum = sum.Add(c.Percent)
	}
	return sum
}

func equalAmounts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "1"
	}
	return out
}

func TestPercentagesSumToHundred(t *testing.T) {
	cases := [][]string{
		{"1", "1", "1"},
		{"10", "20", "30", "40"},
		{"0.01", "0.02", "99.97"},
		{"33.33", "33.33", "33.34"},
		{"7", "11", "13", "17", "19", "23"},
		equalAmounts(6),
		equalAmounts(7),
		equalAmounts(30),
		equalAmounts(60),
		equalAmounts(97),
	}
	for _, amounts := range cases {
		var entries []core.Entry
		for i, a := range amounts {
			entries = append(entries, entry(a, false, fmt.Sprintf("c%d", i), 1))
		}
		b := Summarize(entries).Expense
		if sum := percentSum(b); !sum.Equal(hundred) {
			t.Fatalf("%d categories: percentages sum to %s", len(amounts), sum)
		}
		// Every share stays within one hundredth of its exact value.
		for _, c := range b.Categories {
			exact := c.Amount.Mul(hundred).DivRound(b.Total, 12)
			if c.Percent.Sub(exact).Abs().GreaterThan(decimal.RequireFromString("0.01")) {
				t.Fatalf("%d categories: %s is %s, exact %s", len(amounts), c.Name, c.Percent, exact)
			}
		}
	}
}

func TestResidueGoesToFirstSeenOnTies(t *testing.T) {
	b := Summarize([]core.Entry{
		entry("1", false, "a", 1),
		entry("1", false, "b", 1),
		entry("1", false, "c", 1),
	}).Expense
	want := []string{"33.34", "33.33", "33.33"}
	for i, c := range b.Categories {
		if c.Percent.StringFixed(2) != want[i] {
			t.Fatalf("%s: expected %s, got %s", c.Name, want[i], c.Percent.StringFixed(2))
		}
	}
}

func TestRoundHalfToEven(t *testing.T) {
	// 1/8 = 12.5% exactly; 1/16 = 6.25%; 1/32 = 3.125% rounds to 3.12.
	s := Summarize([]core.Entry{
		entry("1", true, "a", 1),
		entry("31", true, "b", 1),
	})
	if got := s.Income.Categories[0].Percent.String(); got != "3.12" {
		t.Fatalf("expected 3.12, got %s", got)
	}
}

func TestEmptyBucket(t *testing.T) {
	s := Summarize([]core.Entry{entry("10", true, "salary", 1)})
	if !s.Expense.Empty() {
		t.Fatal("expected empty expense bucket")
	}
	if !s.Expense.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", s.Expense.Total)
	}
	labels, values := s.Expense.Chart()
	if len(labels) != 0 || len(values) != 0 {
		t.Fatal("expected empty chart")
	}
}

func TestZeroAmountBucketIsEmpty(t *testing.T) {
	s := Summarize([]core.Entry{entry("0", false, "free", 1), entry("0", false, "gift", 2)})
	if !s.Expense.Empty() {
		t.Fatal("a bucket of zero amounts has nothing to chart")
	}
	for _, c := range s.Expense.Categories {
		if !c.Percent.IsZero() {
			t.Fatalf("expected 0%% for %s, got %s", c.Name, c.Percent)
		}
	}
	if labels, _ := s.Expense.Chart(); len(labels) != 0 {
		t.Fatalf("expected no chart, got %v", labels)
	}
}

func TestChartShares(t *testing.T) {
	s := Summarize([]core.Entry{
		entry("30", false, "rent", 1),
		entry("10", false, "bus", 2),
	})
	labels, shares := s.Expense.Chart()
	if len(labels) != 2 || labels[0] != "rent" || labels[1] != "bus" {
		t.Fatalf("unexpected labels %v", labels)
	}
	if shares[0] != 0.75 || shares[1] != 0.25 {
		t.Fatalf("unexpected shares %v", shares)
	}
}

func TestTotals(t *testing.T) {
	in, out := Totals([]core.Entry{
		entry("100", true, "salary", 1),
		entry("40", false, "groceries", 2),
		entry("2.5", false, "coffee", 3),
	})
	if !in.Equal(decimal.NewFromInt(100)) || !out.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("unexpected totals %s / %s", in, out)
	}
}
