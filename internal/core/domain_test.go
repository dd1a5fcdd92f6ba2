package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-03-05", NewDate(2024, 3, 5), true},
		{"2024-03-05T00:00:00+00:00", NewDate(2024, 3, 5), true},
		{" 2024-02-29 ", NewDate(2024, 2, 29), true},
		{"2023-02-29", Date{}, false},
		{"05/03/2024", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestEntryValidate(t *testing.T) {
	ok := Entry{Date: NewDate(2024, 3, 5), Amount: decimal.NewFromInt(10), Category: "salary"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	negative := ok
	negative.Amount = decimal.NewFromInt(-1)
	if err := negative.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	zero := ok
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero magnitude should be accepted, got %v", err)
	}

	noCategory := ok
	noCategory.Category = "  "
	if err := noCategory.Validate(); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestLedgerValidate(t *testing.T) {
	if err := (Ledger{OwnerID: "u1", Currency: "USD"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Ledger{OwnerID: "", Currency: "USD"}).Validate(); err == nil {
		t.Fatal("expected error for missing owner")
	}
	if err := (Ledger{OwnerID: "u1", Currency: "US"}).Validate(); err == nil {
		t.Fatal("expected error for malformed currency")
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("get ledger: %w", ErrForbidden), "forbidden"},
		{fmt.Errorf("user: %w", ErrNotFound), "not_found"},
		{ErrPeriodNotDefined, "invalid_period"},
		{fmt.Errorf("write: %w", ErrRenderFailed), "render_failed"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
