package core

import (
	"fmt"
	"time"
)

// Period is a calendar month of a given year.
type Period struct {
	Month int
	Year  int
}

// NewPeriod returns the period containing t.
func NewPeriod(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d outside [1,12]", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// IsZero reports whether the period was never set.
func (p Period) IsZero() bool {
	return p.Month == 0 && p.Year == 0
}

// MonthName returns the English month name, e.g. "March".
func (p Period) MonthName() string {
	return time.Month(p.Month).String()
}

// String renders the period as "<Month> <Year>".
func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.MonthName(), p.Year)
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	if p.Month <= 1 {
		return Period{Month: 12, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

// Before reports whether p is an earlier month than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Key renders the period as "YYYY-MM".
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ParsePeriodKey parses the output of Key.
func ParsePeriodKey(s string) (Period, error) {
	var p Period
	if _, err := fmt.Sscanf(s, "%4d-%2d", &p.Year, &p.Month); err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Range returns the inclusive first and last day of the period.
func (p Period) Range() (start, end Date, err error) {
	return ResolveRange(p.Month, p.Year)
}

// ResolveRange returns the first and last calendar day of month/year.
// Day zero of the following month normalizes to the last day of this one,
// which keeps February leap-year correct.
func ResolveRange(month, year int) (start, end Date, err error) {
	if err := (Period{Month: month, Year: year}).Validate(); err != nil {
		return Date{}, Date{}, err
	}
	start = NewDate(year, month, 1)
	end = Date{Time: time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)}
	return start, end, nil
}

// FilterByRange keeps entries dated within [start, end], both inclusive,
// in their original order.
func FilterByRange(entries []Entry, start, end Date) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Date.Before(start.Time) || e.Date.After(end.Time) {
			continue
		}
		out = append(out, e)
	}
	return out
}
