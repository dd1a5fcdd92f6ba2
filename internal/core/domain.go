package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// User is a validated snapshot of an identity plus its settings row.
	User struct {
		ID            string
		Email         string
		Username      string
		AllowReport   bool
		CurrentLedger int64
		Locale        string // optional preferred locale, "xx-xx"
	}

	Ledger struct {
		ID       int64
		OwnerID  string
		Name     string
		Currency string // ISO 4217 code
	}

	// Entry is a single dated transaction. Amount is a non-negative
	// magnitude; IsPositive carries the polarity.
	Entry struct {
		ID         int64
		OwnerID    string
		LedgerID   int64
		Date       Date
		Amount     decimal.Decimal
		IsPositive bool
		Category   string
		Note       string
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyIdentifier = errors.New("empty identifier")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. A trailing time component, as some
// stores return for date columns, is ignored.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return ErrEmptyIdentifier
	}
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("empty email")
	}
	return nil
}

func (l Ledger) Validate() error {
	if strings.TrimSpace(l.OwnerID) == "" {
		return ErrEmptyIdentifier
	}
	if len(strings.TrimSpace(l.Currency)) != 3 {
		return errors.New("invalid currency code")
	}
	return nil
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsIncome reports whether the entry is a credit (income) entry.
func (e Entry) IsIncome() bool {
	return e.IsPositive
}
