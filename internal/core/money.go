// Package core provides the report domain model and its formatting helpers.
//
// This file contains locale parsing and currency/date formatting used by the
// report renderer and the request validation layer.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale is used when a request does not name a locale.
const DefaultLocale = "en-us"

// ParseLocale validates a "<lang>-<region>" locale string such as "en-us",
// "ja-jp" or "de-de" and returns its language tag.
//
// Both subtags must be two letters and known to the CLDR registry. Any other
// shape (underscores, extra subtags, bare languages) fails with
// ErrInvalidLocale.
func ParseLocale(s string) (language.Tag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.Count(s, "-") != 1 {
		return language.Und, fmt.Errorf("%w: %q must be in the format xx-xx", ErrInvalidLocale, s)
	}
	parts := strings.Split(s, "-")
	if len(parts[0]) != 2 || len(parts[1]) != 2 {
		return language.Und, fmt.Errorf("%w: %q must be in the format xx-xx", ErrInvalidLocale, s)
	}
	base, err := language.ParseBase(parts[0])
	if err != nil {
		return language.Und, fmt.Errorf("%w: unknown language %q", ErrInvalidLocale, parts[0])
	}
	region, err := language.ParseRegion(parts[1])
	if err != nil {
		return language.Und, fmt.Errorf("%w: unknown region %q", ErrInvalidLocale, parts[1])
	}
	tag, err := language.Compose(base, region)
	if err != nil {
		return language.Und, fmt.Errorf("%w: %v", ErrInvalidLocale, err)
	}
	return tag, nil
}

// Formatter renders amounts and dates for one locale and currency.
type Formatter struct {
	tag     language.Tag
	unit    currency.Unit
	printer *message.Printer
	symbols numberSymbols
}

// NewFormatter builds a formatter for the given locale tag and ISO 4217
// currency code.
func NewFormatter(tag language.Tag, code string) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	printer := message.NewPrinter(tag)
	return &Formatter{
		tag:     tag,
		unit:    unit,
		printer: printer,
		symbols: localSymbols(printer),
	}, nil
}

// Currency returns the ISO code of the formatter's currency.
func (f *Formatter) Currency() string {
	return f.unit.String()
}

// Locale returns the formatter's language tag.
func (f *Formatter) Locale() language.Tag {
	return f.tag
}

// Amount formats a magnitude with the currency symbol, e.g. "$ 1,234.50".
// Digits come from the decimal itself, so amounts of any size print exactly.
func (f *Formatter) Amount(d decimal.Decimal) string {
	sym := f.printer.Sprint(currency.Symbol(f.unit))
	return sym + " " + f.symbols.format(d.Round(2))
}

// numberSymbols are the locale's digits and separators.
type numberSymbols struct {
	digits  [10]string
	group   string
	decimal string
}

// localSymbols reads the separators off a sample printed by the locale's
// printer. The sample has seven integer digits so locales that only group
// from five digits up still show their separator.
func localSymbols(p *message.Printer) numberSymbols {
	s := numberSymbols{group: ",", decimal: "."}
	for i := range s.digits {
		s.digits[i] = p.Sprint(number.Decimal(i))
	}
	sample := p.Sprint(number.Decimal(1234567.5, number.Scale(1)))
	_, rest, ok := strings.Cut(sample, s.digits[1])
	if !ok {
		return s
	}
	if i := strings.Index(rest, s.digits[2]); i >= 0 {
		s.group = rest[:i]
	}
	_, tail, ok := strings.Cut(rest, s.digits[7])
	if !ok {
		return s
	}
	if i := strings.LastIndex(tail, s.digits[5]); i > 0 {
		s.decimal = tail[:i]
	}
	return s
}

func (s numberSymbols) format(d decimal.Decimal) string {
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")
	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteString(s.group)
		}
		b.WriteString(s.digits[r-'0'])
	}
	b.WriteString(s.decimal)
	for _, r := range frac {
		b.WriteString(s.digits[r-'0'])
	}
	return b.String()
}

// Percent formats a percentage with two fixed decimals, e.g. "42.50%".
func (f *Formatter) Percent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// Date formats a calendar date in the long form customary for the locale's
// region. Month names are always English.
func (f *Formatter) Date(d Date) string {
	return d.Format(f.dateLayout())
}

// Timestamp formats a generation timestamp.
func (f *Formatter) Timestamp(t time.Time) string {
	return t.Format(f.dateLayout() + " 15:04:05")
}

func (f *Formatter) dateLayout() string {
	region, _ := f.tag.Region()
	base, _ := f.tag.Base()
	switch {
	case region.String() == "US":
		return "January 02, 2006"
	case base.String() == "ja", base.String() == "zh", base.String() == "ko":
		return "2006-01-02"
	default:
		return "02 January 2006"
	}
}
