package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Row is one record keyed by column name. Values are whatever the backend
// decoded: JSON scalars, SQL scalars or time values.
type Row map[string]any

func (r Row) value(col string) (any, error) {
	v, ok := r[col]
	if !ok {
		return nil, fmt.Errorf("column %q missing", col)
	}
	if v == nil {
		return nil, fmt.Errorf("column %q is null", col)
	}
	return v, nil
}

// Has reports whether col is present and not null.
func (r Row) Has(col string) bool {
	v, ok := r[col]
	return ok && v != nil
}

func (r Row) String(col string) (string, error) {
	v, err := r.value(col)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	}
	return "", fmt.Errorf("column %q: expected string, got %T", col, v)
}

// OptString returns "" for a missing or null column.
func (r Row) OptString(col string) (string, error) {
	if !r.Has(col) {
		return "", nil
	}
	return r.String(col)
}

func (r Row) Int64(col string) (int64, error) {
	v, err := r.value(col)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("column %q: %v is not an integer", col, t)
		}
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: %w", col, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("column %q: expected integer, got %T", col, v)
}

// Bool accepts only real booleans; 1, "true" and other truthy values are
// rejected.
func (r Row) Bool(col string) (bool, error) {
	v, err := r.value(col)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("column %q: expected bool, got %T", col, v)
	}
	return b, nil
}

func (r Row) Decimal(col string) (decimal.Decimal, error) {
	v, err := r.value(col)
	if err != nil {
		return decimal.Zero, err
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case []byte:
		return decimal.NewFromString(string(t))
	}
	return decimal.Zero, fmt.Errorf("column %q: expected number, got %T", col, v)
}

func (r Row) Date(col string) (core.Date, error) {
	v, err := r.value(col)
	if err != nil {
		return core.Date{}, err
	}
	switch t := v.(type) {
	case time.Time:
		return core.DateOf(t), nil
	case string:
		d, err := core.ParseDate(t)
		if err != nil {
			return core.Date{}, fmt.Errorf("column %q: %w", col, err)
		}
		return d, nil
	}
	return core.Date{}, fmt.Errorf("column %q: expected date, got %T", col, v)
}
