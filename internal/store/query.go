package store

import (
	"fmt"
	"strings"
)

// Op is a filter comparison.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
)

// Filter constrains one column.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Query selects rows of a single table. Queries are values; every builder
// method returns a modified copy.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	OrderBy string
	single  bool
}

// From starts a query on table selecting every column.
func From(table string) Query {
	return Query{Table: table}
}

// Select restricts the returned columns.
func (q Query) Select(cols ...string) Query {
	q.Columns = append([]string(nil), cols...)
	return q
}

func (q Query) Eq(col string, v any) Query  { return q.where(col, OpEq, v) }
func (q Query) Gte(col string, v any) Query { return q.where(col, OpGte, v) }
func (q Query) Lte(col string, v any) Query { return q.where(col, OpLte, v) }

// Order sorts ascending by col.
func (q Query) Order(col string) Query {
	q.OrderBy = col
	return q
}

// Single expects exactly one matching row.
func (q Query) Single() Query {
	q.single = true
	return q
}

// IsSingle reports whether the query runs in single-row mode.
func (q Query) IsSingle() bool {
	return q.single
}

func (q Query) where(col string, op Op, v any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Column: col, Op: op, Value: v})
	return q
}

func (q Query) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(%s)", q.Table, strings.Join(q.Columns, ","))
	for _, f := range q.Filters {
		fmt.Fprintf(&b, " %s.%s.%v", f.Column, f.Op, f.Value)
	}
	if q.single {
		b.WriteString(" single")
	}
	return b.String()
}

// CheckSingle applies single-row semantics to a result set.
func CheckSingle(rows []Row) error {
	switch {
	case len(rows) == 0:
		return ErrNoRows
	case len(rows) > 1:
		return fmt.Errorf("%w: %d rows", ErrMultipleRows, len(rows))
	}
	return nil
}
