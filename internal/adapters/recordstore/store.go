// Package recordstore reads and writes durable game records (races, ballots,
// rivalries, profiles) in a table store. It never computes derived values.
package recordstore

import (
	"context"
	"regexp"
)

// Record is one row keyed by column name.
type Record map[string]any

// Op is a filter comparison.
type Op string

// Supported comparisons. The names match the PostgREST operators.
const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Filter restricts a query to rows where Column Op Value holds.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq is shorthand for an equality filter.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// Order sorts query results by one column.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a select. Zero Columns means all columns; zero Limit means
// no limit. Offset skips that many rows after ordering.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Order   []Order
	Limit   int
	Offset  int
}

// Store is the narrow table API the game needs.
type Store interface {
	Select(ctx context.Context, q Query) ([]Record, error)
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	Update(ctx context.Context, table string, key Filter, patch Record) error
}

// Tables that may be addressed.
const (
	TableRaces       = "races"
	TableResults     = "race_results"
	TablePredictions = "predictions"
	TableRivalries   = "rivalries"
	TableProfiles    = "profiles"
)

var knownTables = map[string]struct{}{
	TableRaces:       {},
	TableResults:     {},
	TablePredictions: {},
	TableRivalries:   {},
	TableProfiles:    {},
}

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkTable(table string) error {
	if _, ok := knownTables[table]; !ok {
		return &QueryError{Reason: "unknown table " + table, Err: ErrUnknownTable}
	}
	return nil
}

func checkColumn(col string) error {
	if !columnPattern.MatchString(col) {
		return &QueryError{Reason: "invalid column " + col, Err: ErrInvalidQuery}
	}
	return nil
}

// validate checks everything a backend will interpolate into a request.
func (q Query) validate() error {
	if err := checkTable(q.Table); err != nil {
		return err
	}
	for _, c := range q.Columns {
		if err := checkColumn(c); err != nil {
			return err
		}
	}
	for _, f := range q.Filters {
		if err := f.validate(); err != nil {
			return err
		}
	}
	for _, o := range q.Order {
		if err := checkColumn(o.Column); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return &QueryError{Reason: "negative limit", Err: ErrInvalidQuery}
	}
	if q.Offset < 0 {
		return &QueryError{Reason: "negative offset", Err: ErrInvalidQuery}
	}
	return nil
}

func (f Filter) validate() error {
	if err := checkColumn(f.Column); err != nil {
		return err
	}
	if !f.Op.valid() {
		return &QueryError{Reason: "unsupported operator " + string(f.Op), Err: ErrInvalidQuery}
	}
	return nil
}

func checkRecord(rec Record) error {
	if len(rec) == 0 {
		return &QueryError{Reason: "empty record", Err: ErrInvalidQuery}
	}
	for col := range rec {
		if err := checkColumn(col); err != nil {
			return err
		}
	}
	return nil
}
