package query

import (
	"context"
	"time"
)

// Row holds one value per result column, in column order.
type Row []Value

// Result is a tabular query result whose columns are only known once the
// statement has run. Every row has len(Columns) values.
type Result struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

func (r Result) Len() int {
	return len(r.Rows)
}

// Column returns every row's value for the column at index.
func (r Result) Column(index int) []Value {
	out := make([]Value, 0, len(r.Rows))
	for _, row := range r.Rows {
		if index < len(row) {
			out = append(out, row[index])
		} else {
			out = append(out, Null())
		}
	}
	return out
}

// Records renders rows as column-name keyed maps for JSON responses.
func (r Result) Records() []map[string]Value {
	out := make([]map[string]Value, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(map[string]Value, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		out = append(out, record)
	}
	return out
}

// Engine runs one read-only statement against the relational store.
type Engine interface {
	Execute(ctx context.Context, sql string) (Result, error)
}
