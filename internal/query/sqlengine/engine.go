// Package sqlengine executes chart queries through database/sql. The same
// engine serves Postgres (pgx) and DuckDB handles.
package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/observability"
	"github.com/promptchart/promptchart/internal/query"
)

type Config struct {
	// Timeout bounds one statement. Zero leaves the caller's deadline alone.
	Timeout time.Duration
	// ReadOnlyTx runs each statement inside a READ ONLY transaction.
	ReadOnlyTx bool
}

type Engine struct {
	db  *sql.DB
	cfg Config
}

func New(db *sql.DB, cfg Config) *Engine {
	return &Engine{db: db, cfg: cfg}
}

// Execute runs statement and returns its rows. Statements that are not a
// single SELECT never reach the database. Zero rows is EMPTY_RESULT.
func (e *Engine) Execute(ctx context.Context, statement string) (query.Result, error) {
	if e.db == nil {
		return query.Result{}, fmt.Errorf("database is required")
	}
	if err := query.CheckReadOnly(statement); err != nil {
		return query.Result{}, err
	}
	statement = strings.TrimRight(strings.TrimSpace(statement), "; \t\r\n")

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := e.run(ctx, statement)
	result.Duration = time.Since(start)
	observability.ObserveQuery(result.Duration, err)
	if err != nil {
		return query.Result{}, classify(ctx, err)
	}
	if len(result.Rows) == 0 {
		return query.Result{}, failure.New(failure.KindEmptyResult, "Query returned no results")
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, statement string) (query.Result, error) {
	if !e.cfg.ReadOnlyTx {
		rows, err := e.db.QueryContext(ctx, statement)
		if err != nil {
			return query.Result{}, err
		}
		return collect(rows)
	}

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return query.Result{}, err
	}
	result, err := collect(rows)
	if err != nil {
		return query.Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return query.Result{}, fmt.Errorf("commit read-only tx: %w", err)
	}
	return result, nil
}

func collect(rows *sql.Rows) (query.Result, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	out := make([]query.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(query.Row, len(values))
		for i, value := range values {
			row[i] = query.FromAny(value)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return query.Result{Columns: columns, Rows: out}, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failure.Wrap(err, failure.KindQueryExecutionFailed, "Database query timed out")
	}
	return failure.Wrap(err, failure.KindQueryExecutionFailed, "Database query failed: "+err.Error())
}
