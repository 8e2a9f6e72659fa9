package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/promptchart/promptchart/internal/pinned"
)

type Repository struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewRepository(db *sql.DB, clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repository{db: db, clock: clock}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping pinned chart db: %w", err)
	}
	return nil
}

func (r *Repository) Pin(ctx context.Context, prompt, query string) (pinned.Chart, error) {
	now := r.clock.Now().UTC()
	chart := pinned.Chart{
		Prompt:    prompt,
		Query:     query,
		IsPinned:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.QueryRowContext(ctx, `
INSERT INTO pinned_charts (prompt, query, is_pinned, created_at, updated_at)
VALUES ($1, $2, TRUE, $3, $3)
RETURNING id`, prompt, query, now).Scan(&chart.ID); err != nil {
		return pinned.Chart{}, fmt.Errorf("pin chart: %w", err)
	}
	return chart, nil
}

func (r *Repository) ListPinned(ctx context.Context) ([]pinned.Chart, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, prompt, query, is_pinned, created_at, updated_at
FROM pinned_charts
WHERE is_pinned = TRUE
ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list pinned charts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	charts := make([]pinned.Chart, 0)
	for rows.Next() {
		chart, err := scanChart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pinned chart: %w", err)
		}
		charts = append(charts, chart)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pinned charts: %w", err)
	}
	return charts, nil
}

func (r *Repository) FindPinned(ctx context.Context, prompt, query string) (pinned.Chart, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, prompt, query, is_pinned, created_at, updated_at
FROM pinned_charts
WHERE prompt = $1 AND query = $2 AND is_pinned = TRUE
ORDER BY id DESC
LIMIT 1`, prompt, query)
	chart, err := scanChart(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pinned.Chart{}, pinned.ErrNotFound
		}
		return pinned.Chart{}, fmt.Errorf("find pinned chart: %w", err)
	}
	return chart, nil
}

func (r *Repository) GetPinned(ctx context.Context, id int64) (pinned.Chart, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, prompt, query, is_pinned, created_at, updated_at
FROM pinned_charts
WHERE id = $1 AND is_pinned = TRUE`, id)
	chart, err := scanChart(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pinned.Chart{}, pinned.ErrNotFound
		}
		return pinned.Chart{}, fmt.Errorf("get pinned chart: %w", err)
	}
	return chart, nil
}

func (r *Repository) Unpin(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE pinned_charts
SET is_pinned = FALSE, updated_at = $2
WHERE id = $1`, id, r.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("unpin chart: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unpin chart rows affected: %w", err)
	}
	if affected == 0 {
		return pinned.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChart(s scanner) (pinned.Chart, error) {
	var chart pinned.Chart
	err := s.Scan(
		&chart.ID,
		&chart.Prompt,
		&chart.Query,
		&chart.IsPinned,
		&chart.CreatedAt,
		&chart.UpdatedAt,
	)
	return chart, err
}
