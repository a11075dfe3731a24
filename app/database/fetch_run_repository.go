package database

import (
	"context"
	"fmt"
)

type FetchRunRepo struct {
	db *DB
}

var _ FetchRunRepository = (*FetchRunRepo)(nil)

func NewFetchRunRepository(db *DB) *FetchRunRepo {
	return &FetchRunRepo{db: db}
}

func (r *FetchRunRepo) RecordRun(ctx context.Context, run *FetchRun) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO fetch_runs (
			run_id, state, started_at, finished_at,
			fetched, inserted, updated, skipped, rejected, errors, sources
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), run.RunID, run.State, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Fetched, run.Inserted, run.Updated, run.Skipped, run.Rejected, run.Errors,
		run.Sources)
	if err != nil {
		return fmt.Errorf("failed to record fetch run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *FetchRunRepo) GetRecentRuns(ctx context.Context, limit int) ([]FetchRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(`
		SELECT run_id, state, started_at, finished_at,
		       fetched, inserted, updated, skipped, rejected, errors, sources
		FROM fetch_runs
		ORDER BY started_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent fetch runs: %w", err)
	}
	defer rows.Close()

	var runs []FetchRun
	for rows.Next() {
		var run FetchRun
		err := rows.Scan(
			&run.RunID, &run.State, &run.StartedAt, &run.FinishedAt,
			&run.Fetched, &run.Inserted, &run.Updated, &run.Skipped, &run.Rejected,
			&run.Errors, &run.Sources,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fetch runs: %w", err)
	}

	return runs, nil
}
