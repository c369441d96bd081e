package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lysyi3m/opml-comb/app/validation"
)

// RunStore persists validation runs and their per-feed results in SQLite
type RunStore struct {
	db *DB
}

func NewRunRepository(db *DB) *RunStore {
	return &RunStore{db: db}
}

// CreateRun stores a run together with its results in a single transaction
func (r *RunStore) CreateRun(run Run, results []validation.Result) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, source_name, started_at, finished_at, total, valid, invalid, errored)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SourceName, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Total, run.Valid, run.Invalid, run.Errored)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO results (run_id, position, feed, url, status, error, categories,
		                     format, title, items, suggested_url, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range results {
		categories, err := json.Marshal(res.Categories)
		if err != nil {
			return fmt.Errorf("failed to marshal categories: %w", err)
		}

		_, err = stmt.Exec(run.ID, i, res.Feed, res.URL, string(res.Status), res.Error, string(categories),
			string(res.Format), res.Title, res.Items, res.SuggestedURL, res.Attempts)
		if err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", res.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// GetLatestRun returns the most recent run of a source, or nil if it never ran
func (r *RunStore) GetLatestRun(sourceName string) (*Run, error) {
	var run Run
	err := r.db.QueryRow(`
		SELECT id, source_name, started_at, finished_at, total, valid, invalid, errored
		FROM runs
		WHERE source_name = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, sourceName).Scan(
		&run.ID, &run.SourceName, &run.StartedAt, &run.FinishedAt,
		&run.Total, &run.Valid, &run.Invalid, &run.Errored,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return &run, nil
}

// GetRunResults returns the results of a run in feed order
func (r *RunStore) GetRunResults(runID string) ([]validation.Result, error) {
	rows, err := r.db.Query(`
		SELECT feed, url, status, error, categories, format, title, items, suggested_url, attempts
		FROM results
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run results: %w", err)
	}
	defer rows.Close()

	results := []validation.Result{}
	for rows.Next() {
		var res validation.Result
		var status, format, categories string

		err := rows.Scan(
			&res.Feed, &res.URL, &status, &res.Error, &categories,
			&format, &res.Title, &res.Items, &res.SuggestedURL, &res.Attempts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		if err := json.Unmarshal([]byte(categories), &res.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
		if res.Categories == nil {
			res.Categories = []string{}
		}
		res.Status = validation.Status(status)
		res.Format = validation.Format(format)

		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}

	return results, nil
}

func (r *RunStore) GetRunCount(sourceName string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM runs WHERE source_name = ?", sourceName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get run count: %w", err)
	}
	return count, nil
}
