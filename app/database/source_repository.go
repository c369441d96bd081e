package database

import (
	"database/sql"
	"fmt"
	"time"
)

const sourceColumns = `name, opml_path, enabled, last_run_at, next_run_at, created_at, updated_at`

// SourceStore persists validation sources in SQLite
type SourceStore struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// UpsertSource inserts a source or refreshes its path and enabled flag
func (r *SourceStore) UpsertSource(name, opmlPath string, enabled bool) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		INSERT INTO sources (name, opml_path, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		SET opml_path = excluded.opml_path, enabled = excluded.enabled, updated_at = excluded.updated_at
	`, name, opmlPath, enabled, now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

func (r *SourceStore) SetSourceEnabled(name string, enabled bool) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET enabled = ?, updated_at = ?
		WHERE name = ?
	`, enabled, time.Now().UTC(), name)

	if err != nil {
		return fmt.Errorf("failed to set source enabled status: %w", err)
	}

	return nil
}

// UpdateNextRun records when a source was last validated and when it is due again
func (r *SourceStore) UpdateNextRun(name string, lastRun, nextRun time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_run_at = ?, next_run_at = ?, updated_at = ?
		WHERE name = ?
	`, lastRun.UTC(), nextRun.UTC(), time.Now().UTC(), name)

	if err != nil {
		return fmt.Errorf("failed to update next run time: %w", err)
	}

	return nil
}

func (r *SourceStore) GetSource(name string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

func (r *SourceStore) GetSources() ([]Source, error) {
	return r.querySources(`SELECT ` + sourceColumns + ` FROM sources ORDER BY name`)
}

// GetSourcesDue returns enabled sources that have never run or whose next run has passed
func (r *SourceStore) GetSourcesDue(now time.Time) ([]Source, error) {
	return r.querySources(`
		SELECT `+sourceColumns+`
		FROM sources
		WHERE enabled = 1
		  AND (next_run_at IS NULL OR next_run_at <= ?)
		ORDER BY next_run_at IS NOT NULL, next_run_at
		LIMIT 50
	`, now.UTC())
}

func (r *SourceStore) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func (r *SourceStore) querySources(query string, args ...any) ([]Source, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var source Source
	err := row.Scan(
		&source.Name, &source.OPMLPath, &source.Enabled,
		&source.LastRunAt, &source.NextRunAt,
		&source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &source, nil
}
