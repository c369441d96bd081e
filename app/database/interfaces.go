package database

import (
	"time"

	"github.com/lysyi3m/opml-comb/app/validation"
)

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetSources() ([]Source, error)
	GetSourcesDue(now time.Time) ([]Source, error)
	GetSourceCount() (int, error)

	UpsertSource(name, opmlPath string, enabled bool) error
	SetSourceEnabled(name string, enabled bool) error
	UpdateNextRun(name string, lastRun, nextRun time.Time) error
}

type RunRepository interface {
	GetLatestRun(sourceName string) (*Run, error)
	GetRunResults(runID string) ([]validation.Result, error)
	GetRunCount(sourceName string) (int, error)

	CreateRun(run Run, results []validation.Result) error
}

var (
	_ SourceRepository = (*SourceStore)(nil)
	_ RunRepository    = (*RunStore)(nil)
)
