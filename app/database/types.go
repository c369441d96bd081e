package database

import (
	"time"
)

type Source struct {
	Name      string // Configuration source identifier derived from filename
	OPMLPath  string
	Enabled   bool
	LastRunAt *time.Time
	NextRunAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Run struct {
	ID         string
	SourceName string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Valid      int
	Invalid    int
	Errored    int
}
