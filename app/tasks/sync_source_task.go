package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/opml-comb/app/database"
	"github.com/lysyi3m/opml-comb/app/feed"
)

// SyncSourceTask records a source configuration file in the database so the
// scheduler can track its runs. A source whose settings disable it is kept
// but marked disabled.
type SyncSourceTask struct {
	Task
	SourceConfig *feed.Config
	opmlPath     string
	sourceRepo   database.SourceRepository
}

func NewSyncSourceTask(sourceConfig *feed.Config, opmlPath string, sourceRepo database.SourceRepository) *SyncSourceTask {
	return &SyncSourceTask{
		Task:         NewTask(TaskTypeSyncSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		opmlPath:     opmlPath,
		sourceRepo:   sourceRepo,
	}
}

func (t *SyncSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.sourceRepo.UpsertSource(t.SourceName, t.opmlPath, t.SourceConfig.Settings.Enabled)
	if err != nil {
		slog.Error("Task failed", "type", "SyncSource", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSource",
		"source", t.SourceName,
		"enabled", t.SourceConfig.Settings.Enabled,
		"duration", t.GetDuration())

	return nil
}
