package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/opml-comb/app/database"
	"github.com/lysyi3m/opml-comb/app/feed"
	"github.com/lysyi3m/opml-comb/app/validation"
)

// ValidateSourceTask validates every feed of a source's OPML file, stores the
// results as a run and schedules the next run one refresh interval later.
// An interrupted validation stores nothing.
type ValidateSourceTask struct {
	Task
	SourceConfig *feed.Config
	opmlPath     string
	userAgent    string
	parser       *feed.Parser
	deduplicator *feed.Deduplicator
	sourceRepo   database.SourceRepository
	runRepo      database.RunRepository
}

func NewValidateSourceTask(sourceConfig *feed.Config, opmlPath string, parser *feed.Parser, deduplicator *feed.Deduplicator,
	sourceRepo database.SourceRepository, runRepo database.RunRepository, userAgent string) *ValidateSourceTask {
	return &ValidateSourceTask{
		Task:         NewTask(TaskTypeValidateSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		opmlPath:     opmlPath,
		userAgent:    userAgent,
		parser:       parser,
		deduplicator: deduplicator,
		sourceRepo:   sourceRepo,
		runRepo:      runRepo,
	}
}

func (t *ValidateSourceTask) Execute(ctx context.Context) error {
	settings := t.SourceConfig.Settings

	data, err := os.ReadFile(t.opmlPath)
	if err != nil {
		slog.Error("Task failed", "type", "ValidateSource", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to read OPML file: %w", err)
	}

	feeds, err := t.parser.Run(data)
	if err != nil {
		slog.Error("Task failed", "type", "ValidateSource", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to parse OPML file: %w", err)
	}

	if settings.Dedupe {
		var duplicates []feed.Feed
		feeds, duplicates = t.deduplicator.Run(feeds)
		if len(duplicates) > 0 {
			slog.Debug("Duplicate feeds skipped", "source", t.SourceName, "count", len(duplicates))
		}
	}

	startedAt := time.Now()

	client := validation.NewHTTPClient(time.Duration(settings.Timeout) * time.Second)
	validator := validation.NewValidator(client, t.userAgent)
	results := validation.NewBatch(validator, settings.Concurrency).Run(ctx, feeds)

	// a cancelled batch holds context errors, not verdicts
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("validation interrupted: %w", err)
	}

	finishedAt := time.Now()
	counts := validation.CountByStatus(results)

	run := database.Run{
		ID:         uuid.NewString(),
		SourceName: t.SourceName,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Total:      len(results),
		Valid:      counts[validation.StatusValid],
		Invalid:    counts[validation.StatusInvalid],
		Errored:    counts[validation.StatusError],
	}

	if err := t.runRepo.CreateRun(run, results); err != nil {
		slog.Error("Task failed", "type", "ValidateSource", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to store validation run: %w", err)
	}

	nextRun := finishedAt.Add(time.Duration(settings.RefreshInterval) * time.Second)
	if err := t.sourceRepo.UpdateNextRun(t.SourceName, finishedAt, nextRun); err != nil {
		slog.Error("Task failed", "type", "ValidateSource", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to update next run time: %w", err)
	}

	slog.Info("Task completed",
		"type", "ValidateSource",
		"source", t.SourceName,
		"run_id", run.ID,
		"feeds", run.Total,
		"valid", run.Valid,
		"invalid", run.Invalid,
		"error", run.Errored,
		"next_run_at", nextRun.Format(time.RFC3339),
		"duration", t.GetDuration())

	return nil
}
