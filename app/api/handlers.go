package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/opml-comb/app/database"
	"github.com/lysyi3m/opml-comb/app/feed"
	"github.com/lysyi3m/opml-comb/app/report"
	"github.com/lysyi3m/opml-comb/app/tasks"
	"github.com/lysyi3m/opml-comb/app/validation"
)

func NewHandler(configCache *feed.ConfigCache, sourceRepo database.SourceRepository,
	runRepo database.RunRepository, validator ValidatorInterface,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sourceRepo:   sourceRepo,
		runRepo:      runRepo,
		generator:    feed.NewGenerator(),
		parser:       feed.NewParser(),
		deduplicator: feed.NewDeduplicator(),
		validator:    validator,
		configCache:  configCache,
		scheduler:    scheduler,
	}
}

// GetReport renders the latest run of a source as a Markdown validation report.
func (h *Handler) GetReport(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	run, results, ok := h.latestRun(c, name)
	if !ok {
		return
	}

	c.Header("X-Run-ID", run.ID)
	c.Header("X-Source-Name", name)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8",
		[]byte(report.Validation(results, name, run.FinishedAt.In(time.Local))))
}

// GetOPML exports a source's subscription list. With valid_only=true only feeds
// that were valid in the latest run are kept.
func (h *Handler) GetOPML(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(h.configCache.OPMLPath(sourceConfig))
	if err != nil {
		slog.Error("OPML file unavailable", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	feeds, err := h.parser.Run(data)
	if err != nil {
		slog.Error("OPML parse error", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if sourceConfig.Settings.Dedupe {
		feeds, _ = h.deduplicator.Run(feeds)
	}

	if c.Query("valid_only") == "true" {
		_, results, ok := h.latestRun(c, name)
		if !ok {
			return
		}
		feeds = keepValid(feeds, results)
	}

	opml, err := h.generator.Run(feeds)
	if err != nil {
		slog.Error("OPML generation error", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Feed-Count", strconv.Itoa(len(feeds)))
	c.Header("X-Source-Name", name)
	c.Data(http.StatusOK, "text/x-opml; charset=utf-8", []byte(opml))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))

	for _, sourceConfig := range configs {
		sourceInfo := map[string]interface{}{
			"name":             sourceConfig.Name,
			"opml":             sourceConfig.OPML,
			"enabled":          sourceConfig.Settings.Enabled,
			"dedupe":           sourceConfig.Settings.Dedupe,
			"concurrency":      sourceConfig.Settings.Concurrency,
			"refresh_interval": (time.Duration(sourceConfig.Settings.RefreshInterval) * time.Second).String(),
			"timeout":          (time.Duration(sourceConfig.Settings.Timeout) * time.Second).String(),
		}

		if source, err := h.sourceRepo.GetSource(sourceConfig.Name); err == nil && source != nil {
			sourceInfo["last_run_at"] = source.LastRunAt
			sourceInfo["next_run_at"] = source.NextRunAt
		}

		if run, err := h.runRepo.GetLatestRun(sourceConfig.Name); err == nil && run != nil {
			sourceInfo["latest_run"] = map[string]interface{}{
				"id":          run.ID,
				"finished_at": run.FinishedAt,
				"total":       run.Total,
				"valid":       run.Valid,
				"invalid":     run.Invalid,
				"error":       run.Errored,
			}
		}

		if runCount, err := h.runRepo.GetRunCount(sourceConfig.Name); err == nil {
			sourceInfo["run_count"] = runCount
		}

		sources = append(sources, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIValidateSource(c *gin.Context) {
	name := c.Param("name")

	err := h.scheduler.EnqueueValidation(name)
	switch {
	case errors.Is(err, tasks.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	case errors.Is(err, tasks.ErrValidationQueued):
		c.JSON(http.StatusConflict, gin.H{"error": "Validation already queued"})
		return
	case err != nil:
		slog.Error("Error enqueueing validation task", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue validation task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Validation task enqueued",
		"source":  name,
	})
}

// APIValidateURL validates a single feed URL synchronously.
func (h *Handler) APIValidateURL(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid url parameter"})
		return
	}

	result := h.validator.Validate(c.Request.Context(), feed.Feed{
		Title:    rawURL,
		XMLURL:   rawURL,
		Category: []string{},
	})

	c.JSON(http.StatusOK, result)
}

// latestRun writes the error response itself when ok is false.
func (h *Handler) latestRun(c *gin.Context, name string) (*database.Run, []validation.Result, bool) {
	run, err := h.runRepo.GetLatestRun(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_latest_run", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, nil, false
	}
	if run == nil {
		c.String(http.StatusNotFound, "No validation run yet")
		return nil, nil, false
	}

	results, err := h.runRepo.GetRunResults(run.ID)
	if err != nil {
		slog.Error("Database error", "operation", "get_run_results", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, nil, false
	}

	return run, results, true
}

func keepValid(feeds []feed.Feed, results []validation.Result) []feed.Feed {
	valid := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Status == validation.StatusValid {
			valid[r.URL] = true
		}
	}

	kept := make([]feed.Feed, 0, len(feeds))
	for _, f := range feeds {
		if valid[f.XMLURL] {
			kept = append(kept, f)
		}
	}
	return kept
}
