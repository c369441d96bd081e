package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/opml-comb/app/cfg"
	"github.com/lysyi3m/opml-comb/app/database"
	"github.com/lysyi3m/opml-comb/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var (
	ErrSourceNotFound   = errors.New("source not found")
	ErrValidationQueued = errors.New("validation already queued")
)

const DefaultTaskTimeout = 5 * time.Minute

type Scheduler struct {
	sourceRepo   database.SourceRepository
	runRepo      database.RunRepository
	configCache  *feed.ConfigCache
	parser       *feed.Parser
	deduplicator *feed.Deduplicator
	userAgent    string
	interval     time.Duration
	workerCount  int
	taskTimeout  time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface

	mu      sync.Mutex
	pending map[string]bool // sources with a validation queued or running
}

func NewScheduler(configCache *feed.ConfigCache, sourceRepo database.SourceRepository,
	runRepo database.RunRepository) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		sourceRepo:   sourceRepo,
		runRepo:      runRepo,
		configCache:  configCache,
		parser:       feed.NewParser(),
		deduplicator: feed.NewDeduplicator(),
		userAgent:    cfg.UserAgent,
		interval:     time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:  cfg.WorkerCount,
		taskTimeout:  DefaultTaskTimeout,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, 300),
		pending:      make(map[string]bool),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueValidation queues a validation run for a configured source unless
// one is already queued or running.
func (s *Scheduler) EnqueueValidation(sourceName string) error {
	sourceConfig, err := s.configCache.GetConfig(sourceName)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, sourceName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[sourceName] {
		return ErrValidationQueued
	}

	task := NewValidateSourceTask(sourceConfig, s.configCache.OPMLPath(sourceConfig),
		s.parser, s.deduplicator, s.sourceRepo, s.runRepo, s.userAgent)
	if err := s.EnqueueTask(task); err != nil {
		return err
	}

	s.pending[sourceName] = true
	return nil
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.configCache.GetConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
	} else {
		slog.Debug("Processing source configurations", "count", len(sourceConfigs))
	}

	now := time.Now()
	for _, sourceConfig := range sourceConfigs {
		syncTask := NewSyncSourceTask(sourceConfig, s.configCache.OPMLPath(sourceConfig), s.sourceRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceTask", "source", sourceConfig.Name, "error", err)
			continue
		}

		if !sourceConfig.Settings.Enabled {
			slog.Debug("Source disabled, skipping ValidateSourceTask", "source", sourceConfig.Name)
			continue
		}

		source, err := s.sourceRepo.GetSource(sourceConfig.Name)
		if err != nil {
			slog.Warn("Failed to get source from database, skipping", "source", sourceConfig.Name, "error", err)
			continue
		}
		if source != nil && source.NextRunAt != nil && source.NextRunAt.After(now) {
			slog.Debug("Source not due for validation yet", "source", sourceConfig.Name, "next_run_at", source.NextRunAt)
			continue
		}

		if err := s.EnqueueValidation(sourceConfig.Name); err != nil {
			slog.Warn("Failed to enqueue ValidateSourceTask", "source", sourceConfig.Name, "error", err)
		}
	}

	s.disableRemovedSources(sourceConfigs)
}

// disableRemovedSources keeps run history for sources whose YAML file is gone
// but stops scheduling them.
func (s *Scheduler) disableRemovedSources(sourceConfigs map[string]*feed.Config) {
	sources, err := s.sourceRepo.GetSources()
	if err != nil {
		slog.Warn("Failed to list sources from database", "error", err)
		return
	}

	for _, source := range sources {
		if _, ok := sourceConfigs[source.Name]; ok || !source.Enabled {
			continue
		}
		if err := s.sourceRepo.SetSourceEnabled(source.Name, false); err != nil {
			slog.Warn("Failed to disable removed source", "source", source.Name, "error", err)
			continue
		}
		slog.Info("Source disabled", "source", source.Name, "reason", "configuration removed")
	}
}

func (s *Scheduler) enqueueTasks() {
	due, err := s.sourceRepo.GetSourcesDue(time.Now())
	if err != nil {
		slog.Warn("Failed to get sources due for validation", "error", err)
		return
	}

	slog.Debug("Processing sources due for validation", "count", len(due))

	for _, source := range due {
		sourceConfig, err := s.configCache.GetConfig(source.Name)
		if err != nil || !sourceConfig.Settings.Enabled {
			slog.Debug("Source not enabled in configuration, skipping", "source", source.Name)
			continue
		}

		err = s.EnqueueValidation(source.Name)
		if errors.Is(err, ErrValidationQueued) {
			slog.Debug("Validation already queued", "source", source.Name)
			continue
		}
		if err != nil {
			slog.Warn("Failed to enqueue ValidateSourceTask", "source", source.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := s.taskContext(task)
	defer cancel()

	err := task.Execute(taskCtx)

	if err == nil {
		s.release(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.release(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.release(task)
			}
		}
	}()
}

// taskContext bounds every task by taskTimeout except source validations,
// whose length grows with the source and is already bounded per request.
func (s *Scheduler) taskContext(task TaskInterface) (context.Context, context.CancelFunc) {
	if task.GetType() == TaskTypeValidateSource {
		return context.WithCancel(s.ctx)
	}
	return context.WithTimeout(s.ctx, s.taskTimeout)
}

func (s *Scheduler) release(task TaskInterface) {
	if task.GetType() != TaskTypeValidateSource {
		return
	}
	s.mu.Lock()
	delete(s.pending, task.GetSourceName())
	s.mu.Unlock()
}
