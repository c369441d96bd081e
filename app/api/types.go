package api

import (
	"context"

	"github.com/lysyi3m/opml-comb/app/database"
	"github.com/lysyi3m/opml-comb/app/feed"
	"github.com/lysyi3m/opml-comb/app/tasks"
	"github.com/lysyi3m/opml-comb/app/validation"
)

type GeneratorInterface interface {
	Run(feeds []feed.Feed) (string, error)
}

type ValidatorInterface interface {
	Validate(ctx context.Context, f feed.Feed) validation.Result
}

var (
	_ GeneratorInterface = (*feed.Generator)(nil)
	_ ValidatorInterface = (*validation.Validator)(nil)
)

type Handler struct {
	sourceRepo   database.SourceRepository
	runRepo      database.RunRepository
	generator    GeneratorInterface
	parser       *feed.Parser
	deduplicator *feed.Deduplicator
	validator    ValidatorInterface
	configCache  *feed.ConfigCache
	scheduler    tasks.TaskSchedulerInterface
}
