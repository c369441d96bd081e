package validation

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/opml-comb/app/feed"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 20

// Batch validates a list of feeds concurrently with one shared validator.
type Batch struct {
	validator   *Validator
	concurrency int
}

func NewBatch(validator *Validator, concurrency int) *Batch {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Batch{
		validator:   validator,
		concurrency: concurrency,
	}
}

// Run returns one result per feed; results[i] belongs to feeds[i] whatever
// the completion order.
func (b *Batch) Run(ctx context.Context, feeds []feed.Feed) []Result {
	start := time.Now()
	results := make([]Result, len(feeds))

	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, f := range feeds {
		g.Go(func() error {
			results[i] = b.validator.Validate(ctx, f)
			return nil
		})
	}

	_ = g.Wait()

	counts := CountByStatus(results)
	slog.Info("Batch validated",
		"feeds", len(feeds),
		"valid", counts[StatusValid],
		"invalid", counts[StatusInvalid],
		"error", counts[StatusError],
		"duration", time.Since(start))

	return results
}

func CountByStatus(results []Result) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
