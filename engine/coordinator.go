package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/shelfscan/models"
	"golang.org/x/sync/errgroup"
)

// Runner scrapes a single category. CategoryScraper is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, category models.Category) models.ScrapeResult
}

// Coordinator fans categories out over a fixed-size worker pool and merges
// their results.
type Coordinator struct {
	runner Runner
	logger *slog.Logger

	// OnResult, when set, is called once per category as it finishes.
	// Calls may come from several goroutines at once.
	OnResult func(models.ScrapeResult)
}

// NewCoordinator creates a Coordinator that scrapes through runner.
func NewCoordinator(runner Runner, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{runner: runner, logger: logger}
}

// Run scrapes every category with at most workers in flight and blocks
// until all of them have produced a result. Categories never affect each
// other: a failing or panicking category contributes an empty result.
// Records are grouped by category in completion order.
func (c *Coordinator) Run(ctx context.Context, categories []models.Category, workers int) models.AggregateResult {
	if workers < 1 {
		workers = 1
	}
	start := time.Now()
	c.logger.Info("scrape started", "categories", len(categories), "workers", workers)

	var (
		mu      sync.Mutex
		results = make([]models.ScrapeResult, 0, len(categories))
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, category := range categories {
		g.Go(func() error {
			res := c.runOne(ctx, category)

			mu.Lock()
			results = append(results, res)
			done := len(results)
			mu.Unlock()

			c.logger.Info("category completed",
				"category", category.ID,
				"records", len(res.Records),
				"done", done,
				"total", len(categories),
			)
			if c.OnResult != nil {
				c.OnResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	agg := models.Merge(results...)
	c.logger.Info("scrape finished",
		"categories", len(agg.Categories),
		"records", len(agg.Records),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return agg
}

func (c *Coordinator) runOne(ctx context.Context, category models.Category) (res models.ScrapeResult) {
	defer func() {
		if r := recover(); r != nil {
			err := models.NewScrapeError(models.ErrCodeInternal, "category worker panicked", fmt.Errorf("%v", r))
			c.logger.Error("category aborted", "category", category.ID, "error", err)
			res = models.ScrapeResult{Category: category.ID, Failure: err.Error()}
		}
	}()
	return c.runner.Run(ctx, category)
}
