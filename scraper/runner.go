package scraper

import (
	"context"
	"log/slog"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/site"
)

// Runner scrapes categories of any registered site through one browser.
// It is safe for concurrent use; every category gets its own session.
type Runner struct {
	browser engine.Browser
	cfg     config.ScraperConfig
	logger  *slog.Logger
}

// NewRunner creates a Runner backed by browser.
func NewRunner(browser engine.Browser, cfg config.ScraperConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{browser: browser, cfg: cfg, logger: logger}
}

// Run scrapes categories of siteName with workers in parallel (the
// configured pool size when workers < 1). onResult, if non-nil, observes
// each category result as it finishes. The only error is an unknown site:
// category failures are reported inside the aggregate.
func (r *Runner) Run(ctx context.Context, siteName string, categories []models.Category, workers int, onResult func(models.ScrapeResult)) (models.AggregateResult, error) {
	adapter, err := site.Lookup(siteName)
	if err != nil {
		return models.AggregateResult{}, err
	}
	if workers < 1 {
		workers = r.cfg.Workers
	}

	cs := engine.NewCategoryScraper(adapter, r.browser, r.cfg, r.logger)
	coord := engine.NewCoordinator(cs, r.logger.With("site", adapter.Name()))
	coord.OnResult = onResult
	return coord.Run(ctx, categories, workers), nil
}
