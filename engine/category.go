package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
	"golang.org/x/time/rate"
)

// CategoryScraper runs the full traversal of one category on one site.
// It is safe for concurrent use: every Run acquires its own session.
type CategoryScraper struct {
	adapter Adapter
	browser Browser
	cfg     config.ScraperConfig
	logger  *slog.Logger

	fetcher  *PageFetcher
	consent  *ConsentHandler
	scroller *ScrollDriver
}

// NewCategoryScraper wires the traversal components for adapter.
func NewCategoryScraper(adapter Adapter, browser Browser, cfg config.ScraperConfig, logger *slog.Logger) *CategoryScraper {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("site", adapter.Name())
	layout := adapter.Layout()

	fetcher := NewPageFetcher(logger)
	fetcher.ReadySelector = layout.ReadySelector
	fetcher.NavigationTimeout = durationOr(cfg.NavigationTimeout, fetcher.NavigationTimeout)
	fetcher.ReadyTimeout = durationOr(cfg.ReadyTimeout, fetcher.ReadyTimeout)
	fetcher.StableQuiet = durationOr(cfg.StableQuiet, fetcher.StableQuiet)
	fetcher.StableTimeout = durationOr(cfg.StableTimeout, fetcher.StableTimeout)
	fetcher.PollInterval = durationOr(cfg.PollInterval, fetcher.PollInterval)

	consent := NewConsentHandler(layout.ConsentSelector, durationOr(cfg.ConsentTimeout, 10*time.Second), logger)
	consent.PollInterval = fetcher.PollInterval

	scroller := NewScrollDriver(cfg.ScrollBatch, logger)
	scroller.StableQuiet = fetcher.StableQuiet
	scroller.StableTimeout = fetcher.StableTimeout

	return &CategoryScraper{
		adapter:  adapter,
		browser:  browser,
		cfg:      cfg,
		logger:   logger,
		fetcher:  fetcher,
		consent:  consent,
		scroller: scroller,
	}
}

// Adapter returns the site this scraper targets.
func (s *CategoryScraper) Adapter() Adapter {
	return s.adapter
}

// Run scrapes category and always returns a result. Page-level failures
// are skipped and counted; a fatal failure (no session, first listing
// unreachable, browser panic) yields a result with no records and
// Failure set.
func (s *CategoryScraper) Run(ctx context.Context, category models.Category) (result models.ScrapeResult) {
	log := s.logger.With("category", category.ID)
	result = models.ScrapeResult{Category: category.ID}

	// Registered first so it runs after the session is closed.
	defer func() {
		if r := recover(); r != nil {
			err := models.NewScrapeError(models.ErrCodeBrowserCrash, "category run aborted", fmt.Errorf("%v", r))
			log.Error("category aborted", "error", err)
			result.Records = nil
			result.Failure = err.Error()
		}
	}()

	sess, err := s.browser.NewSession(ctx)
	if err != nil {
		err = models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open browser session", err)
		log.Error("category aborted", "error", err)
		result.Failure = err.Error()
		return result
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("failed to close browser session", "error", cerr)
		}
	}()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.cfg.PageInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.PageInterval), 1)
	}
	p := &pass{
		CategoryScraper: s,
		sess:            sess,
		limiter:         limiter,
		layout:          s.adapter.Layout(),
		category:        category,
		log:             log,
	}

	first, err := p.fetch(ctx, 1)
	if err != nil {
		log.Error("initial listing fetch failed", "error", err)
		result.Failure = err.Error()
		return result
	}

	if p.layout.ConsentSelector != "" {
		state := s.consent.Dismiss(ctx, sess)
		log.Debug("consent handled", "state", state.String())
	}

	switch p.layout.Pagination {
	case InfiniteScroll:
		p.scroll(ctx, first, &result)
	default:
		p.pages(ctx, first, &result)
	}

	log.Info("category finished",
		"records", len(result.Records),
		"pages_attempted", result.PagesAttempted,
		"pages_succeeded", result.PagesSucceeded,
	)
	return result
}

// pass holds the per-run state of one category traversal.
type pass struct {
	*CategoryScraper
	sess     Session
	limiter  *rate.Limiter
	layout   Layout
	category models.Category
	log      *slog.Logger
}

func (p *pass) fetch(ctx context.Context, page int) (*Snapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, categorizeError(err, "navigation pacing interrupted")
	}
	return p.fetcher.Fetch(ctx, p.sess, p.adapter.ListingURL(p.category, page))
}

// recapture re-reads the current page after the consent banner is gone,
// falling back to the snapshot taken before it.
func (p *pass) recapture(ctx context.Context, before *Snapshot) *Snapshot {
	snap, err := p.fetcher.Capture(ctx, p.sess, before.URL)
	if err != nil {
		p.log.Warn("re-capture failed, using first snapshot", "error", err)
		return before
	}
	return snap
}

// pages walks numbered pages 1..bound strictly in order. Page 1 is the
// listing already loaded, re-read after consent handling.
func (p *pass) pages(ctx context.Context, first *Snapshot, result *models.ScrapeResult) {
	current := p.recapture(ctx, first)
	bound := ResolvePageCount(current, p.layout.BoundSelector, p.layout.BoundMatch)
	p.log.Info("pages found", "pages", bound)

	for page := 1; page <= bound; page++ {
		result.PagesAttempted++

		snap := current
		if page > 1 {
			var err error
			snap, err = p.fetch(ctx, page)
			if err != nil {
				p.log.Error("page skipped", "page", page, "pages", bound, "error", err)
				continue
			}
		}
		records := Extract(snap, p.layout, p.category.ID)
		result.Records = append(result.Records, records...)
		result.PagesSucceeded++

		p.log.Info("page scraped", "page", page, "pages", bound, "records", len(records))
	}
}

// scroll renders the full listing in one pass and extracts it once.
func (p *pass) scroll(ctx context.Context, first *Snapshot, result *models.ScrapeResult) {
	expected := ResolveItemCount(p.recapture(ctx, first), p.layout.BoundSelector)
	result.ExpectedCount = expected
	result.PagesAttempted = 1
	p.log.Info("products advertised", "expected", expected)

	steps, err := p.scroller.Run(ctx, p.sess, p.layout.ContainerSelector)
	if err != nil {
		p.log.Warn("scrolling stopped early, extracting what rendered", "steps", steps, "error", err)
	}

	snap, err := p.fetcher.Capture(ctx, p.sess, first.URL)
	if err != nil {
		p.log.Error("listing capture failed", "error", err)
		return
	}
	result.Records = Extract(snap, p.layout, p.category.ID)
	result.PagesSucceeded = 1

	p.log.Info("listing scraped", "records", len(result.Records), "expected", expected, "scroll_steps", steps)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
