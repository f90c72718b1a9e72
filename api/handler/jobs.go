package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/output"
	"github.com/use-agent/shelfscan/site"
	"github.com/use-agent/shelfscan/webhook"
)

// Runner executes one scrape. scraper.Runner is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, site string, categories []models.Category, workers int, onResult func(models.ScrapeResult)) (models.AggregateResult, error)
}

// JobDeps are the collaborators of the job endpoints. Sink and Cache are
// optional.
type JobDeps struct {
	Runner Runner
	Sink   output.Sink
	Target output.Target
	Cache  *cache.Cache
	Store  *JobStore
	Logger *slog.Logger
}

// PostJob returns a handler for POST /api/v1/jobs.
// It validates the request, answers from cache when allowed, and otherwise
// runs the scrape in the background.
func PostJob(d JobDeps) gin.HandlerFunc {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return func(c *gin.Context) {
		var req models.JobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		adapter, err := site.Lookup(req.Site)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}

		target := d.Target
		if req.Output != nil {
			target = target.Merge(output.Target{
				Prefix: req.Output.Prefix,
				Folder: req.Output.Folder,
				Format: req.Output.Format,
			})
		}
		if err := target.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}

		key := cache.Key(adapter.Name(), req.Categories)
		job := d.Store.Create(adapter.Name(), len(req.Categories))

		if d.Cache != nil && req.MaxAge > 0 {
			if agg, hit := d.Cache.Get(key, req.MaxAge); hit {
				job.finish(agg, "", "hit", nil)
				d.Logger.Info("job answered from cache", "id", job.ID(), "site", adapter.Name())
				notify(job, req)
				c.JSON(http.StatusOK, models.JobResponse{
					ID:     job.ID(),
					Status: job.Status(false).Status,
					Site:   adapter.Name(),
					Total:  len(req.Categories),
				})
				return
			}
		}

		go runJob(d, job, req, target, key)

		c.JSON(http.StatusAccepted, models.JobResponse{
			ID:     job.ID(),
			Status: models.JobProcessing,
			Site:   adapter.Name(),
			Total:  len(req.Categories),
		})
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id. Pass ?records=false
// to receive metadata only.
func GetJob(store *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Get(c.Param("id"))
		if !ok {
			respondError(c, http.StatusNotFound, models.NewScrapeError(models.ErrCodeNotFound, "job not found", nil))
			return
		}
		c.JSON(http.StatusOK, job.Status(c.DefaultQuery("records", "true") != "false"))
	}
}

// runJob scrapes, persists and caches one job, then fires its webhook.
func runJob(d JobDeps, job *Job, req models.JobRequest, target output.Target, key string) {
	log := d.Logger.With("id", job.ID(), "site", req.Site)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := models.NewScrapeError(models.ErrCodeInternal, "job panicked", fmt.Errorf("%v", r))
			log.Error("job aborted", "error", err)
			job.finish(models.AggregateResult{}, "", "", err.ToDetail())
			notify(job, req)
		}
	}()

	ctx := context.Background()
	agg, err := d.Runner.Run(ctx, req.Site, req.Categories, req.Workers, func(models.ScrapeResult) {
		job.categoryDone()
	})
	if err != nil {
		log.Error("job failed", "error", err)
		job.finish(models.AggregateResult{}, "", "", toDetail(err))
		notify(job, req)
		return
	}

	var (
		location  string
		errDetail *models.ErrorDetail
	)
	if d.Sink != nil {
		location, err = d.Sink.Write(ctx, agg, target)
		if err != nil {
			log.Error("failed to persist job output", "error", err)
			errDetail = toDetail(err)
		}
	}
	if d.Cache != nil && statusOf(agg) != models.JobFailed {
		d.Cache.Set(key, agg)
	}

	job.finish(agg, location, "", errDetail)
	log.Info("job finished",
		"status", job.Status(false).Status,
		"records", len(agg.Records),
		"location", location,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	notify(job, req)
}

// notify delivers the job's final state to its webhook, if any.
func notify(job *Job, req models.JobRequest) {
	if req.WebhookURL == "" {
		return
	}
	status := job.Status(false)
	eventType := webhook.EventJobCompleted
	if status.Status == models.JobFailed {
		eventType = webhook.EventJobFailed
	}
	webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
		Type:      eventType,
		JobID:     job.ID(),
		Timestamp: time.Now().Unix(),
		Data:      status,
	})
}

func toDetail(err error) *models.ErrorDetail {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, models.ErrorResponse{Success: false, Error: toDetail(err)})
}
