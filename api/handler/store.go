package handler

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/shelfscan/models"
)

// Job is one asynchronous scrape. All methods are safe for concurrent use.
type Job struct {
	mu          sync.RWMutex
	id          string
	site        string
	status      string
	completed   int
	total       int
	agg         models.AggregateResult
	location    string
	cacheStatus string
	err         *models.ErrorDetail
	createdAt   time.Time
	finishedAt  time.Time
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

func (j *Job) categoryDone() {
	j.mu.Lock()
	j.completed++
	j.mu.Unlock()
}

func (j *Job) finish(agg models.AggregateResult, location, cacheStatus string, errDetail *models.ErrorDetail) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.agg = agg
	j.location = location
	j.cacheStatus = cacheStatus
	j.err = errDetail
	j.completed = j.total
	j.status = statusOf(agg)
	if errDetail != nil {
		j.status = models.JobFailed
	}
	j.finishedAt = time.Now()
}

func (j *Job) running() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status == models.JobProcessing
}

// Status renders the job. Records are included only when withRecords is set.
func (j *Job) Status(withRecords bool) models.JobStatusResponse {
	j.mu.RLock()
	defer j.mu.RUnlock()

	resp := models.JobStatusResponse{
		ID:          j.id,
		Status:      j.status,
		Site:        j.site,
		Completed:   j.completed,
		Total:       j.total,
		Categories:  j.agg.Categories,
		RecordCount: len(j.agg.Records),
		Location:    j.location,
		CacheStatus: j.cacheStatus,
		CreatedAt:   j.createdAt.Unix(),
		Error:       j.err,
	}
	if withRecords {
		resp.Records = j.agg.Records
	}
	if !j.finishedAt.IsZero() {
		resp.FinishedAt = j.finishedAt.Unix()
	}
	return resp
}

// statusOf classifies a finished aggregate: every category fatal is a
// failure, any fatal or skipped page is partial.
func statusOf(agg models.AggregateResult) string {
	failed, incomplete := 0, 0
	for _, c := range agg.Categories {
		switch {
		case c.Failure != "":
			failed++
		case !c.Complete():
			incomplete++
		}
	}
	switch {
	case len(agg.Categories) > 0 && failed == len(agg.Categories):
		return models.JobFailed
	case failed > 0 || incomplete > 0:
		return models.JobPartial
	default:
		return models.JobCompleted
	}
}

// JobStore holds in-flight and finished jobs. Finished jobs are kept for
// one hour.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
}

// NewJobStore creates a store and starts its expiry loop.
func NewJobStore() *JobStore {
	s := &JobStore{jobs: make(map[string]*Job), ttl: time.Hour}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.evictFinished(time.Now().Add(-s.ttl))
		}
	}()
	return s
}

// Create registers a new processing job.
func (s *JobStore) Create(site string, total int) *Job {
	job := &Job{
		id:        "job-" + randomID(),
		site:      site,
		status:    models.JobProcessing,
		total:     total,
		createdAt: time.Now(),
	}
	s.mu.Lock()
	s.jobs[job.id] = job
	s.mu.Unlock()
	return job
}

// Get returns the job with id.
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Active returns the number of jobs still processing.
func (s *JobStore) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, job := range s.jobs {
		if job.running() {
			n++
		}
	}
	return n
}

func (s *JobStore) evictFinished(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		job.mu.RLock()
		expired := !job.finishedAt.IsZero() && job.finishedAt.Before(cutoff)
		job.mu.RUnlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
