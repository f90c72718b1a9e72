package models

// Job statuses.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobPartial    = "partial"
	JobFailed     = "failed"
)

// JobResponse is the immediate response for POST /api/v1/jobs.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Site   string `json:"site"`
	Total  int    `json:"total"`
}

// JobStatusResponse is the response for GET /api/v1/jobs/:id.
type JobStatusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Site      string `json:"site"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`

	// Categories carries per-category traversal metadata without records.
	Categories []ScrapeResult `json:"categories,omitempty"`

	// Records is omitted when the caller asks for metadata only.
	Records     []ProductRecord `json:"records,omitempty"`
	RecordCount int             `json:"record_count"`

	// Location is the file path or stream the aggregate was written to.
	Location string `json:"location,omitempty"`

	// CacheStatus is "hit" when the job was answered from cache.
	CacheStatus string `json:"cache_status,omitempty"`

	CreatedAt  int64 `json:"created_at"`
	FinishedAt int64 `json:"finished_at,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse wraps an error for endpoints without a richer body.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// SiteInfo describes a registered retailer adapter.
type SiteInfo struct {
	Name       string `json:"name"`
	Pagination string `json:"pagination"`
	Extraction string `json:"extraction"`
	Consent    bool   `json:"consent"`
	Weight     bool   `json:"weight"`
	ExampleURL string `json:"example_url"`
}

// SitesResponse is the response for GET /api/v1/sites.
type SitesResponse struct {
	Sites []SiteInfo `json:"sites"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"` // "healthy" or "degraded"
	Uptime         string `json:"uptime"`
	ActiveJobs     int    `json:"active_jobs"`
	ActiveSessions int    `json:"active_sessions"`
	Version        string `json:"version"`
}
