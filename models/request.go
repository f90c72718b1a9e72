package models

// JobRequest is the payload for POST /api/v1/jobs.
type JobRequest struct {
	// Site names a registered retailer adapter. Required.
	Site string `json:"site" binding:"required"`

	// Categories to scrape. Required.
	Categories []Category `json:"categories" binding:"required,min=1,max=500,dive"`

	// Workers is the category worker pool size. Default: server config.
	Workers int `json:"workers,omitempty" binding:"omitempty,min=1,max=32"`

	// Output overrides the naming and format of the persisted aggregate.
	Output *OutputOptions `json:"output,omitempty"`

	// WebhookURL receives a job.completed event when the job ends.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// MaxAge, in milliseconds, allows answering from a cached aggregate of
	// the same site and categories that is at most this old. 0 disables
	// the cache lookup.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// OutputOptions selects how a job's aggregate is persisted.
type OutputOptions struct {
	Prefix string `json:"prefix,omitempty"`
	Folder string `json:"folder,omitempty"`
	Format string `json:"format,omitempty" binding:"omitempty,oneof=csv columnar"`
}
