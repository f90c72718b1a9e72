// Package output persists aggregate scrape results.
package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
)

// Columns is the fixed record schema, in output order.
var Columns = []string{"product_name", "price", "weight", "category"}

// Target says where and how one aggregate is written.
type Target struct {
	// Prefix names the output file or stream suffix.
	Prefix string `json:"prefix,omitempty"`

	// Folder is a sub-location under Destination.
	Folder string `json:"folder,omitempty"`

	// Format is "csv" or "columnar" (file sink only).
	Format string `json:"format,omitempty"`

	// Destination is the base directory (file) or base stream key (redis).
	Destination string `json:"-"`
}

// Sink persists an aggregate and returns the resolved location.
type Sink interface {
	Write(ctx context.Context, agg models.AggregateResult, t Target) (string, error)
	Close() error
}

// New returns the sink selected by cfg.Sink.
func New(cfg config.OutputConfig) (Sink, error) {
	switch strings.ToLower(cfg.Sink) {
	case "", "file":
		return NewFileSink(), nil
	case "redis":
		return NewRedisSink(cfg.RedisAddr, cfg.RedisDB), nil
	default:
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown output sink %q: want file or redis", cfg.Sink), nil)
	}
}

// DefaultTarget builds a Target from configuration defaults.
func DefaultTarget(cfg config.OutputConfig) Target {
	dest := cfg.Dir
	if strings.EqualFold(cfg.Sink, "redis") {
		dest = cfg.RedisStream
	}
	return Target{
		Prefix:      cfg.Prefix,
		Format:      cfg.Format,
		Destination: dest,
	}
}

// Merge overlays the non-empty fields of o onto t. Destination is never
// taken from o: callers outside the process must not pick file paths.
func (t Target) Merge(o Target) Target {
	if o.Prefix != "" {
		t.Prefix = o.Prefix
	}
	if o.Folder != "" {
		t.Folder = o.Folder
	}
	if o.Format != "" {
		t.Format = o.Format
	}
	return t
}

// Validate rejects formats and names that cannot be written safely.
func (t Target) Validate() error {
	switch strings.ToLower(t.Format) {
	case "", FormatCSV, FormatColumnar:
	default:
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown output format %q: want csv or columnar", t.Format), nil)
	}
	for _, part := range []string{t.Prefix, t.Folder} {
		if strings.Contains(part, "..") || strings.ContainsAny(part, `\:`) || strings.HasPrefix(part, "/") {
			return models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("invalid output name %q", part), nil)
		}
	}
	if strings.Contains(t.Prefix, "/") {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("invalid output prefix %q: must not contain /", t.Prefix), nil)
	}
	return nil
}

func row(r models.ProductRecord) []string {
	return []string{r.ProductName, r.Price, r.Weight, r.Category}
}
