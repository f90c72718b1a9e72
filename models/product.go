package models

import (
	"fmt"
	"strings"
)

// Category identifies one product listing on a retailer site.
type Category struct {
	// ID is echoed into every record scraped from this category.
	ID string `json:"id" binding:"required"`

	// Slug is the site-specific path segment used to build listing URLs.
	Slug string `json:"slug,omitempty"`
}

// ParseCategory accepts "id=slug" or a bare slug, in which case the slug
// doubles as the identifier.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Category{}, NewScrapeError(ErrCodeInvalidInput, "empty category", nil)
	}
	id, slug, found := strings.Cut(s, "=")
	if !found {
		return Category{ID: s, Slug: s}, nil
	}
	id, slug = strings.TrimSpace(id), strings.TrimSpace(slug)
	if id == "" || slug == "" {
		return Category{}, NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("malformed category %q: want id=slug", s), nil)
	}
	return Category{ID: id, Slug: slug}, nil
}

// PathSlug returns the slug used in URLs, falling back to the ID.
func (c Category) PathSlug() string {
	if c.Slug != "" {
		return c.Slug
	}
	return c.ID
}

// ProductRecord is one extracted listing row. Values are kept raw: the
// price may carry a currency symbol or an out-of-stock sentinel, and an
// empty Weight means the site exposes no weight field at all.
type ProductRecord struct {
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Weight      string `json:"weight,omitempty"`
	Category    string `json:"category"`
}

// ScrapeResult holds the records and traversal metadata of one category run.
type ScrapeResult struct {
	Category       string          `json:"category"`
	Records        []ProductRecord `json:"records,omitempty"`
	PagesAttempted int             `json:"pages_attempted"`
	PagesSucceeded int             `json:"pages_succeeded"`

	// ExpectedCount is the item total advertised by infinite-scroll
	// listings. Zero means the site does not advertise one.
	ExpectedCount int `json:"expected_count,omitempty"`

	// Failure is set when the category ended early on a fatal error.
	Failure string `json:"failure,omitempty"`
}

// Complete reports whether every attempted page yielded a snapshot and no
// fatal error cut the run short.
func (r ScrapeResult) Complete() bool {
	return r.Failure == "" && r.PagesAttempted == r.PagesSucceeded
}

// AggregateResult is the merged output of a multi-category run.
type AggregateResult struct {
	Records    []ProductRecord `json:"records"`
	Categories []ScrapeResult  `json:"categories"`
}

// Merge concatenates category results in the order given. Records of one
// category stay contiguous and keep their in-category order.
func Merge(results ...ScrapeResult) AggregateResult {
	total := 0
	for _, r := range results {
		total += len(r.Records)
	}

	agg := AggregateResult{
		Records:    make([]ProductRecord, 0, total),
		Categories: make([]ScrapeResult, 0, len(results)),
	}
	for _, r := range results {
		agg.Records = append(agg.Records, r.Records...)

		meta := r
		meta.Records = nil
		agg.Categories = append(agg.Categories, meta)
	}
	return agg
}

// RecordCount returns the number of records per category ID.
func (a AggregateResult) RecordCount() map[string]int {
	counts := make(map[string]int, len(a.Categories))
	for _, rec := range a.Records {
		counts[rec.Category]++
	}
	return counts
}
