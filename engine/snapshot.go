package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Snapshot is a parsed, read-only capture of one rendered page.
type Snapshot struct {
	URL        string
	CapturedAt time.Time

	doc *goquery.Document
}

// ParseSnapshot parses rendered HTML captured from url.
func ParseSnapshot(url, rawHTML string) (*Snapshot, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", url, err)
	}
	return &Snapshot{
		URL:        url,
		CapturedAt: time.Now(),
		doc:        goquery.NewDocumentFromNode(root),
	}, nil
}

// Find runs a CSS selector over the whole document.
func (s *Snapshot) Find(selector string) *goquery.Selection {
	return s.doc.Find(selector)
}
