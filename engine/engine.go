package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/shelfscan/models"
)

// Session is one exclusive browser tab. A session is bound to a single
// category run and is never shared between goroutines.
type Session interface {
	// Navigate loads url and returns once the document has loaded.
	Navigate(ctx context.Context, url string) error

	// HTML returns the current rendered document.
	HTML(ctx context.Context) (string, error)

	// Visible reports whether the first element matching selector exists
	// and is rendered.
	Visible(ctx context.Context, selector string) (bool, error)

	// Click activates the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Count returns how many elements currently match selector.
	Count(ctx context.Context, selector string) (int, error)

	// ScrollIntoView centres the index-th element matching selector in
	// the viewport.
	ScrollIntoView(ctx context.Context, selector string, index int) error

	// WaitStable blocks until the DOM has not changed for quiet, or ctx ends.
	WaitStable(ctx context.Context, quiet time.Duration) error

	// Close releases the tab and any state attached to it.
	Close() error
}

// Browser hands out isolated sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// Adapter is the per-retailer capability bundle.
type Adapter interface {
	// Name returns the site identifier (e.g. "aldi", "ocado").
	Name() string

	// ListingURL builds the listing URL for a category. Infinite-scroll
	// sites ignore page and request their maximal listing size instead.
	ListingURL(category models.Category, page int) string

	// Layout returns the selectors and strategies of the site.
	Layout() Layout
}

// PaginationMode selects how a listing is traversed.
type PaginationMode int

const (
	// FixedPages walks numbered pages 1..N.
	FixedPages PaginationMode = iota
	// InfiniteScroll loads one listing and scrolls it until every
	// container has rendered.
	InfiniteScroll
)

func (m PaginationMode) String() string {
	switch m {
	case FixedPages:
		return "fixed_pages"
	case InfiniteScroll:
		return "infinite_scroll"
	default:
		return fmt.Sprintf("pagination(%d)", int(m))
	}
}

// ExtractionMode selects how field values are correlated into records.
type ExtractionMode int

const (
	// Positional queries each field over the whole page and zips the
	// resulting lists by index.
	Positional ExtractionMode = iota
	// PerContainer reads every field from inside one item container.
	PerContainer
)

func (m ExtractionMode) String() string {
	switch m {
	case Positional:
		return "positional"
	case PerContainer:
		return "per_container"
	default:
		return fmt.Sprintf("extraction(%d)", int(m))
	}
}

// DefaultSentinel replaces a per-container field that could not be located.
const DefaultSentinel = "N/A"

// Field locates one product attribute.
type Field struct {
	// Selector is a CSS selector. For per-container extraction it is
	// evaluated inside the container.
	Selector string `json:"selector"`

	// Attr, when set, reads this attribute instead of the element text.
	Attr string `json:"attr,omitempty"`

	// Sentinel overrides DefaultSentinel.
	Sentinel string `json:"sentinel,omitempty"`
}

func (f Field) sentinel() string {
	if f.Sentinel != "" {
		return f.Sentinel
	}
	return DefaultSentinel
}

// BoundMatch picks which element matching a layout's BoundSelector
// carries the page count.
type BoundMatch int

const (
	// BoundFirst reads the first match, e.g. a single "Page 1 of 7" label.
	BoundFirst BoundMatch = iota
	// BoundLast reads the last match, e.g. the highest numbered page link.
	BoundLast
)

// Layout describes where a site keeps its data and how to walk it.
type Layout struct {
	Pagination PaginationMode `json:"pagination"`
	Extraction ExtractionMode `json:"extraction"`

	// ConsentSelector is the accept button of the cookie banner. Empty
	// means the site shows no banner worth dismissing.
	ConsentSelector string `json:"consent_selector,omitempty"`

	// ReadySelector appears once client-side rendering has produced items.
	ReadySelector string `json:"ready_selector,omitempty"`

	// BoundSelector points at the page-info element (fixed pages) or the
	// total-count element (infinite scroll).
	BoundSelector string `json:"bound_selector"`

	// BoundMatch selects the page-info match of fixed-page listings.
	BoundMatch BoundMatch `json:"bound_match,omitempty"`

	// ContainerSelector matches one element per listed item.
	ContainerSelector string `json:"container_selector,omitempty"`

	Name   Field `json:"name"`
	Price  Field `json:"price"`
	Weight Field `json:"weight"`
}

// HasWeight reports whether the site exposes a weight column.
func (l Layout) HasWeight() bool {
	return l.Weight.Selector != ""
}

// Validate checks that the layout is internally consistent and that every
// selector compiles.
func (l Layout) Validate() error {
	if l.Name.Selector == "" || l.Price.Selector == "" {
		return fmt.Errorf("layout: name and price selectors are required")
	}
	if l.BoundSelector == "" {
		return fmt.Errorf("layout: bound selector is required")
	}
	if (l.Extraction == PerContainer || l.Pagination == InfiniteScroll) && l.ContainerSelector == "" {
		return fmt.Errorf("layout: %s/%s requires a container selector", l.Pagination, l.Extraction)
	}

	selectors := map[string]string{
		"consent":   l.ConsentSelector,
		"ready":     l.ReadySelector,
		"bound":     l.BoundSelector,
		"container": l.ContainerSelector,
		"name":      l.Name.Selector,
		"price":     l.Price.Selector,
		"weight":    l.Weight.Selector,
	}
	for field, sel := range selectors {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("layout: %s selector %q: %w", field, sel, err)
		}
	}
	return nil
}
