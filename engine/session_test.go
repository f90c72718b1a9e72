package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBrowser serves canned HTML keyed by URL.
type fakeBrowser struct {
	pages       map[string]string
	navErrs     map[string]error
	sessionErr  error
	banner      string // consent selector shown until clicked
	panicOnHTML bool

	mu       sync.Mutex
	sessions []*fakeSession
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		pages:   make(map[string]string),
		navErrs: make(map[string]error),
	}
}

func (b *fakeBrowser) NewSession(ctx context.Context) (Session, error) {
	if b.sessionErr != nil {
		return nil, b.sessionErr
	}
	s := &fakeSession{browser: b}
	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

func (b *fakeBrowser) openSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	open := 0
	for _, s := range b.sessions {
		if !s.closed {
			open++
		}
	}
	return open
}

type fakeSession struct {
	browser *fakeBrowser

	url        string
	html       string
	visited    []string
	scrolls    []int
	clicks     int
	bannerGone bool
	closed     bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if err := s.browser.navErrs[url]; err != nil {
		return err
	}
	html, ok := s.browser.pages[url]
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED %s", url)
	}
	s.url, s.html = url, html
	s.visited = append(s.visited, url)
	return nil
}

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	if s.browser.panicOnHTML {
		panic("target closed")
	}
	return s.html, nil
}

func (s *fakeSession) Visible(ctx context.Context, selector string) (bool, error) {
	if s.browser.banner != "" && selector == s.browser.banner {
		return !s.bannerGone, nil
	}
	n, err := s.Count(ctx, selector)
	return n > 0, err
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	s.clicks++
	if s.browser.banner != "" && selector == s.browser.banner && !s.bannerGone {
		s.bannerGone = true
		return nil
	}
	return errors.New("element not clickable")
}

func (s *fakeSession) Count(ctx context.Context, selector string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

func (s *fakeSession) ScrollIntoView(ctx context.Context, selector string, index int) error {
	n, err := s.Count(ctx, selector)
	if err != nil {
		return err
	}
	if index >= n {
		return fmt.Errorf("no element %d for %q", index, selector)
	}
	s.scrolls = append(s.scrolls, index)
	return nil
}

func (s *fakeSession) WaitStable(ctx context.Context, quiet time.Duration) error {
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// testAdapter is a minimal site used across engine tests.
type testAdapter struct {
	layout Layout
}

func (a testAdapter) Name() string { return "testshop" }

func (a testAdapter) ListingURL(c models.Category, page int) string {
	if a.layout.Pagination == InfiniteScroll {
		return fmt.Sprintf("https://shop.test/%s?display=all", c.PathSlug())
	}
	return fmt.Sprintf("https://shop.test/%s?page=%d", c.PathSlug(), page)
}

func (a testAdapter) Layout() Layout { return a.layout }

func fixedLayout() Layout {
	return Layout{
		Pagination:      FixedPages,
		Extraction:      Positional,
		ConsentSelector: "#accept-cookies",
		ReadySelector:   "a.product-name",
		BoundSelector:   "span.page-info",
		Name:            Field{Selector: "a.product-name", Attr: "title"},
		Price:           Field{Selector: "span.price"},
		Weight:          Field{Selector: "div.weight"},
	}
}

func scrollLayout() Layout {
	return Layout{
		Pagination:        InfiniteScroll,
		Extraction:        PerContainer,
		ConsentSelector:   "#accept-cookies",
		ReadySelector:     "li.item",
		BoundSelector:     "div.total",
		ContainerSelector: "li.item",
		Name:              Field{Selector: "h4.title", Attr: "title"},
		Price:             Field{Selector: "span.price"},
		Weight:            Field{Selector: "span.weight"},
	}
}

type product struct {
	name, price, weight string
}

// fixedPage renders a fixed-pagination listing page.
func fixedPage(pageInfo string, products []product) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="onetrust"><button id="accept-cookies">Accept</button></div>`)
	if pageInfo != "" {
		fmt.Fprintf(&b, `<span class="page-info">%s</span>`, pageInfo)
	}
	b.WriteString(`<div class="grid">`)
	for _, p := range products {
		b.WriteString(`<div class="tile">`)
		if p.name != "" {
			fmt.Fprintf(&b, `<a class="product-name" title="%s" href="#">%s</a>`, p.name, p.name)
		}
		if p.price != "" {
			fmt.Fprintf(&b, `<span class="price">%s</span>`, p.price)
		}
		if p.weight != "" {
			fmt.Fprintf(&b, `<div class="weight">%s</div>`, p.weight)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// scrollPage renders an infinite-scroll listing with n containers.
// Containers listed in noWeight omit their weight element.
func scrollPage(total string, n int, noWeight ...int) string {
	skip := make(map[int]bool, len(noWeight))
	for _, i := range noWeight {
		skip[i] = true
	}

	var b strings.Builder
	b.WriteString(`<html><body>`)
	if total != "" {
		fmt.Fprintf(&b, `<div class="total">%s</div>`, total)
	}
	b.WriteString(`<ul>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<li class="item"><h4 class="title" title="Product %d">Product %d</h4><span class="price">£%d.00</span>`, i, i, i)
		if !skip[i] {
			fmt.Fprintf(&b, `<span class="weight">%dg</span>`, 100+i)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func mustSnapshot(html string) *Snapshot {
	snap, err := ParseSnapshot("https://shop.test/fixture", html)
	if err != nil {
		panic(err)
	}
	return snap
}

func fastScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		Workers:           2,
		NavigationTimeout: time.Second,
		ReadyTimeout:      20 * time.Millisecond,
		ConsentTimeout:    20 * time.Millisecond,
		StableQuiet:       time.Millisecond,
		StableTimeout:     10 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		ScrollBatch:       100,
	}
}
