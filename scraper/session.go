package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const maxNativeClick = 3 * time.Second

// session is one rod tab inside its own incognito context.
type session struct {
	page      *rod.Page
	incognito *rod.Browser
	router    *rod.HijackRouter
	owner     *Browser

	closeOnce sync.Once
	closeErr  error
}

func (s *session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (s *session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *session) Visible(ctx context.Context, selector string) (bool, error) {
	has, el, err := s.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return false, err
	}
	return el.Visible()
}

// Click tries a native mouse click first, bounded by half of the time ctx
// has left. Overlays intercepting the pointer make rod retry until that
// deadline, after which the element's own click() is invoked.
func (s *session) Click(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", selector, err)
	}

	nativeCtx, cancel := context.WithTimeout(ctx, nativeClickBudget(ctx))
	clickErr := el.Context(nativeCtx).Click(proto.InputMouseButtonLeft, 1)
	cancel()
	if clickErr == nil {
		return nil
	}
	if _, err := el.Context(ctx).Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("click %q: native: %v, scripted: %w", selector, clickErr, err)
	}
	return nil
}

// nativeClickBudget is half the time left before ctx's deadline, or
// maxNativeClick when ctx has none.
func nativeClickBudget(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return maxNativeClick
	}
	if budget := time.Until(deadline) / 2; budget < maxNativeClick {
		return budget
	}
	return maxNativeClick
}

func (s *session) Count(ctx context.Context, selector string) (int, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (s *session) ScrollIntoView(ctx context.Context, selector string, index int) error {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(els) {
		return fmt.Errorf("no element %d of %d matching %q", index, len(els), selector)
	}
	_, err = els[index].Eval(`() => this.scrollIntoView({behavior: 'auto', block: 'center'})`)
	return err
}

func (s *session) WaitStable(ctx context.Context, quiet time.Duration) error {
	return s.page.Context(ctx).WaitDOMStable(quiet, 0.1)
}

// Close stops the request filter and disposes the tab and its incognito
// context. It uses the original page reference so cleanup still works
// after the caller's context has expired.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if err := s.page.Close(); err != nil {
			s.closeErr = err
		}
		if err := s.incognito.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		s.owner.active.Add(-1)
	})
	return s.closeErr
}
