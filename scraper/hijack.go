package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types. Stylesheets
// are never blocked: Visible relies on computed styles.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image": proto.NetworkResourceTypeImage,
	"Font":  proto.NetworkResourceTypeFont,
	"Media": proto.NetworkResourceTypeMedia,
	"Ping":  proto.NetworkResourceTypePing,
}

// trackerHosts are analytics, ad and session-replay hosts seen on UK
// grocery listings. Subdomains match too.
var trackerHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"bat.bing.com":          {},
	"criteo.com":            {},
	"criteo.net":            {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"hotjar.com":            {},
	"contentsquare.net":     {},
	"quantummetric.com":     {},
	"go-mpulse.net":         {},
	"dynatrace.com":         {},
	"demdex.net":            {},
	"omtrdc.net":            {},
	"tiqcdn.com":            {},
	"scorecardresearch.com": {},
	"pinterest.com":         {},
	"tiktok.com":            {},
	"snapchat.com":          {},
	"rlcdn.com":             {},
	"bluecore.com":          {},
	"cquotient.com":         {},
}

// isTrackerHost reports whether host or any parent domain is a tracker.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// requestFilter decides which requests a session drops before they leave
// the browser.
type requestFilter struct {
	types    map[proto.NetworkResourceType]struct{}
	trackers bool
}

func newRequestFilter(names []string, blockTrackers bool) requestFilter {
	types := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := resourceTypes[name]; ok {
			types[rt] = struct{}{}
		}
	}
	return requestFilter{types: types, trackers: blockTrackers}
}

func (f requestFilter) empty() bool {
	return len(f.types) == 0 && !f.trackers
}

func (f requestFilter) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := f.types[rt]; ok {
		return true
	}
	if !f.trackers {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return isTrackerHost(u.Hostname())
}

// mountFilter intercepts every request of page and fails the ones f
// blocks. It returns nil when there is nothing to block; otherwise the
// caller stops the router when the page is done.
func mountFilter(page *rod.Page, f requestFilter) *rod.HijackRouter {
	if f.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if f.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks until router.Stop().
	go router.Run()

	return router
}
