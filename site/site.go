// Package site holds the retailer adapters the engine can scrape.
package site

import (
	"fmt"
	"sort"
	"strings"

	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
)

// onetrustAccept is the accept button of the OneTrust cookie banner.
const onetrustAccept = "#onetrust-accept-btn-handler"

var registry = map[string]engine.Adapter{}

func register(a engine.Adapter) {
	if err := a.Layout().Validate(); err != nil {
		panic(fmt.Sprintf("site %s: %v", a.Name(), err))
	}
	registry[a.Name()] = a
}

func init() {
	register(Aldi{})
	register(Tesco{})
	register(Ocado{})
}

// Lookup returns the adapter registered under name (case-insensitive).
func Lookup(name string) (engine.Adapter, error) {
	a, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown site %q (known: %s)", name, strings.Join(Names(), ", ")), nil)
	}
	return a, nil
}

// Names returns the registered site names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered adapter sorted by name.
func All() []engine.Adapter {
	names := Names()
	adapters := make([]engine.Adapter, 0, len(names))
	for _, name := range names {
		adapters = append(adapters, registry[name])
	}
	return adapters
}
