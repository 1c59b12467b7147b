// Package scraper runs browser-automation attempts against zones and turns
// rendered listing pages into candidate records.
package scraper

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RawListing is one business card as extracted from a rendered page, before
// normalization into a candidate record.
type RawListing struct {
	Name     string `json:"name"`
	Website  string `json:"website"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Category string `json:"category"`
}

// Page describes the outcome of a navigation.
type Page struct {
	URL    string
	Status int
}

// LoadStrategy names one way of deciding a page has loaded, with its own
// deadline. Strategies are ordered cheapest first and tried in sequence.
type LoadStrategy struct {
	Name    string
	Timeout time.Duration
}

// The three standard strategies. domReady fires earliest and suffices for
// server-rendered pages; fullLoad waits for the load event; networkIdle adds
// a settle window for listing pages that hydrate over XHR.
const (
	StrategyDOMReady    = "dom_ready"
	StrategyFullLoad    = "full_load"
	StrategyNetworkIdle = "network_idle"
)

// DefaultStrategies builds the standard escalation chain from the base
// navigation timeout. Later strategies get more room.
func DefaultStrategies(navTimeout time.Duration) []LoadStrategy {
	if navTimeout <= 0 {
		navTimeout = 20 * time.Second
	}
	return []LoadStrategy{
		{Name: StrategyDOMReady, Timeout: navTimeout},
		{Name: StrategyFullLoad, Timeout: navTimeout * 3 / 2},
		{Name: StrategyNetworkIdle, Timeout: navTimeout * 2},
	}
}

// Tab is one isolated page context. Tabs are single-use: one navigation,
// one extraction pass, then Close.
type Tab interface {
	// Navigate loads targetURL using the given strategy. The strategy's
	// timeout bounds the whole navigation.
	Navigate(ctx context.Context, targetURL string, strategy LoadStrategy) (*Page, error)
	// Extract pulls up to maxResults listings from the loaded page,
	// scrolling/paginating as needed.
	Extract(ctx context.Context, maxResults int) ([]RawListing, error)
	Close()
}

// Browser creates tabs. Implementations own the underlying browser process.
type Browser interface {
	NewTab(ctx context.Context) (Tab, error)
	Close()
}

// LoadWithStrategies tries each strategy in order and returns the first
// page that loads. A strategy failure falls through to the next; only when
// every strategy is exhausted does the navigation fail.
func LoadWithStrategies(ctx context.Context, tab Tab, targetURL string, strategies []LoadStrategy) (*Page, error) {
	if len(strategies) == 0 {
		return nil, eris.New("scraper: no load strategies configured")
	}

	var lastErr error
	for _, strategy := range strategies {
		page, err := tab.Navigate(ctx, targetURL, strategy)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		zap.L().Debug("scraper: load strategy failed, trying next",
			zap.String("strategy", strategy.Name),
			zap.String("url", targetURL),
			zap.Error(err),
		)
		lastErr = err
	}
	return nil, eris.Wrapf(lastErr, "scraper: page load failed after %d strategies", len(strategies))
}
