package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/config"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/resilience"
)

// networkIdleSettle is the quiet window appended after readiness when the
// network_idle strategy is in effect. Listing pages that hydrate over XHR
// usually finish well inside it.
const networkIdleSettle = 1500 * time.Millisecond

// extractScript collects listing cards from the rendered page. It probes a
// few common card layouts and returns a JSON-ready array; unknown layouts
// simply yield an empty list rather than an error.
const extractScript = `(() => {
	const cards = document.querySelectorAll(
		'[role="article"], .business-card, .search-result, .vcard, article'
	);
	const text = (el, sel) => {
		const n = el.querySelector(sel);
		return n ? n.textContent.trim() : '';
	};
	const href = (el, sel) => {
		const n = el.querySelector(sel);
		return n ? (n.href || '') : '';
	};
	const out = [];
	for (const card of cards) {
		const name = text(card, 'h1, h2, h3, [class*="title"], [class*="name"]');
		if (!name) continue;
		out.push({
			name: name,
			website: href(card, 'a[href^="http"]:not([href*="google"])'),
			phone: text(card, '[href^="tel:"], [class*="phone"], [class*="tel"]'),
			address: text(card, 'address, [class*="address"], [class*="addr"]'),
			category: text(card, '[class*="category"], [class*="cat"]'),
		});
	}
	return out;
})()`

// scrollScript advances the results pane and reports the document height so
// the extractor can tell when scrolling stopped producing new content.
const scrollScript = `(() => {
	window.scrollBy(0, window.innerHeight);
	const pane = document.querySelector('[role="feed"], .results, main');
	if (pane) pane.scrollTop = pane.scrollHeight;
	return document.body.scrollHeight;
})()`

// ChromedpBrowser drives headless Chrome through a shared exec allocator.
// Each tab gets its own chromedp context so a wedged attempt never poisons
// the next one.
type ChromedpBrowser struct {
	allocator   context.Context
	allocCancel context.CancelFunc
	userAgent   string
}

// NewChromedpBrowser launches the allocator with the configured flags.
func NewChromedpBrowser(cfg config.ScraperConfig) *ChromedpBrowser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpBrowser{
		allocator:   allocCtx,
		allocCancel: allocCancel,
		userAgent:   cfg.UserAgent,
	}
}

// NewTab opens an isolated browser context.
func (b *ChromedpBrowser) NewTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(b.allocator)
	return &chromedpTab{
		ctx:       tabCtx,
		cancel:    tabCancel,
		userAgent: b.userAgent,
	}, nil
}

// Close tears down the allocator and every remaining tab.
func (b *ChromedpBrowser) Close() {
	b.allocCancel()
}

type chromedpTab struct {
	ctx       context.Context
	cancel    context.CancelFunc
	userAgent string
	status    *documentStatus
}

// Navigate loads the page under the strategy's deadline. The document
// response status is captured from network events; a transient HTTP status
// surfaces as a retryable error.
func (t *chromedpTab) Navigate(ctx context.Context, targetURL string, strategy LoadStrategy) (*Page, error) {
	navCtx, cancel := context.WithTimeout(t.ctx, strategy.Timeout)
	defer cancel()

	// Honor caller cancellation on top of the strategy deadline.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if t.status == nil {
		t.status = &documentStatus{}
		chromedp.ListenTarget(t.ctx, t.status.captureEvent)
	}

	actions := []chromedp.Action{
		t.setupAction(),
		chromedp.Navigate(targetURL),
	}
	actions = append(actions, strategyActions(strategy)...)

	var finalURL string
	actions = append(actions, chromedp.Location(&finalURL))

	if err := chromedp.Run(navCtx, actions...); err != nil {
		return nil, eris.Wrapf(err, "scraper: %s navigation", strategy.Name)
	}

	status := t.status.get()
	if status >= 400 {
		err := eris.Errorf("scraper: document status %d for %s", status, targetURL)
		if resilience.IsTransientHTTPStatus(status) {
			return nil, resilience.NewTransientError(err, status)
		}
		return nil, err
	}

	zap.L().Debug("scraper: page loaded",
		zap.String("strategy", strategy.Name),
		zap.String("url", finalURL),
		zap.Int("status", status),
	)
	return &Page{URL: finalURL, Status: status}, nil
}

// Extract scrolls the results pane until the listing count stops growing or
// maxResults is reached.
func (t *chromedpTab) Extract(ctx context.Context, maxResults int) ([]RawListing, error) {
	if maxResults <= 0 {
		maxResults = 40
	}

	extractCtx, cancel := context.WithTimeout(t.ctx, 60*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var listings []RawListing
	prevCount := -1
	for len(listings) < maxResults && len(listings) > prevCount {
		prevCount = len(listings)

		if err := chromedp.Run(extractCtx, chromedp.Evaluate(extractScript, &listings)); err != nil {
			return listings, eris.Wrap(err, "scraper: extract listings")
		}
		if len(listings) >= maxResults {
			break
		}

		var height int
		if err := chromedp.Run(extractCtx,
			chromedp.Evaluate(scrollScript, &height),
			chromedp.Sleep(750*time.Millisecond),
		); err != nil {
			return listings, eris.Wrap(err, "scraper: scroll results")
		}
	}

	if len(listings) > maxResults {
		listings = listings[:maxResults]
	}
	return listings, nil
}

func (t *chromedpTab) Close() {
	t.cancel()
}

func (t *chromedpTab) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return eris.Wrap(err, "scraper: enable network domain")
		}
		if t.userAgent != "" {
			if err := emulation.SetUserAgentOverride(t.userAgent).Do(ctx); err != nil {
				return eris.Wrap(err, "scraper: set user agent")
			}
		}
		return nil
	})
}

// strategyActions maps a load strategy to its readiness actions.
func strategyActions(strategy LoadStrategy) []chromedp.Action {
	switch strategy.Name {
	case StrategyFullLoad:
		var ready bool
		return []chromedp.Action{
			chromedp.Poll(`document.readyState === "complete"`, &ready),
		}
	case StrategyNetworkIdle:
		return []chromedp.Action{
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(networkIdleSettle),
		}
	default: // StrategyDOMReady
		return []chromedp.Action{
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
	}
}

// documentStatus records the HTTP status of the main document response.
type documentStatus struct {
	mu     sync.Mutex
	status int
}

func (d *documentStatus) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	d.status = int(resp.Response.Status)
	d.mu.Unlock()
}

func (d *documentStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
