// Package analyzer calls the external page-analysis collaborator. The
// result is an opaque blob carried through to the canonical lead; analysis
// never blocks acquisition.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/config"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/resilience"
)

// Client analyzes a business website and returns the opaque analysis blob.
type Client interface {
	Analyze(ctx context.Context, websiteURL string) (*model.PageAnalysis, error)
}

// HTTPClient calls the analyzer service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates an analyzer client from configuration.
func NewHTTPClient(cfg config.AnalyzerConfig) *HTTPClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	URL string `json:"url"`
}

// Analyze posts the website URL to the analyzer service. Transient upstream
// statuses come back as TransientError so callers can decide to retry.
func (c *HTTPClient) Analyze(ctx context.Context, websiteURL string) (*model.PageAnalysis, error) {
	if websiteURL == "" {
		return nil, eris.New("analyzer: empty website URL")
	}

	body, err := json.Marshal(analyzeRequest{URL: websiteURL})
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "analyzer: request"), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("analyzer: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: read response")
	}

	var analysis model.PageAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, eris.Wrap(err, "analyzer: decode response")
	}
	return &analysis, nil
}

// Noop is the analyzer used when the collaborator is disabled. Every call
// reports no analysis without error.
type Noop struct{}

// Analyze returns (nil, nil).
func (Noop) Analyze(context.Context, string) (*model.PageAnalysis, error) {
	return nil, nil
}

// FromConfig returns the configured client, or Noop when disabled or no
// base URL is set.
func FromConfig(cfg config.AnalyzerConfig) Client {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return Noop{}
	}
	return NewHTTPClient(cfg)
}
