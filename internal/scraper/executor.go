package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/analyzer"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/config"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/lead"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/resilience"
)

// Executor runs one scrape attempt per leased zone: navigate, extract,
// resolve-and-merge every candidate. The whole navigate+extract phase is
// retried as a unit on transient failure; merging is never retried because
// MergeOrCreate is already idempotent.
type Executor struct {
	browser    Browser
	merger     *lead.Merger
	analyzer   analyzer.Client
	strategies []LoadStrategy
	retry      resilience.RetryConfig
	maxResults int
}

// NewExecutor wires an executor from configuration. The retry profile is
// stretched automatically under CI/batch environments unless the override
// pins it.
func NewExecutor(browser Browser, merger *lead.Merger, analyzerClient analyzer.Client, cfg config.ScraperConfig) *Executor {
	base := resilience.FromRetryConfig(
		cfg.MaxAttempts, cfg.BaseDelayMs, cfg.MaxDelayMs, 0, -1,
	)
	return &Executor{
		browser:    browser,
		merger:     merger,
		analyzer:   analyzerClient,
		strategies: DefaultStrategies(time.Duration(cfg.NavigationTimeoutMs) * time.Millisecond),
		retry:      resilience.ProfileFor(base, cfg.TimeoutMultiplier, cfg.CIOverride()),
		maxResults: cfg.MaxResultsPerZone,
	}
}

// Run executes one attempt against the zone and returns its terminal
// record. Run never returns an error: every failure mode is folded into the
// attempt status so the scheduler can re-score the zone. attemptID names
// the audit row the caller opened before the run; empty means generate one.
func (e *Executor) Run(ctx context.Context, zone *model.Zone, attemptID string) *model.ScrapeAttempt {
	if attemptID == "" {
		attemptID = uuid.NewString()
	}
	attempt := &model.ScrapeAttempt{
		ID:        attemptID,
		ZoneID:    zone.ID,
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(
		zap.String("attempt_id", attempt.ID),
		zap.Int64("zone_id", zone.ID),
		zap.String("source", string(zone.Source)),
		zap.String("location", zone.LocationName),
	)
	log.Info("executor: attempt starting")

	targetURL, err := TargetURL(zone)
	if err != nil {
		return e.fail(attempt, log, err)
	}

	// Navigate + extract, retried as a whole. An error mid-extraction still
	// hands back whatever was collected before it; only a run that never
	// produced a listing fails outright.
	log.Debug("executor: navigating", zap.String("url", targetURL))
	listings, collectErr := e.collect(ctx, targetURL, log)
	if collectErr != nil && len(listings) == 0 {
		return e.fail(attempt, log, collectErr)
	}

	log.Debug("executor: extracting", zap.Int("listings", len(listings)))
	e.mergeListings(ctx, zone, listings, attempt, log)

	if collectErr != nil {
		attempt.Status = model.AttemptPartial
		attempt.ErrorMessage = collectErr.Error()
		log.Warn("executor: extraction ended early, emitting what was collected",
			zap.Int("listings", len(listings)),
			zap.Error(collectErr),
		)
	}

	now := time.Now().UTC()
	attempt.CompletedAt = &now
	if attempt.Status == "" {
		attempt.Status = model.AttemptSuccess
	}
	log.Info("executor: attempt complete",
		zap.String("status", string(attempt.Status)),
		zap.Int("found", attempt.RecordsFound),
		zap.Int("new", attempt.RecordsNew),
		zap.Int("merged", attempt.RecordsMerged),
	)
	return attempt
}

// collect performs the retryable navigate+extract phase. On error the
// returned slice still holds whatever the last attempt extracted before
// failing, so the caller can salvage a partial page.
func (e *Executor) collect(ctx context.Context, targetURL string, log *zap.Logger) ([]RawListing, error) {
	cfg := e.retry
	cfg.OnRetry = func(attempt int, err error) {
		log.Warn("executor: retrying navigation",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	var listings []RawListing
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		tab, err := e.browser.NewTab(ctx)
		if err != nil {
			return err
		}
		defer tab.Close()

		if _, err := LoadWithStrategies(ctx, tab, targetURL, e.strategies); err != nil {
			return err
		}
		listings, err = tab.Extract(ctx, e.maxResults)
		return err
	})
	return listings, err
}

// mergeListings pushes every extracted listing through the merge engine.
// Per-record failures are skipped and downgrade the attempt to partial;
// duplicate content hashes within the attempt are discarded before merging.
func (e *Executor) mergeListings(ctx context.Context, zone *model.Zone, listings []RawListing, attempt *model.ScrapeAttempt, log *zap.Logger) {
	seen := make(map[string]struct{}, len(listings))
	var recordErrors int

	for _, listing := range listings {
		cand, ok := e.toCandidate(zone, listing)
		if !ok {
			recordErrors++
			log.Debug("executor: skipping unusable listing",
				zap.String("name", listing.Name))
			continue
		}

		hash := cand.ContentHash()
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		attempt.RecordsFound++

		e.annotate(ctx, &cand, log)

		outcome, err := e.merger.MergeOrCreate(ctx, cand)
		if err != nil {
			recordErrors++
			log.Warn("executor: merge failed for listing",
				zap.String("name", cand.BusinessName),
				zap.Error(err),
			)
			continue
		}
		switch {
		case outcome.Created:
			attempt.RecordsNew++
		case outcome.Merged:
			attempt.RecordsMerged++
		}
	}

	if recordErrors > 0 {
		attempt.Status = model.AttemptPartial
		attempt.ErrorMessage = "some listings were skipped"
		log.Warn("executor: attempt degraded to partial",
			zap.Int("record_errors", recordErrors))
	}
}

// annotate attaches the page analysis blob when the collaborator is
// available. Analysis failure never blocks the record.
func (e *Executor) annotate(ctx context.Context, cand *model.CandidateRecord, log *zap.Logger) {
	if cand.WebsiteURL == "" {
		return
	}
	analysis, err := e.analyzer.Analyze(ctx, cand.WebsiteURL)
	if err != nil {
		log.Debug("executor: analyzer unavailable",
			zap.String("website", cand.WebsiteURL),
			zap.Error(err),
		)
		return
	}
	cand.Analysis = analysis
}

// toCandidate normalizes a raw listing into a candidate record. Listings
// with no usable name are rejected.
func (e *Executor) toCandidate(zone *model.Zone, listing RawListing) (model.CandidateRecord, bool) {
	name := strings.TrimSpace(listing.Name)
	if name == "" {
		return model.CandidateRecord{}, false
	}
	category := strings.TrimSpace(listing.Category)
	if category == "" {
		category = zone.Category
	}
	return model.CandidateRecord{
		Source:       zone.Source,
		BusinessName: name,
		WebsiteURL:   strings.TrimSpace(listing.Website),
		Phone:        strings.TrimSpace(listing.Phone),
		Address:      strings.TrimSpace(listing.Address),
		City:         zone.LocationName,
		Category:     category,
	}, true
}

func (e *Executor) fail(attempt *model.ScrapeAttempt, log *zap.Logger, err error) *model.ScrapeAttempt {
	now := time.Now().UTC()
	attempt.CompletedAt = &now
	attempt.Status = model.AttemptFailed
	attempt.ErrorMessage = err.Error()
	log.Error("executor: attempt failed", zap.Error(err))
	return attempt
}
