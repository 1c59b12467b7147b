// Package zone implements the crawl-target scheduler: priority-scored
// leasing of zones, outcome-driven re-prioritization, and seeding.
package zone

import (
	"context"
	"time"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

// SeedZone is one zone definition from a seed file or seeding command.
type SeedZone struct {
	Source       model.Source `yaml:"source"`
	Category     string       `yaml:"category"`
	LocationName string       `yaml:"location_name"`
	Lat          *float64     `yaml:"lat,omitempty"`
	Lon          *float64     `yaml:"lon,omitempty"`
	Priority     int          `yaml:"priority,omitempty"`
}

// ListOpts filters ListZones.
type ListOpts struct {
	Source     model.Source
	OnlyActive bool
	Limit      int
}

// Store defines persistence operations for the zone scheduler.
type Store interface {
	// LeaseNext atomically locks and returns the highest-priority
	// unlocked active zone, or (nil, nil) when none qualify. Concurrent
	// callers never receive the same zone.
	LeaseNext(ctx context.Context) (*model.Zone, error)
	// Release unlocks the zone and applies the post-attempt bookkeeping:
	// new priority score, last_scraped_at, times_scraped and
	// total_records_found increments.
	Release(ctx context.Context, zoneID int64, newScore int, recordsFound int, scraped bool) error
	// Unlock clears the lease without touching scores, for abandoned
	// leases that never produced an outcome.
	Unlock(ctx context.Context, zoneID int64) error
	// SweepStaleLeases unlocks zones whose lease is older than grace,
	// returning how many were freed.
	SweepStaleLeases(ctx context.Context, grace time.Duration) (int64, error)

	SeedZones(ctx context.Context, seeds []SeedZone) (int64, error)
	ListZones(ctx context.Context, opts ListOpts) ([]model.Zone, error)
	DeactivateZone(ctx context.Context, zoneID int64) error

	// CreateAttempt inserts the running audit row before navigation
	// starts; CompleteAttempt records the terminal state on that row.
	CreateAttempt(ctx context.Context, attempt *model.ScrapeAttempt) error
	CompleteAttempt(ctx context.Context, attempt *model.ScrapeAttempt) error
}
