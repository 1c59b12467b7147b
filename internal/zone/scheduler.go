package zone

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/config"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

// Outcome summarizes an executor run for re-prioritization.
type Outcome struct {
	Status       model.AttemptStatus
	RecordsFound int
	RecordsNew   int
}

// Scheduler hands out zone leases and folds attempt outcomes back into
// priority scores. Productive zones climb, empty zones sink slowly, broken
// zones sink fast; the floor keeps every active zone eligible forever.
type Scheduler struct {
	store Store
	cfg   config.SchedulerConfig
}

// NewScheduler creates a scheduler with the given scoring parameters.
func NewScheduler(store Store, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{store: store, cfg: cfg}
}

// LeaseNextZone returns the next zone to scrape, or nil when the queue is
// empty. The returned zone is locked until ReportOutcome or Abandon.
func (s *Scheduler) LeaseNextZone(ctx context.Context) (*model.Zone, error) {
	zone, err := s.store.LeaseNext(ctx)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		return nil, nil
	}
	zap.L().Debug("scheduler: leased zone",
		zap.Int64("zone_id", zone.ID),
		zap.String("source", string(zone.Source)),
		zap.String("location", zone.LocationName),
		zap.Int("priority", zone.PriorityScore),
	)
	return zone, nil
}

// ReportOutcome releases the lease and re-scores the zone. It must be called
// exactly once per successful lease; the attempt counters are updated only
// when the executor actually ran (any terminal status counts as a run).
func (s *Scheduler) ReportOutcome(ctx context.Context, zone *model.Zone, outcome Outcome) error {
	newScore := s.rescore(zone.PriorityScore, outcome)

	zap.L().Info("scheduler: zone outcome",
		zap.Int64("zone_id", zone.ID),
		zap.String("status", string(outcome.Status)),
		zap.Int("records_found", outcome.RecordsFound),
		zap.Int("records_new", outcome.RecordsNew),
		zap.Int("old_score", zone.PriorityScore),
		zap.Int("new_score", newScore),
	)
	return s.store.Release(ctx, zone.ID, newScore, outcome.RecordsFound, true)
}

// Abandon releases a lease without recording an outcome, for runs that were
// cancelled before the executor produced a terminal status.
func (s *Scheduler) Abandon(ctx context.Context, zoneID int64) error {
	zap.L().Warn("scheduler: abandoning lease", zap.Int64("zone_id", zoneID))
	return s.store.Unlock(ctx, zoneID)
}

// SweepStaleLeases frees leases older than the configured grace period.
func (s *Scheduler) SweepStaleLeases(ctx context.Context) (int64, error) {
	grace := time.Duration(s.cfg.LeaseGraceMins) * time.Minute
	freed, err := s.store.SweepStaleLeases(ctx, grace)
	if err != nil {
		return 0, err
	}
	if freed > 0 {
		zap.L().Warn("scheduler: freed stale leases", zap.Int64("count", freed))
	}
	return freed, nil
}

// rescore computes the zone's next priority score.
//
// Productive attempts earn base + increment*log2(1+new), capped, so a zone
// yielding 100 new records does not starve every other zone. Empty
// successes decay gently, failures decay harder, and both clamp at the
// floor so the zone stays in rotation.
func (s *Scheduler) rescore(current int, outcome Outcome) int {
	switch {
	case outcome.Status != model.AttemptFailed && outcome.RecordsNew > 0:
		gain := s.cfg.ScoreIncrementBase +
			int(float64(s.cfg.ScoreIncrementBase)*math.Log2(1+float64(outcome.RecordsNew)))
		if gain > s.cfg.ScoreIncrementCap {
			gain = s.cfg.ScoreIncrementCap
		}
		return current + gain
	case outcome.Status == model.AttemptFailed:
		return clampFloor(current-s.cfg.FailureDecay, s.cfg.ScoreFloor)
	default:
		return clampFloor(current-s.cfg.EmptyDecay, s.cfg.ScoreFloor)
	}
}

func clampFloor(score, floor int) int {
	if score < floor {
		return floor
	}
	return score
}
