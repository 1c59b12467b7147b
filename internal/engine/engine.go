// Package engine runs the acquisition loop: a fixed worker pool that leases
// zones, executes scrape attempts, and reports outcomes back to the
// scheduler.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/config"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/monitoring"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/resilience"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/zone"
)

// sweepInterval is how often the stale-lease janitor runs.
const sweepInterval = time.Minute

// errAttemptFailed feeds terminal attempt failures into the launch breaker.
var errAttemptFailed = eris.New("engine: attempt failed")

// AttemptRunner executes one scrape attempt against a zone, reporting
// under the audit row the engine opened for it.
type AttemptRunner interface {
	Run(ctx context.Context, zone *model.Zone, attemptID string) *model.ScrapeAttempt
}

// Engine owns the worker pool. Each worker loops lease -> run -> report;
// the lease is always released, via the outcome report or the abandon
// guard.
type Engine struct {
	scheduler *zone.Scheduler
	zones     zone.Store
	runner    AttemptRunner
	metrics   *monitoring.Metrics
	cfg       config.EngineConfig

	emptyBackoff time.Duration
	limiters     map[model.Source]*rate.Limiter
	breakers     *resilience.SourceBreakers
}

// New wires an engine. sourceQPS bounds request pressure per source across
// all workers; the per-source breakers cool workers down after a run of
// consecutive failed attempts against one source, which is the signature
// of a broken browser install or a blocking target.
func New(scheduler *zone.Scheduler, zones zone.Store, runner AttemptRunner, metrics *monitoring.Metrics, engineCfg config.EngineConfig, schedCfg config.SchedulerConfig) *Engine {
	limiters := make(map[model.Source]*rate.Limiter)
	if engineCfg.SourceQPS > 0 {
		for _, src := range []model.Source{model.SourceMaps, model.SourceDirectory} {
			limiters[src] = rate.NewLimiter(rate.Limit(engineCfg.SourceQPS), 1)
		}
	}

	breakers := resilience.NewSourceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: engineCfg.LaunchFailureLimit,
		ResetTimeout:     time.Duration(engineCfg.CooldownSecs) * time.Second,
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("engine: launch breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	emptyBackoff := time.Duration(schedCfg.EmptyQueueBackoffMs) * time.Millisecond
	if emptyBackoff <= 0 {
		emptyBackoff = 5 * time.Second
	}

	return &Engine{
		scheduler:    scheduler,
		zones:        zones,
		runner:       runner,
		metrics:      metrics,
		cfg:          engineCfg,
		emptyBackoff: emptyBackoff,
		limiters:     limiters,
		breakers:     breakers,
	}
}

// Run blocks until ctx is cancelled, then drains the workers. MaxZones > 0
// stops the engine after that many leases across all workers (batch mode);
// 0 means run forever.
func (e *Engine) Run(ctx context.Context, maxZones int) error {
	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	zap.L().Info("engine: starting",
		zap.Int("workers", workers),
		zap.Int("max_zones", maxZones),
	)

	budget := newLeaseBudget(maxZones)

	// The sweeper lives outside the worker group so a drained batch run
	// can stop it rather than wait on it.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		e.sweepLoop(sweepCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			return e.workerLoop(gctx, worker, budget)
		})
	}

	err := g.Wait()
	stopSweep()
	<-sweepDone

	if err != nil && !eris.Is(err, context.Canceled) {
		return err
	}
	zap.L().Info("engine: stopped")
	return nil
}

func (e *Engine) workerLoop(ctx context.Context, worker int, budget *leaseBudget) error {
	log := zap.L().With(zap.Int("worker", worker))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !budget.take() {
			log.Debug("engine: lease budget exhausted")
			return nil
		}

		leaseStart := time.Now()
		z, err := e.scheduler.LeaseNextZone(ctx)
		e.metrics.LeaseWaitSeconds.Observe(time.Since(leaseStart).Seconds())
		if err != nil {
			log.Error("engine: lease failed", zap.Error(err))
			budget.put()
			if !e.sleep(ctx, e.emptyBackoff) {
				return ctx.Err()
			}
			continue
		}
		if z == nil {
			e.metrics.EmptyQueueTotal.Inc()
			budget.put()
			if budget.batch() {
				return nil
			}
			if !e.sleep(ctx, e.emptyBackoff) {
				return ctx.Err()
			}
			continue
		}

		e.processZone(ctx, log, z)
	}
}

// processZone runs one leased zone end to end. The deferred guard ensures
// the lease never leaks: if no outcome was reported (panic, cancellation,
// breaker rejection) the zone is abandoned back to the queue.
func (e *Engine) processZone(ctx context.Context, log *zap.Logger, z *model.Zone) {
	reported := false
	defer func() {
		if !reported {
			// Release must survive the cancellation that interrupted the run.
			if err := e.scheduler.Abandon(context.WithoutCancel(ctx), z.ID); err != nil {
				log.Error("engine: abandon failed",
					zap.Int64("zone_id", z.ID),
					zap.Error(err),
				)
			}
		}
	}()

	if lim := e.limiters[z.Source]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return
		}
	}

	var attempt *model.ScrapeAttempt
	start := time.Now()
	err := e.breakers.Get(z.Source).Execute(ctx, func(ctx context.Context) error {
		attempt = e.runner.Run(ctx, z, e.openAttempt(ctx, log, z))
		if attempt.Status == model.AttemptFailed {
			return errAttemptFailed
		}
		return nil
	})
	if eris.Is(err, resilience.ErrCircuitOpen) {
		e.metrics.WorkerCooldowns.Inc()
		log.Warn("engine: launch breaker open, cooling down",
			zap.Int64("zone_id", z.ID))
		e.sleep(ctx, time.Duration(e.cfg.CooldownSecs)*time.Second)
		return
	}
	if attempt == nil {
		return
	}

	e.completeAttempt(ctx, log, attempt)
	e.metrics.ObserveAttempt(z.Source, attempt, time.Since(start).Seconds())

	if err := e.scheduler.ReportOutcome(ctx, z, zone.Outcome{
		Status:       attempt.Status,
		RecordsFound: attempt.RecordsFound,
		RecordsNew:   attempt.RecordsNew,
	}); err != nil {
		log.Error("engine: report outcome failed",
			zap.Int64("zone_id", z.ID),
			zap.Error(err),
		)
		return
	}
	reported = true
}

// openAttempt writes the start-of-run audit row and returns its ID. A
// worker that dies before CompleteAttempt leaves the running row behind as
// the crash marker. Persistence failure is logged, never fatal: losing an
// audit row must not cost us the zone.
func (e *Engine) openAttempt(ctx context.Context, log *zap.Logger, z *model.Zone) string {
	attempt := &model.ScrapeAttempt{
		ID:        uuid.NewString(),
		ZoneID:    z.ID,
		Status:    model.AttemptRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := e.zones.CreateAttempt(ctx, attempt); err != nil {
		log.Error("engine: record attempt start failed",
			zap.String("attempt_id", attempt.ID),
			zap.Error(err),
		)
	}
	return attempt.ID
}

// completeAttempt records the terminal state on the row openAttempt wrote.
// Persistence failure is logged but never blocks the outcome report.
func (e *Engine) completeAttempt(ctx context.Context, log *zap.Logger, attempt *model.ScrapeAttempt) {
	if err := e.zones.CompleteAttempt(ctx, attempt); err != nil {
		log.Error("engine: complete attempt failed",
			zap.String("attempt_id", attempt.ID),
			zap.Error(err),
		)
	}
}

func (e *Engine) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			freed, err := e.scheduler.SweepStaleLeases(ctx)
			if err != nil {
				zap.L().Error("engine: stale-lease sweep failed", zap.Error(err))
				continue
			}
			e.metrics.StaleLeasesFreed.Add(float64(freed))
		}
	}
}

// sleep waits for d or until ctx is cancelled. Reports false on cancel.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
