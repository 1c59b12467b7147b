// Package monitoring exposes pipeline metrics and the optional HTTP
// listener that serves them.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	AttemptsTotal    *prometheus.CounterVec
	RecordsFound     *prometheus.CounterVec
	RecordsNew       *prometheus.CounterVec
	RecordsMerged    *prometheus.CounterVec
	LeaseWaitSeconds prometheus.Histogram
	AttemptSeconds   prometheus.Histogram
	EmptyQueueTotal  prometheus.Counter
	StaleLeasesFreed prometheus.Counter
	WorkerCooldowns  prometheus.Counter
}

// NewMetrics creates and registers the collectors on the given registry.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_attempts_total",
			Help: "Scrape attempts by source and terminal status.",
		}, []string{"source", "status"}),
		RecordsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_records_found_total",
			Help: "Candidate records extracted, before identity resolution.",
		}, []string{"source"}),
		RecordsNew: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_records_new_total",
			Help: "Canonical leads created.",
		}, []string{"source"}),
		RecordsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_records_merged_total",
			Help: "Candidates absorbed into existing leads.",
		}, []string{"source"}),
		LeaseWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sniper_lease_wait_seconds",
			Help:    "Time spent waiting for a zone lease.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		AttemptSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sniper_attempt_seconds",
			Help:    "Wall time of one scrape attempt.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		EmptyQueueTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_empty_queue_total",
			Help: "Lease requests that found no eligible zone.",
		}),
		StaleLeasesFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_stale_leases_freed_total",
			Help: "Zones unlocked by the stale-lease sweeper.",
		}),
		WorkerCooldowns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_worker_cooldowns_total",
			Help: "Worker cooldowns triggered by browser-launch failures.",
		}),
	}

	reg.MustRegister(
		m.AttemptsTotal,
		m.RecordsFound,
		m.RecordsNew,
		m.RecordsMerged,
		m.LeaseWaitSeconds,
		m.AttemptSeconds,
		m.EmptyQueueTotal,
		m.StaleLeasesFreed,
		m.WorkerCooldowns,
	)
	return m
}

// ObserveAttempt folds one completed attempt into the counters.
func (m *Metrics) ObserveAttempt(source model.Source, attempt *model.ScrapeAttempt, elapsedSeconds float64) {
	src := string(source)
	m.AttemptsTotal.WithLabelValues(src, string(attempt.Status)).Inc()
	m.RecordsFound.WithLabelValues(src).Add(float64(attempt.RecordsFound))
	m.RecordsNew.WithLabelValues(src).Add(float64(attempt.RecordsNew))
	m.RecordsMerged.WithLabelValues(src).Add(float64(attempt.RecordsMerged))
	m.AttemptSeconds.Observe(elapsedSeconds)
}
