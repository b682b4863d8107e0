package metrics

import (
	"time"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entrycache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledgerapply"

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// Apply metrics
	EntriesApplied  *prometheus.CounterVec
	ChunksTotal     *prometheus.CounterVec
	AdvanceDuration prometheus.Histogram

	// Flush metrics
	FlushRows       *prometheus.CounterVec
	FlushStatements *prometheus.CounterVec
	FlushDuration   prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntriesApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_applied_total",
				Help:      "Bucket entries applied, by entry kind",
			},
			[]string{"kind"},
		),

		ChunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_total",
				Help:      "Applicator chunks, by outcome",
			},
			[]string{"status"},
		),

		AdvanceDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "advance_duration_seconds",
				Help:      "Duration of one applicator chunk including commit",
				Buckets:   prometheus.DefBuckets,
			},
		),

		FlushRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flush_rows_total",
				Help:      "Rows written by accumulator flushes",
			},
			[]string{"table", "op"},
		),

		FlushStatements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flush_statements_total",
				Help:      "Vector statements executed by accumulator flushes",
			},
			[]string{"table", "op"},
		),

		FlushDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_duration_seconds",
				Help:      "Duration of one accumulator flush",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// ObserveEntries counts n committed bucket entries of kind live or dead.
func (m *Metrics) ObserveEntries(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EntriesApplied.WithLabelValues(kind).Add(float64(n))
}

// ObserveChunk records one Advance call.
func (m *Metrics) ObserveChunk(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "committed"
	if err != nil {
		status = "failed"
	}
	m.ChunksTotal.WithLabelValues(status).Inc()
	m.AdvanceDuration.Observe(d.Seconds())
}

// ObserveStatement records one flush statement writing rows rows.
func (m *Metrics) ObserveStatement(table, op string, rows int) {
	if m == nil {
		return
	}
	m.FlushStatements.WithLabelValues(table, op).Inc()
	m.FlushRows.WithLabelValues(table, op).Add(float64(rows))
}

// ObserveFlush records the duration of one flush.
func (m *Metrics) ObserveFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.FlushDuration.Observe(d.Seconds())
}

// RegisterCache exports the entry cache counters as gauges.
func RegisterCache(reg prometheus.Registerer, cache *entrycache.Cache) {
	factory := promauto.With(reg)
	gauge := func(name, help string, value func(entrycache.Stats) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "entry_cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(cache.Stats()) })
	}
	gauge("hits", "Entry cache lookups answered from the cache",
		func(s entrycache.Stats) float64 { return float64(s.Hits) })
	gauge("misses", "Entry cache lookups that fell through to storage",
		func(s entrycache.Stats) float64 { return float64(s.Misses) })
	gauge("entries", "Keys held by the entry cache",
		func(s entrycache.Stats) float64 { return float64(s.Len) })
}
