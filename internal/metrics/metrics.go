// Package metrics exposes the follower's Prometheus instrumentation: cursor
// positions per shard, reconciler table size, pruning activity, and sweep
// duration.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shardfollower/internal/shardtx"
)

// Recorder implements follower.Recorder against a dedicated Prometheus
// registry, so a single process can run more than one follower without
// colliding metric names.
type Recorder struct {
	registry *prometheus.Registry

	sweepDuration     prometheus.Histogram
	reconcilerEntries prometheus.Gauge
	prunedTotal       prometheus.Counter
	cursor            *prometheus.GaugeVec
}

// New creates a Recorder and registers its collectors against a fresh
// registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shardfollower_sweep_duration_seconds",
			Help:    "Duration of a full orchestrator sweep across all shards.",
			Buckets: prometheus.DefBuckets,
		}),
		reconcilerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shardfollower_reconciler_entries",
			Help: "Number of cross-shard transactions currently awaiting completion.",
		}),
		prunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shardfollower_reconciler_pruned_total",
			Help: "Total number of cross-shard entries removed without delivery.",
		}),
		cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shardfollower_cursor_nonce",
			Help: "Last-processed nonce per shard.",
		}, []string{"shard"}),
	}

	reg.MustRegister(r.sweepDuration, r.reconcilerEntries, r.prunedTotal, r.cursor)
	return r
}

// Registry returns the underlying registry, for mounting under promhttp.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveSweepDuration records how long one full orchestrator sweep took.
func (r *Recorder) ObserveSweepDuration(d time.Duration) {
	r.sweepDuration.Observe(d.Seconds())
}

// SetReconcilerEntries sets the current size of the in-flight cross-shard
// table.
func (r *Recorder) SetReconcilerEntries(n int) {
	r.reconcilerEntries.Set(float64(n))
}

// IncPruned adds n to the pruned-without-delivery counter.
func (r *Recorder) IncPruned(n int) {
	if n <= 0 {
		return
	}
	r.prunedTotal.Add(float64(n))
}

// SetCursor records the last-processed nonce for shardID.
func (r *Recorder) SetCursor(shardID uint32, nonce uint64) {
	r.cursor.WithLabelValues(shardLabel(shardID)).Set(float64(nonce))
}

func shardLabel(shardID uint32) string {
	if shardID == shardtx.MetachainShardID {
		return "metachain"
	}
	return strconv.FormatUint(uint64(shardID), 10)
}
