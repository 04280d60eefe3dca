package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "studio_"

	resultSuccess = "success"
	resultError   = "error"

	pushResultSkippedConflict = "skipped_conflict"
	removalResultSkipped      = "skipped_claimed"
)

var (
	registerOnce sync.Once

	syncPushes    *prometheus.CounterVec
	syncRemovals  *prometheus.CounterVec
	syncFlushes   *prometheus.HistogramVec
	dragFrames    *prometheus.CounterVec
	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	conflictsActive  prometheus.Gauge
	pendingOverrides prometheus.Gauge

	reconcileRemaps  prometheus.Counter
	reconcileOrphans prometheus.Counter
)

// Init registers editor metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		syncPushes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_pushes_total",
				Help: "Total backend mapping pushes by result",
			},
			[]string{"result"},
		)
		syncRemovals = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_removals_total",
				Help: "Total backend old-key removals by result",
			},
			[]string{"result"},
		)
		syncFlushes = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sync_flush_duration_seconds",
				Help:    "Debounced sync flush duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		dragFrames = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "drag_frames_total",
				Help: "Drag frames by outcome",
			},
			[]string{"outcome"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "binding_export_total",
				Help: "Total binding sheet exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "binding_export_latency_seconds",
				Help:    "Binding sheet export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		conflictsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "conflicts_active",
			Help: "Records currently flagged with a duplicate-key warning",
		})
		pendingOverrides = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "pending_overrides",
			Help: "Pending overrides buffered for the loaded scope",
		})

		reconcileRemaps = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "reconcile_identity_remaps_total",
			Help: "Colliding creation identities remapped during reconciliation",
		})
		reconcileOrphans = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "reconcile_orphans_total",
			Help: "Orphan records materialized from unclaimed overrides",
		})

		prometheus.MustRegister(
			syncPushes,
			syncRemovals,
			syncFlushes,
			dragFrames,
			exportTotal,
			exportLatency,
			conflictsActive,
			pendingOverrides,
			reconcileRemaps,
			reconcileOrphans,
		)
	})
}

// IncSyncPush increments push counter by result.
func IncSyncPush(result string) {
	if result == "" {
		result = resultSuccess
	}
	if syncPushes != nil {
		syncPushes.WithLabelValues(result).Inc()
	}
}

// IncSyncRemoval increments old-key removal counter by result.
func IncSyncRemoval(result string) {
	if result == "" {
		result = resultSuccess
	}
	if syncRemovals != nil {
		syncRemovals.WithLabelValues(result).Inc()
	}
}

// ObserveSyncFlush records one debounced flush pass.
func ObserveSyncFlush(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if syncFlushes != nil {
		syncFlushes.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncDragFrame counts a drag frame outcome (applied or throttled).
func IncDragFrame(outcome string) {
	if outcome == "" {
		outcome = "applied"
	}
	if dragFrames != nil {
		dragFrames.WithLabelValues(outcome).Inc()
	}
}

// ObserveExport records a binding sheet export.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// SetConflictsActive sets the active conflict gauge.
func SetConflictsActive(count int) {
	if conflictsActive != nil {
		conflictsActive.Set(float64(count))
	}
}

// SetPendingOverrides sets the pending override gauge.
func SetPendingOverrides(count int) {
	if pendingOverrides != nil {
		pendingOverrides.Set(float64(count))
	}
}

// IncReconcileRemap counts one identity collision remap.
func IncReconcileRemap() {
	if reconcileRemaps != nil {
		reconcileRemaps.Inc()
	}
}

// IncReconcileOrphan counts one materialized orphan record.
func IncReconcileOrphan() {
	if reconcileOrphans != nil {
		reconcileOrphans.Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	PushResultSkippedConflict = pushResultSkippedConflict
	RemovalResultSkipped      = removalResultSkipped

	DragOutcomeApplied   = "applied"
	DragOutcomeThrottled = "throttled"
)
