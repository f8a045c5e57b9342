package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ingestedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devledger",
		Subsystem: "ingest",
		Name:      "activities_ingested_total",
		Help:      "Number of new activities stored, labeled by source.",
	}, []string{"source"})

	dedupedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devledger",
		Subsystem: "ingest",
		Name:      "activities_deduped_total",
		Help:      "Number of upserts resolved to an existing activity, labeled by source.",
	}, []string{"source"})

	malformedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devledger",
		Subsystem: "ingest",
		Name:      "malformed_events_total",
		Help:      "Number of provider events skipped because they could not be decoded.",
	}, []string{"source"})

	syncRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devledger",
		Subsystem: "ingest",
		Name:      "sync_runs_total",
		Help:      "Number of sync runs, labeled by source and outcome.",
	}, []string{"source", "result"})

	syncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "devledger",
		Subsystem: "ingest",
		Name:      "sync_duration_seconds",
		Help:      "Wall time of a sync run including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"source"})

	lastIngestedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "devledger",
		Subsystem: "ingest",
		Name:      "last_activity_ingested_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity stored per source.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(ingestedCounter, dedupedCounter, malformedCounter, syncRunCounter, syncDuration, lastIngestedGauge)
}

// RecordActivityIngested updates the ingestion watermark for a source.
func RecordActivityIngested(source string, ts time.Time) {
	ingestedCounter.WithLabelValues(source).Inc()
	if !ts.IsZero() {
		lastIngestedGauge.WithLabelValues(source).Set(float64(ts.Unix()))
	}
}

// RecordActivitiesDeduped records upserts resolved to an existing row.
// Inserts are counted by RecordActivityIngested at the store.
func RecordActivitiesDeduped(source string, count int) {
	if count > 0 {
		dedupedCounter.WithLabelValues(source).Add(float64(count))
	}
}

// RecordMalformedEvents counts skipped undecodable provider events.
func RecordMalformedEvents(source string, count int) {
	if count > 0 {
		malformedCounter.WithLabelValues(source).Add(float64(count))
	}
}

// RecordSyncRun records the outcome and duration of one sync run.
func RecordSyncRun(source, result string, elapsed time.Duration) {
	syncRunCounter.WithLabelValues(source, result).Inc()
	syncDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}
