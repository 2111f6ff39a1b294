package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatarchive",
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Total number of ingestion runs broken down by kind and terminal state.",
	}, []string{"kind", "state"})

	ingestRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatarchive",
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Rows affected by ingestion writes broken down by table and op.",
	}, []string{"table", "op"})

	ingestSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatarchive",
		Subsystem: "ingest",
		Name:      "skipped_records_total",
		Help:      "Malformed records skipped in lenient mode broken down by kind.",
	}, []string{"kind"})

	ingestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatarchive",
		Subsystem: "ingest",
		Name:      "run_duration_seconds",
		Help:      "Wall time of ingestion runs broken down by kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

func recordRun(kind Kind, state State, seconds float64) {
	k := string(kind)
	if k == "" {
		k = "unknown"
	}
	ingestRuns.WithLabelValues(k, string(state)).Inc()
	ingestDuration.WithLabelValues(k).Observe(seconds)
}

func recordRows(stmt Statement, affected int64) {
	ingestRows.WithLabelValues(stmt.Table.Name, string(stmt.Op)).Add(float64(affected))
}

func recordSkipped(kind Kind) {
	ingestSkipped.WithLabelValues(string(kind)).Inc()
}
