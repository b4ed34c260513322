// Package metrics holds the Prometheus collectors exported by the ledger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// RefreshDuration tracks latest-index refresh latency by index name.
	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Latest index refresh duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"index"})

	// RefreshTotal counts refreshes by index and result.
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_total",
		Help:      "Total latest index refreshes by index and result",
	}, []string{"index", "result"})

	// AppendedVersions counts translation versions by whether they were new.
	AppendedVersions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "translation_versions_appended_total",
		Help:      "Translation versions submitted during sync by outcome",
	}, []string{"outcome"})

	// SyncedFiles counts processed language files by result.
	SyncedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_files_total",
		Help:      "Language files processed by folder sync",
	}, []string{"result"})

	// PairsSelected observes how many pairs each selection returned.
	PairsSelected = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pairs_selected",
		Help:      "Number of pairs returned per selection",
		Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
	})
)

// ObserveRefresh records one refresh of the named index.
func ObserveRefresh(index string, started time.Time, err error) {
	RefreshDuration.WithLabelValues(index).Observe(time.Since(started).Seconds())
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	RefreshTotal.WithLabelValues(index, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
