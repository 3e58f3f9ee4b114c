// Package metrics holds the Prometheus collectors for the search pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_queries_total",
			Help: "Search queries run through the pipeline, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	CaptchaAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_captcha_attempts_total",
			Help: "Captcha solve attempts, labeled by result.",
		},
		[]string{"result"},
	)
	RowsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_rows_extracted_total",
			Help: "Result rows accepted, labeled by extraction strategy.",
		},
		[]string{"strategy"},
	)
	DetailWalks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_detail_walks_total",
			Help: "Detail page visits, labeled by result.",
		},
		[]string{"result"},
	)
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_query_duration_seconds",
			Help:    "Wall time of a single search query.",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		},
	)
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(CaptchaAttempts)
	prometheus.MustRegister(RowsExtracted)
	prometheus.MustRegister(DetailWalks)
	prometheus.MustRegister(QueryDuration)
}
