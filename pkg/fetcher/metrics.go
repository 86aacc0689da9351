package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amadown_fetch_attempts_total",
		Help: "Connection attempts by result",
	}, []string{"result"})

	fetchExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amadown_fetch_exhausted_total",
		Help: "Fetches that gave up after every attempt failed",
	})

	httpResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amadown_http_responses_total",
		Help: "Completed reads by HTTP status",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "amadown_fetch_duration_seconds",
		Help:    "Duration of completed reads in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 180},
	})

	pauseSecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amadown_pause_seconds_total",
		Help: "Seconds spent in the post-read pause",
	})
)
