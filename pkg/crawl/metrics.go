package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amadown_pages_captured_total",
		Help: "Pages saved as artifacts",
	})

	pagesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amadown_pages_skipped_total",
		Help: "Pages skipped because an artifact already exists",
	})

	pageRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amadown_page_retries_total",
		Help: "Same-page retries by reason",
	}, []string{"reason"})

	challengesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amadown_challenges_total",
		Help: "Challenge pages by action taken",
	}, []string{"action"})

	pauseSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amadown_pause_seconds",
		Help: "Current pacing delay in seconds",
	})

	targetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amadown_targets_total",
		Help: "Finished targets by stop reason",
	}, []string{"reason"})
)
