package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetlens_analysis_runs_started_total",
		Help: "Analysis runs started, per logs root.",
	}, []string{"root"})

	runsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetlens_analysis_runs_cancelled_total",
		Help: "Analysis runs cancelled because the logs signature changed mid-run.",
	}, []string{"root"})

	parseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetlens_parse_errors_total",
		Help: "Log files that could not be opened or decoded.",
	})

	recordsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetlens_records_skipped_total",
		Help: "Individual records skipped inside otherwise decodable files.",
	})

	enrichmentFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetlens_enrichment_failures_total",
		Help: "Issues left on pattern text after a failed LLM enrichment attempt.",
	})
)
