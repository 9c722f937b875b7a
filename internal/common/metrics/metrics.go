// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_oracle_calls_total",
			Help: "Total number of scoring calls issued to the oracle",
		},
		[]string{"module"},
	)

	OracleCallsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_oracle_calls_failed_total",
			Help: "Total number of oracle calls that failed, by error kind",
		},
		[]string{"module", "error_kind"},
	)

	OracleCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "audit_oracle_call_duration_seconds",
			Help: "Duration of oracle scoring calls in seconds",
		},
		[]string{"module"},
	)

	OracleCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_oracle_cache_hits_total",
			Help: "Oracle responses served from the response cache",
		},
		[]string{"module"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "audit_analysis_duration_seconds",
			Help: "Duration of whole analysis runs in seconds",
		},
		[]string{"analysis"},
	)

	AnalysisRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_analysis_runs_total",
			Help: "Completed analysis runs by outcome",
		},
		[]string{"analysis", "status"},
	)
)
