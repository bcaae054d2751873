// Package metrics exposes Prometheus instrumentation for the retention
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts daily pipeline executions by outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retention",
		Name:      "pipeline_runs_total",
		Help:      "Daily pipeline executions by outcome",
	}, []string{"outcome"})

	// CustomersClassified reports the size of the last classified base.
	CustomersClassified = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "retention",
		Name:      "customers_classified",
		Help:      "Customers classified in the most recent pipeline run",
	})

	// AtRiskShare reports the last computed AT_RISK percentage.
	AtRiskShare = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "retention",
		Name:      "at_risk_share_pct",
		Help:      "Share of the customer base in AT_RISK status, percent",
	})

	// AlertsTriggered counts flagged alert decisions by severity.
	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retention",
		Name:      "alerts_triggered_total",
		Help:      "Alert decisions with the alert flag set, by severity",
	}, []string{"severity"})

	// CohortRebuilds counts cohort matrix rebuilds by outcome.
	CohortRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retention",
		Name:      "cohort_rebuilds_total",
		Help:      "Cohort matrix rebuilds by outcome",
	}, []string{"outcome"})
)
