package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"retention-analytics-service/internal/analytics"
	"retention-analytics-service/internal/events"
	"retention-analytics-service/internal/metrics"
	"retention-analytics-service/internal/models"
	"retention-analytics-service/internal/repository"
)

// PipelineConfig bundles the per-stage thresholds for a pipeline run.
type PipelineConfig struct {
	StatusThresholds analytics.StatusThresholds `json:"statusThresholds"`
	RiskConfig       analytics.RiskConfig       `json:"riskConfig"`
	AlertConfig      analytics.AlertConfig      `json:"alertConfig"`
}

// Validate checks every stage's thresholds before any computation starts.
func (c PipelineConfig) Validate() error {
	if err := c.StatusThresholds.Validate(); err != nil {
		return fmt.Errorf("status thresholds: %w", err)
	}
	if err := c.RiskConfig.Validate(); err != nil {
		return fmt.Errorf("risk config: %w", err)
	}
	if err := c.AlertConfig.Validate(); err != nil {
		return fmt.Errorf("alert config: %w", err)
	}
	return nil
}

// PipelineResult summarizes one daily run for callers and logs.
type PipelineResult struct {
	ReferenceDate      time.Time            `json:"referenceDate"`
	CustomersEvaluated int                  `json:"customersEvaluated"`
	Rollup             models.StatusRollup  `json:"rollup"`
	HighRiskCustomers  int                  `json:"highRiskCustomers"`
	Decision           models.AlertDecision `json:"decision"`
}

// PipelineService runs the daily retention pipeline: facts, status
// snapshots, churn assessments, the day's rollup and the alert decision, in
// dependency order. Each run is parameterized by an explicit reference date;
// the service never consults the clock for it.
type PipelineService struct {
	orders    repository.OrderRepositoryInterface
	metrics   repository.MetricsRepositoryInterface
	publisher events.AlertPublisherInterface
	config    PipelineConfig
	logger    *logrus.Entry
}

// NewPipelineService creates a new pipeline service. The publisher may be nil
// when the event bus is unavailable; alert decisions are still persisted.
func NewPipelineService(orders repository.OrderRepositoryInterface, metricsRepo repository.MetricsRepositoryInterface, publisher events.AlertPublisherInterface, config PipelineConfig, logger *logrus.Logger) *PipelineService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PipelineService{
		orders:    orders,
		metrics:   metricsRepo,
		publisher: publisher,
		config:    config,
		logger:    logger.WithField("component", "pipeline"),
	}
}

// RunDaily executes the full pipeline for referenceDate. Re-running for the
// same date with the same ledger replaces that date's outputs with identical
// rows; other dates are never touched.
func (s *PipelineService) RunDaily(ctx context.Context, referenceDate time.Time) (*PipelineResult, error) {
	if referenceDate.IsZero() {
		return nil, fmt.Errorf("reference date is required")
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	referenceDate = time.Date(referenceDate.Year(), referenceDate.Month(), referenceDate.Day(), 0, 0, 0, 0, time.UTC)

	started := time.Now()
	log := s.logger.WithField("referenceDate", referenceDate.Format("2006-01-02"))
	log.Info("Starting daily retention pipeline")

	orders, err := s.orders.ListCompletedOrders(ctx)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load order ledger: %w", err)
	}

	facts, err := analytics.BuildFacts(orders)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fact build failed: %w", err)
	}
	if err := s.metrics.ReplaceFacts(ctx, analytics.SortedFacts(facts)); err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to persist customer facts: %w", err)
	}

	snapshots, err := analytics.ClassifyStatuses(facts, referenceDate, s.config.StatusThresholds)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("status classification failed: %w", err)
	}
	if err := s.metrics.ReplaceSnapshots(ctx, referenceDate, snapshots); err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to persist snapshots: %w", err)
	}

	assessments, err := analytics.ScoreChurnRisk(facts, snapshots, s.config.RiskConfig)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("risk scoring failed: %w", err)
	}
	if err := s.metrics.ReplaceAssessments(ctx, referenceDate, assessments); err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to persist assessments: %w", err)
	}

	rollup := analytics.BuildRollup(snapshots, referenceDate)
	if err := s.metrics.UpsertRollup(ctx, rollup); err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to persist status rollup: %w", err)
	}

	history, err := s.metrics.ListRollups(ctx, referenceDate, s.config.AlertConfig.BaselineWindowDays)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load rollup history: %w", err)
	}

	decision, err := analytics.EvaluateAlert(history, referenceDate, s.config.AlertConfig)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("alert evaluation failed: %w", err)
	}
	// Keep the thresholds alongside the verdict: they are runtime-injected
	// and may differ between dates.
	if cfgJSON, err := json.Marshal(s.config.AlertConfig); err == nil {
		decision.Config = cfgJSON
	}
	if err := s.metrics.CreateAlertDecision(ctx, &decision); err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to persist alert decision: %w", err)
	}

	if decision.AlertFlag {
		metrics.AlertsTriggered.WithLabelValues(string(decision.Severity)).Inc()
		if s.publisher != nil {
			if err := s.publisher.PublishAlertTriggered(ctx, &decision); err != nil {
				log.WithError(err).Warn("Failed to publish alert event")
			}
		}
	}

	s.metrics.CacheSummary(ctx, rollup)

	highRisk := 0
	for _, a := range assessments {
		if a.ChurnRiskLevel == models.ChurnRiskHigh {
			highRisk++
		}
	}

	metrics.PipelineRuns.WithLabelValues("success").Inc()
	metrics.CustomersClassified.Set(float64(rollup.SampleSize))
	metrics.AtRiskShare.Set(rollup.AtRiskPct)

	log.WithFields(logrus.Fields{
		"customers":  rollup.SampleSize,
		"atRiskPct":  rollup.AtRiskPct,
		"highRisk":   highRisk,
		"severity":   decision.Severity,
		"alertFlag":  decision.AlertFlag,
		"durationMs": time.Since(started).Milliseconds(),
	}).Info("Daily retention pipeline finished")

	return &PipelineResult{
		ReferenceDate:      referenceDate,
		CustomersEvaluated: rollup.SampleSize,
		Rollup:             rollup,
		HighRiskCustomers:  highRisk,
		Decision:           decision,
	}, nil
}
