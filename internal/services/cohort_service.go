package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"retention-analytics-service/internal/analytics"
	"retention-analytics-service/internal/metrics"
	"retention-analytics-service/internal/repository"
)

// CohortResult summarizes a cohort matrix rebuild.
type CohortResult struct {
	Cohorts    int `json:"cohorts"`
	MatrixRows int `json:"matrixRows"`
	Customers  int `json:"customers"`
}

// CohortService rebuilds the cohort retention matrix from the order ledger.
// The rebuild is purely historical: no reference date enters the computation,
// so a rebuild against the same ledger is bit-identical whenever it runs.
type CohortService struct {
	orders  repository.OrderRepositoryInterface
	metrics repository.MetricsRepositoryInterface
	logger  *logrus.Entry
}

// NewCohortService creates a new cohort service
func NewCohortService(orders repository.OrderRepositoryInterface, metricsRepo repository.MetricsRepositoryInterface, logger *logrus.Logger) *CohortService {
	if logger == nil {
		logger = logrus.New()
	}
	return &CohortService{
		orders:  orders,
		metrics: metricsRepo,
		logger:  logger.WithField("component", "cohorts"),
	}
}

// Rebuild recomputes every cohort's retention curve and swaps the stored
// matrix. A customer's cohort month is fixed by their first completed order;
// retroactive ledger backfills that move a first order date will move the
// customer's cohort on the next rebuild.
func (s *CohortService) Rebuild(ctx context.Context) (*CohortResult, error) {
	started := time.Now()

	orders, err := s.orders.ListCompletedOrders(ctx)
	if err != nil {
		metrics.CohortRebuilds.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load order ledger: %w", err)
	}

	facts, err := analytics.BuildFacts(orders)
	if err != nil {
		metrics.CohortRebuilds.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fact build failed: %w", err)
	}

	periods, err := s.orders.ListActivityPeriods(ctx)
	if err != nil {
		metrics.CohortRebuilds.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load activity periods: %w", err)
	}

	records := analytics.BuildCohorts(facts, periods)
	if err := analytics.ValidateCohortRecords(records); err != nil {
		metrics.CohortRebuilds.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cohort matrix failed validation: %w", err)
	}

	if err := s.metrics.ReplaceCohortRecords(ctx, records); err != nil {
		metrics.CohortRebuilds.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to persist cohort records: %w", err)
	}

	cohorts := make(map[time.Time]struct{})
	for _, r := range records {
		cohorts[r.CohortMonth] = struct{}{}
	}

	metrics.CohortRebuilds.WithLabelValues("success").Inc()
	s.logger.WithFields(logrus.Fields{
		"cohorts":    len(cohorts),
		"matrixRows": len(records),
		"customers":  len(facts),
		"durationMs": time.Since(started).Milliseconds(),
	}).Info("Cohort matrix rebuilt")

	return &CohortResult{
		Cohorts:    len(cohorts),
		MatrixRows: len(records),
		Customers:  len(facts),
	}, nil
}
