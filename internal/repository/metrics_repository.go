package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"retention-analytics-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// SummaryCacheTTL bounds staleness of the dashboard summary between runs
const SummaryCacheTTL = 10 * time.Minute

const summaryCacheKey = "retention:summary:latest"

// MetricsRepositoryInterface abstracts persistence of the derived datasets
// for the pipeline and cohort services
type MetricsRepositoryInterface interface {
	ReplaceFacts(ctx context.Context, facts []models.CustomerFacts) error
	ReplaceSnapshots(ctx context.Context, referenceDate time.Time, snapshots []models.RetentionSnapshot) error
	ReplaceAssessments(ctx context.Context, referenceDate time.Time, assessments []models.ChurnAssessment) error
	UpsertRollup(ctx context.Context, rollup models.StatusRollup) error
	ListRollups(ctx context.Context, upTo time.Time, windowDays int) ([]models.StatusRollup, error)
	ReplaceCohortRecords(ctx context.Context, records []models.CohortRecord) error
	CreateAlertDecision(ctx context.Context, decision *models.AlertDecision) error
	CacheSummary(ctx context.Context, rollup models.StatusRollup)
}

// MetricsRepository persists the derived datasets of the retention pipeline.
// Each Replace* call swaps a stage's output for its key (refresh cycle or
// reference date) in one transaction, so re-execution with identical inputs
// leaves the tables byte-identical.
type MetricsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewMetricsRepository creates a new metrics repository with optional Redis
// caching of the latest summary
func NewMetricsRepository(db *gorm.DB, redisClient *redis.Client) *MetricsRepository {
	return &MetricsRepository{db: db, redis: redisClient}
}

// ReplaceFacts atomically swaps the fact table for the new refresh cycle.
func (r *MetricsRepository) ReplaceFacts(ctx context.Context, facts []models.CustomerFacts) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CustomerFacts{}).Error; err != nil {
			return fmt.Errorf("failed to clear customer facts: %w", err)
		}
		if len(facts) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(facts, 500).Error; err != nil {
			return fmt.Errorf("failed to insert customer facts: %w", err)
		}
		return nil
	})
}

// ReplaceSnapshots replaces the snapshot rows for one reference date. Rows
// for other dates are never touched: each date is its own historical record.
func (r *MetricsRepository) ReplaceSnapshots(ctx context.Context, referenceDate time.Time, snapshots []models.RetentionSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference_date = ?", referenceDate).Delete(&models.RetentionSnapshot{}).Error; err != nil {
			return fmt.Errorf("failed to clear snapshots for %s: %w", referenceDate.Format("2006-01-02"), err)
		}
		if len(snapshots) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(snapshots, 500).Error; err != nil {
			return fmt.Errorf("failed to insert snapshots: %w", err)
		}
		return nil
	})
}

// ReplaceAssessments replaces the churn assessments for one reference date.
func (r *MetricsRepository) ReplaceAssessments(ctx context.Context, referenceDate time.Time, assessments []models.ChurnAssessment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference_date = ?", referenceDate).Delete(&models.ChurnAssessment{}).Error; err != nil {
			return fmt.Errorf("failed to clear assessments for %s: %w", referenceDate.Format("2006-01-02"), err)
		}
		if len(assessments) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(assessments, 500).Error; err != nil {
			return fmt.Errorf("failed to insert assessments: %w", err)
		}
		return nil
	})
}

// UpsertRollup writes the day's status rollup, replacing an earlier run of
// the same date.
func (r *MetricsRepository) UpsertRollup(ctx context.Context, rollup models.StatusRollup) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference_date = ?", rollup.ReferenceDate).Delete(&models.StatusRollup{}).Error; err != nil {
			return err
		}
		return tx.Create(&rollup).Error
	})
}

// ListRollups returns the rollup series up to and including upTo, bounded to
// windowDays+1 days so the alert evaluator only ever sees its sliding window.
func (r *MetricsRepository) ListRollups(ctx context.Context, upTo time.Time, windowDays int) ([]models.StatusRollup, error) {
	var rollups []models.StatusRollup
	from := upTo.AddDate(0, 0, -windowDays)
	err := r.db.WithContext(ctx).
		Where("reference_date >= ? AND reference_date <= ?", from, upTo).
		Order("reference_date ASC").
		Find(&rollups).Error
	return rollups, err
}

// ReplaceCohortRecords swaps the cohort matrix for a fresh rebuild.
func (r *MetricsRepository) ReplaceCohortRecords(ctx context.Context, records []models.CohortRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CohortRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear cohort records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 500).Error; err != nil {
			return fmt.Errorf("failed to insert cohort records: %w", err)
		}
		return nil
	})
}

// CreateAlertDecision appends the day's decision, replacing an earlier run of
// the same date. Prior dates are never rewritten.
func (r *MetricsRepository) CreateAlertDecision(ctx context.Context, decision *models.AlertDecision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference_date = ?", decision.ReferenceDate).Delete(&models.AlertDecision{}).Error; err != nil {
			return err
		}
		return tx.Create(decision).Error
	})
}

// CacheSummary stores the latest rollup in Redis for the dashboard summary
// endpoint. Failures only cost cache freshness, so they are swallowed.
func (r *MetricsRepository) CacheSummary(ctx context.Context, rollup models.StatusRollup) {
	if r.redis == nil {
		return
	}
	payload, err := json.Marshal(rollup)
	if err != nil {
		return
	}
	_ = r.redis.Set(ctx, summaryCacheKey, payload, SummaryCacheTTL).Err()
}

// GetCachedSummary returns the cached latest rollup, or ErrNotFound on a
// cache miss or when Redis is not configured.
func (r *MetricsRepository) GetCachedSummary(ctx context.Context) (*models.StatusRollup, error) {
	if r.redis == nil {
		return nil, ErrNotFound
	}
	payload, err := r.redis.Get(ctx, summaryCacheKey).Bytes()
	if err != nil {
		return nil, ErrNotFound
	}
	var rollup models.StatusRollup
	if err := json.Unmarshal(payload, &rollup); err != nil {
		return nil, fmt.Errorf("corrupt summary cache entry: %w", err)
	}
	return &rollup, nil
}

// LatestRollup returns the most recent rollup from the database.
func (r *MetricsRepository) LatestRollup(ctx context.Context) (*models.StatusRollup, error) {
	var rollup models.StatusRollup
	err := r.db.WithContext(ctx).Order("reference_date DESC").First(&rollup).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rollup, nil
}

// ListSnapshots returns the snapshots for a reference date, optionally
// filtered by status.
func (r *MetricsRepository) ListSnapshots(ctx context.Context, referenceDate time.Time, status models.RetentionStatus) ([]models.RetentionSnapshot, error) {
	var snapshots []models.RetentionSnapshot
	query := r.db.WithContext(ctx).Where("reference_date = ?", referenceDate)
	if status != "" {
		query = query.Where("retention_status = ?", status)
	}
	err := query.Order("customer_id ASC").Find(&snapshots).Error
	return snapshots, err
}

// ListAssessments returns the churn assessments for a reference date,
// optionally filtered by risk level.
func (r *MetricsRepository) ListAssessments(ctx context.Context, referenceDate time.Time, level models.ChurnRiskLevel) ([]models.ChurnAssessment, error) {
	var assessments []models.ChurnAssessment
	query := r.db.WithContext(ctx).Where("reference_date = ?", referenceDate)
	if level != "" {
		query = query.Where("churn_risk_level = ?", level)
	}
	err := query.Order("churn_risk_score DESC, customer_id ASC").Find(&assessments).Error
	return assessments, err
}

// ListCohortRecords returns the cohort matrix, optionally capped by maturity.
// The cap is presentation-side only: the stored matrix is always complete.
func (r *MetricsRepository) ListCohortRecords(ctx context.Context, maxMaturity int) ([]models.CohortRecord, error) {
	var records []models.CohortRecord
	query := r.db.WithContext(ctx)
	if maxMaturity >= 0 {
		query = query.Where("months_since_acquisition <= ?", maxMaturity)
	}
	err := query.Order("cohort_month ASC, months_since_acquisition ASC").Find(&records).Error
	return records, err
}

// ListAlertDecisions returns the decision history, newest first.
func (r *MetricsRepository) ListAlertDecisions(ctx context.Context, limit int) ([]models.AlertDecision, error) {
	var decisions []models.AlertDecision
	query := r.db.WithContext(ctx).Order("reference_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&decisions).Error
	return decisions, err
}

// LatestAlertDecision returns the most recent decision.
func (r *MetricsRepository) LatestAlertDecision(ctx context.Context) (*models.AlertDecision, error) {
	var decision models.AlertDecision
	err := r.db.WithContext(ctx).Order("reference_date DESC").First(&decision).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &decision, nil
}

// LatestSnapshotDate returns the most recent reference date with snapshots.
func (r *MetricsRepository) LatestSnapshotDate(ctx context.Context) (time.Time, error) {
	var snapshot models.RetentionSnapshot
	err := r.db.WithContext(ctx).Order("reference_date DESC").First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return snapshot.ReferenceDate, nil
}

// RedisHealth returns the health status of the Redis connection
func (r *MetricsRepository) RedisHealth(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}
