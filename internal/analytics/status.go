package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"retention-analytics-service/internal/models"
)

// StatusThresholds holds the recency cutoffs for status classification. They
// are injected per run so different business cadences (subscription boxes vs.
// furniture) can tune them without code changes.
type StatusThresholds struct {
	ActiveDays int `json:"activeDays"`
	AtRiskDays int `json:"atRiskDays"`
}

// DefaultStatusThresholds returns the standard 30/90 day cutoffs.
func DefaultStatusThresholds() StatusThresholds {
	return StatusThresholds{ActiveDays: 30, AtRiskDays: 90}
}

// Validate checks the thresholds describe non-overlapping, exhaustive ranges.
func (t StatusThresholds) Validate() error {
	if t.ActiveDays <= 0 {
		return fmt.Errorf("active days threshold must be positive, got %d", t.ActiveDays)
	}
	if t.AtRiskDays <= t.ActiveDays {
		return fmt.Errorf("at-risk days threshold (%d) must exceed active days threshold (%d)", t.AtRiskDays, t.ActiveDays)
	}
	return nil
}

// ClassifyStatuses evaluates every customer's recency against referenceDate
// and assigns exactly one retention status. Matching is by fixed priority:
// a negative recency (last order after the reference date) always wins as
// DATA_QUALITY_ISSUE, then ACTIVE, AT_RISK and INACTIVE by ascending recency.
//
// The output is ordered by customer ID so re-runs with the same inputs are
// byte-identical.
func ClassifyStatuses(facts map[uuid.UUID]models.CustomerFacts, referenceDate time.Time, thresholds StatusThresholds) ([]models.RetentionSnapshot, error) {
	if referenceDate.IsZero() {
		return nil, fmt.Errorf("reference date is required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	snapshots := make([]models.RetentionSnapshot, 0, len(facts))
	for _, f := range facts {
		days := models.DaysBetween(f.LastOrderDate, referenceDate)

		var status models.RetentionStatus
		switch {
		case days < 0:
			status = models.RetentionStatusDataQuality
		case days <= thresholds.ActiveDays:
			status = models.RetentionStatusActive
		case days <= thresholds.AtRiskDays:
			status = models.RetentionStatusAtRisk
		default:
			status = models.RetentionStatusInactive
		}

		snapshots = append(snapshots, models.RetentionSnapshot{
			CustomerID:         f.CustomerID,
			ReferenceDate:      referenceDate,
			DaysSinceLastOrder: days,
			RetentionStatus:    status,
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CustomerID.String() < snapshots[j].CustomerID.String()
	})
	return snapshots, nil
}

// BuildRollup condenses one day's snapshots into the per-status counts and
// AT_RISK share that the alert baseline is computed from.
func BuildRollup(snapshots []models.RetentionSnapshot, referenceDate time.Time) models.StatusRollup {
	rollup := models.StatusRollup{ReferenceDate: referenceDate}
	for _, s := range snapshots {
		switch s.RetentionStatus {
		case models.RetentionStatusActive:
			rollup.ActiveCount++
		case models.RetentionStatusAtRisk:
			rollup.AtRiskCount++
		case models.RetentionStatusInactive:
			rollup.InactiveCount++
		case models.RetentionStatusDataQuality:
			rollup.DataQuality++
		}
	}
	rollup.SampleSize = len(snapshots)
	if rollup.SampleSize > 0 {
		rollup.AtRiskPct = float64(rollup.AtRiskCount) * 100 / float64(rollup.SampleSize)
	}
	return rollup
}
