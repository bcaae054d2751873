package analytics

import (
	"fmt"
	"time"

	"retention-analytics-service/internal/models"
)

// AlertConfig holds the anomaly detection thresholds for the AT_RISK share
// metric. Percentages are relative deviations from the rolling baseline.
type AlertConfig struct {
	WarningPct         float64 `json:"warningPct"`
	CriticalPct        float64 `json:"criticalPct"`
	BaselineWindowDays int     `json:"baselineWindowDays"`
	MinSampleSize      int     `json:"minSampleSize"`
}

// DefaultAlertConfig returns the standard 15/25 percent thresholds over a
// 7-day baseline with a 100-customer floor.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		WarningPct:         15,
		CriticalPct:        25,
		BaselineWindowDays: 7,
		MinSampleSize:      100,
	}
}

// Validate checks the config is internally consistent.
func (c AlertConfig) Validate() error {
	if c.BaselineWindowDays <= 0 {
		return fmt.Errorf("baseline window must be positive, got %d days", c.BaselineWindowDays)
	}
	if c.CriticalPct < c.WarningPct {
		return fmt.Errorf("critical threshold (%.1f%%) must not be below warning threshold (%.1f%%)", c.CriticalPct, c.WarningPct)
	}
	if c.MinSampleSize < 0 {
		return fmt.Errorf("minimum sample size must be non-negative, got %d", c.MinSampleSize)
	}
	return nil
}

// EvaluateAlert compares the reference date's AT_RISK share against the mean
// of the BaselineWindowDays days strictly preceding it and classifies the
// deviation.
//
// The baseline is undefined until a full window of history exists (warm-up),
// and the relative delta is undefined when the baseline is zero; both are
// expressed as nil rather than a zero or NaN sentinel. Only upward deviations
// raise severity: a falling AT_RISK share is good news, not an anomaly. The
// alert flag additionally requires the evaluated customer base to reach
// MinSampleSize, suppressing noisy verdicts from small populations.
func EvaluateAlert(history []models.StatusRollup, referenceDate time.Time, cfg AlertConfig) (models.AlertDecision, error) {
	if referenceDate.IsZero() {
		return models.AlertDecision{}, fmt.Errorf("reference date is required")
	}
	if err := cfg.Validate(); err != nil {
		return models.AlertDecision{}, err
	}

	var current *models.StatusRollup
	windowStart := referenceDate.AddDate(0, 0, -cfg.BaselineWindowDays)
	var baselineSum float64
	baselineDays := 0

	for i := range history {
		d := history[i].ReferenceDate
		if sameDay(d, referenceDate) {
			current = &history[i]
			continue
		}
		// Strictly before the reference date, within the window.
		if d.Before(referenceDate) && !d.Before(windowStart) {
			baselineSum += history[i].AtRiskPct
			baselineDays++
		}
	}
	if current == nil {
		return models.AlertDecision{}, fmt.Errorf("no status rollup for reference date %s", referenceDate.Format("2006-01-02"))
	}

	decision := models.AlertDecision{
		ReferenceDate: referenceDate,
		CurrentValue:  current.AtRiskPct,
		Severity:      models.AlertSeverityInfo,
		SampleSize:    current.SampleSize,
	}

	if baselineDays < cfg.BaselineWindowDays {
		// Warm-up: not enough history for a trustworthy baseline, so no
		// severity and no alert regardless of the current value.
		return decision, nil
	}

	baseline := baselineSum / float64(baselineDays)
	decision.BaselineValue = &baseline

	delta := current.AtRiskPct - baseline
	decision.DeltaPct = &delta

	if baseline != 0 {
		rel := (current.AtRiskPct/baseline - 1) * 100
		decision.DeltaRelativePct = &rel
		switch {
		case rel >= cfg.CriticalPct:
			decision.Severity = models.AlertSeverityCritical
		case rel >= cfg.WarningPct:
			decision.Severity = models.AlertSeverityWarning
		}
	}

	decision.AlertFlag = decision.SampleSize >= cfg.MinSampleSize &&
		decision.BaselineValue != nil &&
		decision.Severity != models.AlertSeverityInfo

	return decision, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
