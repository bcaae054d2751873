package analytics

import (
	"fmt"

	"github.com/google/uuid"
	"retention-analytics-service/internal/models"
)

// RiskConfig holds the signal weights, rhythm multipliers and level cutoffs
// for churn risk scoring. All of it is injected configuration: tuning a
// weight must never require touching signal detection code.
type RiskConfig struct {
	FrequencyDropWeight       int `json:"frequencyDropWeight"`
	ValueDropWeight           int `json:"valueDropWeight"`
	StatusInconsistencyWeight int `json:"statusInconsistencyWeight"`

	// FrequencyDropMultiplier: a customer is slowing down when their recency
	// exceeds this multiple of their own average order cycle.
	FrequencyDropMultiplier float64 `json:"frequencyDropMultiplier"`
	// StatusDriftMultiplier: the tighter multiple used to catch ACTIVE
	// customers whose rhythm is already breaking down.
	StatusDriftMultiplier float64 `json:"statusDriftMultiplier"`
	// NewCustomerOrderCeiling: customers with at most this many orders are
	// treated as unproven even when their status is ACTIVE.
	NewCustomerOrderCeiling int `json:"newCustomerOrderCeiling"`
	// ValueDropRatio is reserved for the value-drop signal, which needs a
	// per-order last-amount fact the ledger does not carry yet.
	ValueDropRatio float64 `json:"valueDropRatio"`

	MediumScoreFloor int `json:"mediumScoreFloor"`
	HighScoreFloor   int `json:"highScoreFloor"`
}

// DefaultRiskConfig returns the standard weights (50/30/20) and cutoffs.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		FrequencyDropWeight:       50,
		ValueDropWeight:           30,
		StatusInconsistencyWeight: 20,
		FrequencyDropMultiplier:   1.5,
		StatusDriftMultiplier:     0.7,
		NewCustomerOrderCeiling:   3,
		ValueDropRatio:            0.6,
		MediumScoreFloor:          21,
		HighScoreFloor:            51,
	}
}

// Validate checks the config produces scores in [0, 100] with ordered levels.
func (c RiskConfig) Validate() error {
	total := c.FrequencyDropWeight + c.ValueDropWeight + c.StatusInconsistencyWeight
	if c.FrequencyDropWeight < 0 || c.ValueDropWeight < 0 || c.StatusInconsistencyWeight < 0 {
		return fmt.Errorf("signal weights must be non-negative")
	}
	if total > 100 {
		return fmt.Errorf("signal weights sum to %d, must not exceed 100", total)
	}
	if c.FrequencyDropMultiplier <= 0 || c.StatusDriftMultiplier <= 0 {
		return fmt.Errorf("rhythm multipliers must be positive")
	}
	if c.MediumScoreFloor <= 0 || c.HighScoreFloor <= c.MediumScoreFloor {
		return fmt.Errorf("level floors must satisfy 0 < medium (%d) < high (%d)", c.MediumScoreFloor, c.HighScoreFloor)
	}
	return nil
}

// ScoreChurnRisk evaluates the behavioral signals for every snapshotted
// customer against that customer's own historical pattern. Population-wide
// averages are never consulted: a weekly shopper gone quiet for three weeks
// is at risk even though a quarterly shopper with the same recency is not.
//
// Customers with a single order have no order cycle, so the rhythm-based
// signals stay false for them; only the order-count clause of the status
// inconsistency signal can fire.
func ScoreChurnRisk(facts map[uuid.UUID]models.CustomerFacts, snapshots []models.RetentionSnapshot, cfg RiskConfig) ([]models.ChurnAssessment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	assessments := make([]models.ChurnAssessment, 0, len(snapshots))
	for _, snap := range snapshots {
		f, ok := facts[snap.CustomerID]
		if !ok {
			return nil, fmt.Errorf("snapshot references customer %s with no fact row", snap.CustomerID)
		}

		avgCycle := f.AvgDaysBetweenOrders()
		days := float64(snap.DaysSinceLastOrder)

		frequencyDrop := avgCycle != nil && days > cfg.FrequencyDropMultiplier**avgCycle

		statusInconsistent := snap.RetentionStatus == models.RetentionStatusActive &&
			(f.TotalOrders <= cfg.NewCustomerOrderCeiling ||
				(avgCycle != nil && days > cfg.StatusDriftMultiplier**avgCycle))

		score := 0
		if frequencyDrop {
			score += cfg.FrequencyDropWeight
		}
		if statusInconsistent {
			score += cfg.StatusInconsistencyWeight
		}

		assessments = append(assessments, models.ChurnAssessment{
			CustomerID:           snap.CustomerID,
			ReferenceDate:        snap.ReferenceDate,
			DaysSinceLastOrder:   snap.DaysSinceLastOrder,
			TotalOrders:          f.TotalOrders,
			IsFrequencyDrop:      frequencyDrop,
			IsValueDrop:          false,
			ValueDropEvaluated:   false,
			IsStatusInconsistent: statusInconsistent,
			AvgDaysBetweenOrders: avgCycle,
			ChurnRiskScore:       score,
			ChurnRiskLevel:       riskLevel(score, cfg),
		})
	}

	return assessments, nil
}

func riskLevel(score int, cfg RiskConfig) models.ChurnRiskLevel {
	switch {
	case score >= cfg.HighScoreFloor:
		return models.ChurnRiskHigh
	case score >= cfg.MediumScoreFloor:
		return models.ChurnRiskMedium
	default:
		return models.ChurnRiskLow
	}
}
