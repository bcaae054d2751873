package analytics

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"retention-analytics-service/internal/models"
)

// Example scenario 1: orders on days 0/10/20 of January, evaluated at day 45.
// avg cycle is 10 days, recency 25 days: frequency drop fires (25 > 15), the
// customer is still ACTIVE (25 <= 30) with only 3 orders so the status
// inconsistency fires too. Score 50+20=70, HIGH.
func TestScoreChurnRisk_FrequencyDropAndInconsistency(t *testing.T) {
	customerID := uuid.New()
	orders := []models.Order{
		makeOrder(customerID, day(2026, 1, 1), 100),
		makeOrder(customerID, day(2026, 1, 11), 100),
		makeOrder(customerID, day(2026, 1, 21), 100),
	}
	facts, err := BuildFacts(orders)
	require.NoError(t, err)

	reference := day(2026, 2, 15) // 25 days after the last order
	snapshots, err := ClassifyStatuses(facts, reference, DefaultStatusThresholds())
	require.NoError(t, err)
	require.Equal(t, models.RetentionStatusActive, snapshots[0].RetentionStatus)

	assessments, err := ScoreChurnRisk(facts, snapshots, DefaultRiskConfig())
	require.NoError(t, err)
	require.Len(t, assessments, 1)

	a := assessments[0]
	assert.True(t, a.IsFrequencyDrop)
	assert.False(t, a.IsValueDrop)
	assert.False(t, a.ValueDropEvaluated)
	assert.True(t, a.IsStatusInconsistent)
	require.NotNil(t, a.AvgDaysBetweenOrders)
	assert.InDelta(t, 10.0, *a.AvgDaysBetweenOrders, 0.001)
	assert.Equal(t, 70, a.ChurnRiskScore)
	assert.Equal(t, models.ChurnRiskHigh, a.ChurnRiskLevel)
}

// Example scenario 2: a single-order customer has no order cycle, so the
// frequency signal can never fire; only the order-count clause of the status
// inconsistency signal does. Score 20, LOW.
func TestScoreChurnRisk_SingleOrderCustomer(t *testing.T) {
	customerID := uuid.New()
	facts, err := BuildFacts([]models.Order{makeOrder(customerID, day(2026, 5, 20), 50)})
	require.NoError(t, err)

	snapshots, err := ClassifyStatuses(facts, day(2026, 6, 1), DefaultStatusThresholds())
	require.NoError(t, err)
	require.Equal(t, models.RetentionStatusActive, snapshots[0].RetentionStatus)

	assessments, err := ScoreChurnRisk(facts, snapshots, DefaultRiskConfig())
	require.NoError(t, err)

	a := assessments[0]
	assert.False(t, a.IsFrequencyDrop)
	assert.True(t, a.IsStatusInconsistent)
	assert.Nil(t, a.AvgDaysBetweenOrders)
	assert.Equal(t, 20, a.ChurnRiskScore)
	assert.Equal(t, models.ChurnRiskLow, a.ChurnRiskLevel)
}

// A seasoned customer ordering on their usual rhythm fires nothing.
func TestScoreChurnRisk_HealthyRegular(t *testing.T) {
	customerID := uuid.New()
	var orders []models.Order
	for i := 0; i < 10; i++ {
		orders = append(orders, makeOrder(customerID, day(2026, 1, 1).AddDate(0, 0, i*10), 40))
	}
	facts, err := BuildFacts(orders)
	require.NoError(t, err)

	// 5 days after the last order: well inside a 10-day cycle.
	reference := facts[customerID].LastOrderDate.AddDate(0, 0, 5)
	snapshots, err := ClassifyStatuses(facts, reference, DefaultStatusThresholds())
	require.NoError(t, err)

	assessments, err := ScoreChurnRisk(facts, snapshots, DefaultRiskConfig())
	require.NoError(t, err)

	a := assessments[0]
	assert.False(t, a.IsFrequencyDrop)
	assert.False(t, a.IsStatusInconsistent)
	assert.Equal(t, 0, a.ChurnRiskScore)
	assert.Equal(t, models.ChurnRiskLow, a.ChurnRiskLevel)
}

// An established ACTIVE customer drifting past 0.7x of their cycle fires the
// inconsistency signal even though their order count clears the ceiling.
func TestScoreChurnRisk_ActiveRhythmDrift(t *testing.T) {
	customerID := uuid.New()
	var orders []models.Order
	for i := 0; i < 6; i++ {
		orders = append(orders, makeOrder(customerID, day(2026, 1, 1).AddDate(0, 0, i*20), 40))
	}
	facts, err := BuildFacts(orders)
	require.NoError(t, err)

	// 15 days of recency: > 0.7*20=14 (drift) but <= 1.5*20=30 (no drop).
	reference := facts[customerID].LastOrderDate.AddDate(0, 0, 15)
	snapshots, err := ClassifyStatuses(facts, reference, DefaultStatusThresholds())
	require.NoError(t, err)
	require.Equal(t, models.RetentionStatusActive, snapshots[0].RetentionStatus)

	assessments, err := ScoreChurnRisk(facts, snapshots, DefaultRiskConfig())
	require.NoError(t, err)

	a := assessments[0]
	assert.False(t, a.IsFrequencyDrop)
	assert.True(t, a.IsStatusInconsistent)
	assert.Equal(t, 20, a.ChurnRiskScore)
}

func TestScoreChurnRisk_ScoreIsSumOfWeights(t *testing.T) {
	cfg := DefaultRiskConfig()
	for _, score := range []int{0, 20, 50, 70} {
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
	// Level boundaries.
	assert.Equal(t, models.ChurnRiskLow, riskLevel(20, cfg))
	assert.Equal(t, models.ChurnRiskMedium, riskLevel(21, cfg))
	assert.Equal(t, models.ChurnRiskMedium, riskLevel(50, cfg))
	assert.Equal(t, models.ChurnRiskHigh, riskLevel(51, cfg))
}

func TestScoreChurnRisk_MissingFactRow(t *testing.T) {
	snapshots := []models.RetentionSnapshot{{CustomerID: uuid.New(), RetentionStatus: models.RetentionStatusActive}}
	_, err := ScoreChurnRisk(map[uuid.UUID]models.CustomerFacts{}, snapshots, DefaultRiskConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fact row")
}

func TestRiskConfig_Validate(t *testing.T) {
	cfg := DefaultRiskConfig()
	assert.NoError(t, cfg.Validate())

	over := cfg
	over.FrequencyDropWeight = 90
	assert.Error(t, over.Validate())

	inverted := cfg
	inverted.HighScoreFloor = 10
	assert.Error(t, inverted.Validate())
}
