package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"retention-analytics-service/internal/models"
)

// steadyHistory builds a rollup series with a constant AT_RISK share ending
// the day before reference, plus the reference day itself at currentPct.
func steadyHistory(reference time.Time, days int, baselinePct, currentPct float64, sampleSize int) []models.StatusRollup {
	var history []models.StatusRollup
	for i := days; i >= 1; i-- {
		history = append(history, models.StatusRollup{
			ReferenceDate: reference.AddDate(0, 0, -i),
			AtRiskPct:     baselinePct,
			SampleSize:    sampleSize,
		})
	}
	history = append(history, models.StatusRollup{
		ReferenceDate: reference,
		AtRiskPct:     currentPct,
		SampleSize:    sampleSize,
	})
	return history
}

// Example scenario 4: 20% steady for 8 days then 26% on day 9 with 500
// customers. Relative delta is +30% over the 20.0 baseline: CRITICAL, alert.
func TestEvaluateAlert_CriticalSpike(t *testing.T) {
	reference := day(2026, 6, 9)
	history := steadyHistory(reference, 8, 20.0, 26.0, 500)

	decision, err := EvaluateAlert(history, reference, DefaultAlertConfig())
	require.NoError(t, err)

	require.NotNil(t, decision.BaselineValue)
	assert.InDelta(t, 20.0, *decision.BaselineValue, 0.001)
	assert.InDelta(t, 26.0, decision.CurrentValue, 0.001)
	require.NotNil(t, decision.DeltaPct)
	assert.InDelta(t, 6.0, *decision.DeltaPct, 0.001)
	require.NotNil(t, decision.DeltaRelativePct)
	assert.InDelta(t, 30.0, *decision.DeltaRelativePct, 0.001)
	assert.Equal(t, models.AlertSeverityCritical, decision.Severity)
	assert.True(t, decision.AlertFlag)
	assert.Equal(t, 500, decision.SampleSize)
}

// Example scenario 5: the identical deviation with only 50 customers keeps
// its CRITICAL severity but is suppressed by the minimum sample size.
func TestEvaluateAlert_SmallSampleSuppressed(t *testing.T) {
	reference := day(2026, 6, 9)
	history := steadyHistory(reference, 8, 20.0, 26.0, 50)

	decision, err := EvaluateAlert(history, reference, DefaultAlertConfig())
	require.NoError(t, err)
	assert.Equal(t, models.AlertSeverityCritical, decision.Severity)
	assert.False(t, decision.AlertFlag)
}

func TestEvaluateAlert_WarmUpNeverAlerts(t *testing.T) {
	cfg := DefaultAlertConfig()
	reference := day(2026, 6, 9)

	// Fewer than baseline_window_days of preceding history: the baseline is
	// undefined and no spike can alert, however large.
	for days := 0; days < cfg.BaselineWindowDays; days++ {
		history := steadyHistory(reference, days, 5.0, 95.0, 10000)
		decision, err := EvaluateAlert(history, reference, cfg)
		require.NoError(t, err)

		assert.Nil(t, decision.BaselineValue, "warm-up with %d days", days)
		assert.Nil(t, decision.DeltaPct)
		assert.Nil(t, decision.DeltaRelativePct)
		assert.Equal(t, models.AlertSeverityInfo, decision.Severity)
		assert.False(t, decision.AlertFlag)
	}
}

func TestEvaluateAlert_WarningBand(t *testing.T) {
	reference := day(2026, 6, 9)
	// 20 -> 23.5 is +17.5% relative: above warning (15), below critical (25).
	history := steadyHistory(reference, 7, 20.0, 23.5, 500)

	decision, err := EvaluateAlert(history, reference, DefaultAlertConfig())
	require.NoError(t, err)
	assert.Equal(t, models.AlertSeverityWarning, decision.Severity)
	assert.True(t, decision.AlertFlag)
}

// A falling AT_RISK share is good news: severity stays INFO however large
// the downward move.
func TestEvaluateAlert_DownwardMoveIsNotAnAnomaly(t *testing.T) {
	reference := day(2026, 6, 9)
	history := steadyHistory(reference, 7, 40.0, 5.0, 500)

	decision, err := EvaluateAlert(history, reference, DefaultAlertConfig())
	require.NoError(t, err)
	require.NotNil(t, decision.DeltaRelativePct)
	assert.Less(t, *decision.DeltaRelativePct, 0.0)
	assert.Equal(t, models.AlertSeverityInfo, decision.Severity)
	assert.False(t, decision.AlertFlag)
}

// A zero baseline makes the relative delta undefined; division must resolve
// to an explicit nil rather than Inf or a crash.
func TestEvaluateAlert_ZeroBaseline(t *testing.T) {
	reference := day(2026, 6, 9)
	history := steadyHistory(reference, 7, 0.0, 12.0, 500)

	decision, err := EvaluateAlert(history, reference, DefaultAlertConfig())
	require.NoError(t, err)
	require.NotNil(t, decision.BaselineValue)
	assert.Zero(t, *decision.BaselineValue)
	require.NotNil(t, decision.DeltaPct)
	assert.Nil(t, decision.DeltaRelativePct)
	assert.Equal(t, models.AlertSeverityInfo, decision.Severity)
	assert.False(t, decision.AlertFlag)
}

func TestEvaluateAlert_OnlyWindowDaysCount(t *testing.T) {
	reference := day(2026, 6, 30)
	// A month of history at 10%, but the last 7 days sit at 20%: the rolling
	// baseline must only see the window.
	var history []models.StatusRollup
	for i := 30; i >= 8; i-- {
		history = append(history, models.StatusRollup{ReferenceDate: reference.AddDate(0, 0, -i), AtRiskPct: 10, SampleSize: 500})
	}
	for i := 7; i >= 1; i-- {
		history = append(history, models.StatusRollup{ReferenceDate: reference.AddDate(0, 0, -i), AtRiskPct: 20, SampleSize: 500})
	}
	history = append(history, models.StatusRollup{ReferenceDate: reference, AtRiskPct: 20, SampleSize: 500})

	decision, err := EvaluateAlert(history, reference, DefaultAlertConfig())
	require.NoError(t, err)
	require.NotNil(t, decision.BaselineValue)
	assert.InDelta(t, 20.0, *decision.BaselineValue, 0.001)
	assert.Equal(t, models.AlertSeverityInfo, decision.Severity)
}

func TestEvaluateAlert_RequiresReferenceDate(t *testing.T) {
	_, err := EvaluateAlert(nil, time.Time{}, DefaultAlertConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference date is required")
}

func TestEvaluateAlert_MissingCurrentRollup(t *testing.T) {
	reference := day(2026, 6, 9)
	history := steadyHistory(reference.AddDate(0, 0, -1), 7, 20, 20, 500)

	_, err := EvaluateAlert(history, reference, DefaultAlertConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no status rollup")
}

func TestAlertConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultAlertConfig().Validate())

	bad := DefaultAlertConfig()
	bad.BaselineWindowDays = 0
	assert.Error(t, bad.Validate())

	inverted := DefaultAlertConfig()
	inverted.CriticalPct = 5
	assert.Error(t, inverted.Validate())
}
