package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AlertSeverity classifies how far today's AT_RISK share sits above its
// rolling baseline
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "INFO"
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// AlertDecision is the daily anomaly verdict for the AT_RISK share metric.
// One immutable decision per reference date, kept as the audit trail of what
// was decided and under which thresholds.
//
// BaselineValue and the delta fields are nil during warm-up (fewer than
// baseline_window_days of history) and DeltaRelativePct is additionally nil
// when the baseline is zero.
type AlertDecision struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ReferenceDate time.Time `json:"referenceDate" gorm:"not null;uniqueIndex:idx_alert_decisions_date"`

	CurrentValue     float64  `json:"currentValue" gorm:"not null"`
	BaselineValue    *float64 `json:"baselineValue,omitempty"`
	DeltaPct         *float64 `json:"deltaPct,omitempty"`
	DeltaRelativePct *float64 `json:"deltaRelativePct,omitempty"`

	Severity   AlertSeverity `json:"severity" gorm:"type:varchar(10);not null"`
	AlertFlag  bool          `json:"alertFlag" gorm:"not null;index:idx_alert_decisions_flag"`
	SampleSize int           `json:"sampleSize" gorm:"not null"`

	// Config holds the thresholds the decision was evaluated with, kept for
	// audit since thresholds are runtime-injected and may change over time.
	Config datatypes.JSON `json:"config,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
