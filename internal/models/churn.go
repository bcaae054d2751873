package models

import (
	"time"

	"github.com/google/uuid"
)

// ChurnRiskLevel buckets a risk score for campaign targeting
type ChurnRiskLevel string

const (
	ChurnRiskLow    ChurnRiskLevel = "LOW"
	ChurnRiskMedium ChurnRiskLevel = "MEDIUM"
	ChurnRiskHigh   ChurnRiskLevel = "HIGH"
)

// ChurnAssessment is the per-customer risk evaluation derived from that
// customer's own ordering rhythm. The score is a plain sum of the weights of
// the signals that fired, so every score is auditable back to its inputs.
type ChurnAssessment struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CustomerID    uuid.UUID `json:"customerId" gorm:"type:uuid;not null;uniqueIndex:idx_assessments_customer_date"`
	ReferenceDate time.Time `json:"referenceDate" gorm:"not null;uniqueIndex:idx_assessments_customer_date;index:idx_assessments_date"`

	// The signal inputs are stored alongside the verdict so a score can be
	// audited without re-reading the ledger as of the reference date.
	DaysSinceLastOrder int `json:"daysSinceLastOrder" gorm:"not null"`
	TotalOrders        int `json:"totalOrders" gorm:"not null"`

	IsFrequencyDrop bool `json:"isFrequencyDrop" gorm:"not null"`
	IsValueDrop     bool `json:"isValueDrop" gorm:"not null"`
	// ValueDropEvaluated distinguishes "evaluated false" from "not evaluated":
	// the value-drop signal needs a per-order last-amount fact the ledger does
	// not carry yet, so consumers must not read IsValueDrop=false as a verdict.
	ValueDropEvaluated   bool `json:"valueDropEvaluated" gorm:"not null"`
	IsStatusInconsistent bool `json:"isStatusInconsistent" gorm:"not null"`

	// AvgDaysBetweenOrders is nil for single-order customers (no interval to
	// average); those customers never fire rhythm-based signals.
	AvgDaysBetweenOrders *float64 `json:"avgDaysBetweenOrders,omitempty" gorm:"type:decimal(10,2)"`

	ChurnRiskScore int            `json:"churnRiskScore" gorm:"not null"`
	ChurnRiskLevel ChurnRiskLevel `json:"churnRiskLevel" gorm:"type:varchar(10);not null;index:idx_assessments_level"`

	CreatedAt time.Time `json:"createdAt"`
}
