package models

import (
	"time"

	"github.com/google/uuid"
)

// RetentionStatus classifies a customer's recency against the configured
// activity thresholds. The four values are mutually exclusive and exhaustive
// for any signed days-since-last-order value.
type RetentionStatus string

const (
	RetentionStatusActive   RetentionStatus = "ACTIVE"
	RetentionStatusAtRisk   RetentionStatus = "AT_RISK"
	RetentionStatusInactive RetentionStatus = "INACTIVE"
	// RetentionStatusDataQuality flags a last order dated after the reference
	// date (clock skew or ingestion lag). Surfaced for investigation rather
	// than dropped.
	RetentionStatusDataQuality RetentionStatus = "DATA_QUALITY_ISSUE"
)

// RetentionSnapshot is the classification of one customer at one reference
// date. Rows are immutable once written for a given date; re-running the
// pipeline for that date replaces the whole day in one transaction.
type RetentionSnapshot struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CustomerID         uuid.UUID       `json:"customerId" gorm:"type:uuid;not null;uniqueIndex:idx_snapshots_customer_date"`
	ReferenceDate      time.Time       `json:"referenceDate" gorm:"not null;uniqueIndex:idx_snapshots_customer_date;index:idx_snapshots_date"`
	DaysSinceLastOrder int             `json:"daysSinceLastOrder" gorm:"not null"`
	RetentionStatus    RetentionStatus `json:"retentionStatus" gorm:"type:varchar(30);not null;index:idx_snapshots_status"`

	CreatedAt time.Time `json:"createdAt"`
}

// StatusRollup is the per-day aggregate of a snapshot run: how many customers
// landed in each status and what share of the base is AT_RISK. The series of
// rollups is append-only and feeds the alert baseline window.
type StatusRollup struct {
	ReferenceDate time.Time `json:"referenceDate" gorm:"primary_key"`
	ActiveCount   int       `json:"activeCount" gorm:"not null"`
	AtRiskCount   int       `json:"atRiskCount" gorm:"not null"`
	InactiveCount int       `json:"inactiveCount" gorm:"not null"`
	DataQuality   int       `json:"dataQualityCount" gorm:"column:data_quality_count;not null"`
	SampleSize    int       `json:"sampleSize" gorm:"not null"`
	AtRiskPct     float64   `json:"atRiskPct" gorm:"not null"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName overrides the default pluralization
func (StatusRollup) TableName() string {
	return "status_rollups"
}
