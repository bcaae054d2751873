package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityPeriod is one (customer, month) pair recording that the customer
// placed at least one qualifying order in that month. Months are normalized
// to the first day of the month in UTC.
type ActivityPeriod struct {
	CustomerID    uuid.UUID `json:"customerId"`
	ActivityMonth time.Time `json:"activityMonth"`
}

// CohortRecord is one cell of the cohort/maturity retention matrix. A
// customer's cohort is the month of their first order and never changes;
// CohortSize is therefore identical across every maturity row of a cohort.
type CohortRecord struct {
	ID                     uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CohortMonth            time.Time `json:"cohortMonth" gorm:"not null;uniqueIndex:idx_cohort_month_maturity"`
	MonthsSinceAcquisition int       `json:"monthsSinceAcquisition" gorm:"not null;uniqueIndex:idx_cohort_month_maturity"`
	CohortSize             int       `json:"cohortSize" gorm:"not null"`
	ActiveCustomers        int       `json:"activeCustomers" gorm:"not null"`
	RetentionRate          float64   `json:"retentionRate" gorm:"type:decimal(5,2);not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TruncateToMonth normalizes a timestamp to the first day of its month (UTC).
func TruncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the number of whole calendar months from a to b,
// ignoring day-of-month. Negative when b precedes a.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
