package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomerFacts is the lifetime aggregate for one customer, rebuilt from the
// order ledger on each refresh. Counts and sums only grow between refreshes;
// AverageOrderValue is recomputed from the other two fields and never stored
// independently of them.
type CustomerFacts struct {
	CustomerID        uuid.UUID `json:"customerId" gorm:"type:uuid;primary_key"`
	FirstOrderDate    time.Time `json:"firstOrderDate" gorm:"not null;index:idx_facts_first_order"`
	LastOrderDate     time.Time `json:"lastOrderDate" gorm:"not null"`
	TotalOrders       int       `json:"totalOrders" gorm:"not null"`
	TotalRevenue      float64   `json:"totalRevenue" gorm:"type:decimal(14,2);not null"`
	AverageOrderValue float64   `json:"averageOrderValue" gorm:"type:decimal(12,2);not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the default pluralization
func (CustomerFacts) TableName() string {
	return "customer_facts"
}

// LifetimeDays returns the span between first and last order in whole days.
func (f CustomerFacts) LifetimeDays() int {
	return DaysBetween(f.FirstOrderDate, f.LastOrderDate)
}

// AvgDaysBetweenOrders estimates the customer's own order cycle. It is
// undefined (nil) for single-order customers: one order gives no interval to
// average, and defaulting to zero would fabricate a frequency baseline.
func (f CustomerFacts) AvgDaysBetweenOrders() *float64 {
	if f.TotalOrders <= 1 {
		return nil
	}
	avg := float64(f.LifetimeDays()) / float64(f.TotalOrders-1)
	return &avg
}

// DaysBetween returns the signed number of whole days from a to b at date
// granularity, ignoring the time-of-day component of either value.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
