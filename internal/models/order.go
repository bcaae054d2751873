package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// Order represents a row in the order ledger. The analytics pipeline is a
// read-side consumer of this table: ingestion and status gatekeeping happen
// upstream, and only COMPLETED orders qualify for retention metrics.
type Order struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CustomerID  uuid.UUID   `json:"customerId" gorm:"type:uuid;not null;index:idx_orders_customer"`
	OrderNumber string      `json:"orderNumber" gorm:"type:varchar(50);index"`
	OrderDate   time.Time   `json:"orderDate" gorm:"not null;index:idx_orders_date"`
	OrderAmount float64     `json:"orderAmount" gorm:"type:decimal(12,2);not null"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(20);default:'COMPLETED';index:idx_orders_status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Customer carries the optional master-feed attributes used to enrich
// exports. None of these fields participate in classification or scoring.
type Customer struct {
	ID                 uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email              string         `json:"email" gorm:"type:varchar(255);index"`
	Country            string         `json:"country" gorm:"type:varchar(100)"`
	Segment            string         `json:"segment" gorm:"type:varchar(100)"`
	AcquisitionChannel string         `json:"acquisitionChannel" gorm:"type:varchar(100)"`
	SignupDate         *time.Time     `json:"signupDate"`
	Tags               pq.StringArray `json:"tags" gorm:"type:text[]"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
