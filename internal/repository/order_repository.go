package repository

import (
	"context"

	"gorm.io/gorm"
	"retention-analytics-service/internal/models"
)

// OrderRepositoryInterface abstracts read access to the order ledger and the
// customer master feed for the pipeline service
type OrderRepositoryInterface interface {
	ListCompletedOrders(ctx context.Context) ([]models.Order, error)
	ListActivityPeriods(ctx context.Context) ([]models.ActivityPeriod, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
}

// OrderRepository reads the order ledger. The pipeline never writes to it:
// ingestion and order-status gatekeeping belong to the upstream order system.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ListCompletedOrders returns every completed order in the ledger. Pending
// and cancelled orders never qualify for retention metrics. Orders dated in
// the future are deliberately included: the classifier surfaces them as
// DATA_QUALITY_ISSUE instead of this layer hiding them.
func (r *OrderRepository) ListCompletedOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", models.OrderStatusCompleted).
		Order("order_date ASC, id ASC").
		Find(&orders).Error
	return orders, err
}

// ListActivityPeriods returns the distinct (customer, month) pairs in which
// a customer placed at least one completed order. Months come back truncated
// to their first day so cohort maturity arithmetic stays purely calendrical.
func (r *OrderRepository) ListActivityPeriods(ctx context.Context) ([]models.ActivityPeriod, error) {
	var periods []models.ActivityPeriod
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT customer_id, date_trunc('month', order_date) AS activity_month
		     FROM orders
		     WHERE status = ?
		     ORDER BY customer_id, activity_month`, models.OrderStatusCompleted).
		Scan(&periods).Error
	return periods, err
}

// ListCustomers returns the customer master rows used to enrich exports.
func (r *OrderRepository) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.WithContext(ctx).Order("id ASC").Find(&customers).Error
	return customers, err
}
