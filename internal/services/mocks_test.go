package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"retention-analytics-service/internal/events"
	"retention-analytics-service/internal/models"
	"retention-analytics-service/internal/repository"
)

// MockOrderRepository is a mock implementation of OrderRepositoryInterface
type MockOrderRepository struct {
	mock.Mock
}

var _ repository.OrderRepositoryInterface = (*MockOrderRepository)(nil)

func (m *MockOrderRepository) ListCompletedOrders(ctx context.Context) ([]models.Order, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) ListActivityPeriods(ctx context.Context) ([]models.ActivityPeriod, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.ActivityPeriod), args.Error(1)
}

func (m *MockOrderRepository) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Customer), args.Error(1)
}

// MockMetricsRepository is a mock implementation of MetricsRepositoryInterface
type MockMetricsRepository struct {
	mock.Mock
}

var _ repository.MetricsRepositoryInterface = (*MockMetricsRepository)(nil)

func (m *MockMetricsRepository) ReplaceFacts(ctx context.Context, facts []models.CustomerFacts) error {
	args := m.Called(ctx, facts)
	return args.Error(0)
}

func (m *MockMetricsRepository) ReplaceSnapshots(ctx context.Context, referenceDate time.Time, snapshots []models.RetentionSnapshot) error {
	args := m.Called(ctx, referenceDate, snapshots)
	return args.Error(0)
}

func (m *MockMetricsRepository) ReplaceAssessments(ctx context.Context, referenceDate time.Time, assessments []models.ChurnAssessment) error {
	args := m.Called(ctx, referenceDate, assessments)
	return args.Error(0)
}

func (m *MockMetricsRepository) UpsertRollup(ctx context.Context, rollup models.StatusRollup) error {
	args := m.Called(ctx, rollup)
	return args.Error(0)
}

func (m *MockMetricsRepository) ListRollups(ctx context.Context, upTo time.Time, windowDays int) ([]models.StatusRollup, error) {
	args := m.Called(ctx, upTo, windowDays)
	return args.Get(0).([]models.StatusRollup), args.Error(1)
}

func (m *MockMetricsRepository) ReplaceCohortRecords(ctx context.Context, records []models.CohortRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockMetricsRepository) CreateAlertDecision(ctx context.Context, decision *models.AlertDecision) error {
	args := m.Called(ctx, decision)
	return args.Error(0)
}

func (m *MockMetricsRepository) CacheSummary(ctx context.Context, rollup models.StatusRollup) {
	m.Called(ctx, rollup)
}

// MockAlertPublisher is a mock implementation of AlertPublisherInterface
type MockAlertPublisher struct {
	mock.Mock
}

var _ events.AlertPublisherInterface = (*MockAlertPublisher)(nil)

func (m *MockAlertPublisher) PublishAlertTriggered(ctx context.Context, decision *models.AlertDecision) error {
	args := m.Called(ctx, decision)
	return args.Error(0)
}

func (m *MockAlertPublisher) Close() {
	m.Called()
}
