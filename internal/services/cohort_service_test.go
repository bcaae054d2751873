package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"retention-analytics-service/internal/models"
)

func TestRebuild_BuildsAndPersistsMatrix(t *testing.T) {
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a, b := uuid.New(), uuid.New()

	orders := []models.Order{
		ledgerOrder(a, jan.AddDate(0, 0, 4), 100),
		ledgerOrder(a, jan.AddDate(0, 1, 10), 60),
		ledgerOrder(b, jan.AddDate(0, 0, 20), 40),
	}
	periods := []models.ActivityPeriod{
		{CustomerID: a, ActivityMonth: jan},
		{CustomerID: a, ActivityMonth: jan.AddDate(0, 1, 0)},
		{CustomerID: b, ActivityMonth: jan},
	}

	orderRepo := new(MockOrderRepository)
	metricsRepo := new(MockMetricsRepository)

	orderRepo.On("ListCompletedOrders", mock.Anything).Return(orders, nil)
	orderRepo.On("ListActivityPeriods", mock.Anything).Return(periods, nil)

	var persisted []models.CohortRecord
	metricsRepo.On("ReplaceCohortRecords", mock.Anything, mock.AnythingOfType("[]models.CohortRecord")).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).([]models.CohortRecord)
		}).Return(nil)

	svc := NewCohortService(orderRepo, metricsRepo, nil)
	result, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Cohorts)
	assert.Equal(t, 2, result.MatrixRows)
	assert.Equal(t, 2, result.Customers)

	require.Len(t, persisted, 2)
	assert.Equal(t, jan, persisted[0].CohortMonth)
	assert.Equal(t, 0, persisted[0].MonthsSinceAcquisition)
	assert.Equal(t, 2, persisted[0].CohortSize)
	assert.InDelta(t, 100.0, persisted[0].RetentionRate, 0.01)
	assert.Equal(t, 1, persisted[1].MonthsSinceAcquisition)
	assert.InDelta(t, 50.0, persisted[1].RetentionRate, 0.01)

	metricsRepo.AssertExpectations(t)
}

func TestRebuild_PropagatesLedgerErrors(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	orderRepo.On("ListCompletedOrders", mock.Anything).Return([]models.Order{}, assert.AnError)

	svc := NewCohortService(orderRepo, new(MockMetricsRepository), nil)
	_, err := svc.Rebuild(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order ledger")
}
