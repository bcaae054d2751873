package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"retention-analytics-service/internal/models"
)

// MockCustomerReader is a mock implementation of CustomerReader
type MockCustomerReader struct {
	mock.Mock
}

func (m *MockCustomerReader) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Customer), args.Error(1)
}

func setupExportRouter(metrics MetricsReader, customers CustomerReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	handler := NewExportHandler(metrics, customers, nil)
	r.GET("/api/v1/exports/cohorts.xlsx", handler.ExportCohortsXLSX)
	r.GET("/api/v1/exports/cohorts.csv", handler.ExportCohortsCSV)
	r.GET("/api/v1/exports/churn.xlsx", handler.ExportChurnXLSX)
	r.GET("/api/v1/exports/churn.csv", handler.ExportChurnCSV)

	return r
}

func TestExportChurnCSV_EnrichesWithCustomerMaster(t *testing.T) {
	metrics := new(MockMetricsReader)
	customers := new(MockCustomerReader)
	router := setupExportRouter(metrics, customers)

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	customerID := uuid.New()
	avgCycle := 21.5

	metrics.On("ListAssessments", mock.Anything, day, models.ChurnRiskLevel("")).Return([]models.ChurnAssessment{
		{
			CustomerID:           customerID,
			ReferenceDate:        day,
			DaysSinceLastOrder:   45,
			TotalOrders:          6,
			AvgDaysBetweenOrders: &avgCycle,
			IsFrequencyDrop:      true,
			ChurnRiskScore:       50,
			ChurnRiskLevel:       models.ChurnRiskMedium,
		},
	}, nil)
	customers.On("ListCustomers", mock.Anything).Return([]models.Customer{
		{ID: customerID, Email: "shopper@example.com", Segment: "vip"},
	}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/exports/churn.csv?date=2024-03-15", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "churn_risk_2024-03-15.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "email")
	assert.Contains(t, lines[1], "shopper@example.com")
	assert.Contains(t, lines[1], "vip")
	assert.Contains(t, lines[1], "21.50")
	assert.Contains(t, lines[1], "MEDIUM")
}

func TestExportChurnXLSX_StreamsWorkbook(t *testing.T) {
	metrics := new(MockMetricsReader)
	customers := new(MockCustomerReader)
	router := setupExportRouter(metrics, customers)

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	metrics.On("ListAssessments", mock.Anything, day, models.ChurnRiskLevel("")).Return([]models.ChurnAssessment{
		{CustomerID: uuid.New(), ReferenceDate: day, ChurnRiskLevel: models.ChurnRiskLow},
	}, nil)
	customers.On("ListCustomers", mock.Anything).Return([]models.Customer{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/exports/churn.xlsx?date=2024-03-15", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, w.Body.Len())
}

func TestExportCohortsCSV_FlatRows(t *testing.T) {
	metrics := new(MockMetricsReader)
	customers := new(MockCustomerReader)
	router := setupExportRouter(metrics, customers)

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	metrics.On("ListCohortRecords", mock.Anything, -1).Return([]models.CohortRecord{
		{CohortMonth: jan, MonthsSinceAcquisition: 0, CohortSize: 40, ActiveCustomers: 40, RetentionRate: 100},
		{CohortMonth: jan, MonthsSinceAcquisition: 1, CohortSize: 40, ActiveCustomers: 22, RetentionRate: 55},
	}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/exports/cohorts.csv", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2024-01")
	assert.Contains(t, lines[2], "55.00")
}

func TestExportCohortsXLSX_PivotsMatrix(t *testing.T) {
	metrics := new(MockMetricsReader)
	customers := new(MockCustomerReader)
	router := setupExportRouter(metrics, customers)

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	metrics.On("ListCohortRecords", mock.Anything, -1).Return([]models.CohortRecord{
		{CohortMonth: jan, MonthsSinceAcquisition: 0, CohortSize: 40, ActiveCustomers: 40, RetentionRate: 100},
		{CohortMonth: jan, MonthsSinceAcquisition: 1, CohortSize: 40, ActiveCustomers: 22, RetentionRate: 55},
		{CohortMonth: feb, MonthsSinceAcquisition: 0, CohortSize: 31, ActiveCustomers: 31, RetentionRate: 100},
	}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/exports/cohorts.xlsx", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cohort_retention.xlsx")
	assert.NotZero(t, w.Body.Len())
	metrics.AssertExpectations(t)
}
