package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"retention-analytics-service/internal/models"
)

// CustomerReader provides the customer master rows for export enrichment.
// *repository.OrderRepository satisfies it.
type CustomerReader interface {
	ListCustomers(ctx context.Context) ([]models.Customer, error)
}

// ExportHandler serves spreadsheet exports of computed analytics
type ExportHandler struct {
	metrics   MetricsReader
	customers CustomerReader
	logger    *logrus.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(metrics MetricsReader, customers CustomerReader, logger *logrus.Logger) *ExportHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ExportHandler{metrics: metrics, customers: customers, logger: logger}
}

// customerIndex maps customer IDs to master rows for enrichment. A failed
// lookup degrades to unenriched rows rather than failing the export.
func (h *ExportHandler) customerIndex(ctx context.Context) map[uuid.UUID]models.Customer {
	customers, err := h.customers.ListCustomers(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to load customer master, exporting without enrichment")
		return nil
	}
	index := make(map[uuid.UUID]models.Customer, len(customers))
	for _, c := range customers {
		index[c.ID] = c
	}
	return index
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	return style
}

// cohortMatrix pivots the flat cohort rows into one row per cohort month with
// one retention-rate column per maturity offset.
func cohortMatrix(records []models.CohortRecord) (months []time.Time, maxMaturity int, cells map[time.Time]map[int]models.CohortRecord) {
	cells = make(map[time.Time]map[int]models.CohortRecord)
	seen := make(map[time.Time]bool)
	for _, rec := range records {
		if !seen[rec.CohortMonth] {
			seen[rec.CohortMonth] = true
			months = append(months, rec.CohortMonth)
		}
		if cells[rec.CohortMonth] == nil {
			cells[rec.CohortMonth] = make(map[int]models.CohortRecord)
		}
		cells[rec.CohortMonth][rec.MonthsSinceAcquisition] = rec
		if rec.MonthsSinceAcquisition > maxMaturity {
			maxMaturity = rec.MonthsSinceAcquisition
		}
	}
	return months, maxMaturity, cells
}

// ExportCohortsXLSX handles GET /api/v1/exports/cohorts.xlsx
// @Summary Export the cohort matrix as a spreadsheet
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /api/v1/exports/cohorts.xlsx [get]
func (h *ExportHandler) ExportCohortsXLSX(c *gin.Context) {
	records, err := h.metrics.ListCohortRecords(c.Request.Context(), -1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	months, maxMaturity, cells := cohortMatrix(records)

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Cohort Retention"
	f.SetSheetName("Sheet1", sheetName)

	style := headerStyle(f)
	f.SetCellValue(sheetName, "A1", "Cohort Month")
	f.SetCellValue(sheetName, "B1", "Cohort Size")
	f.SetCellStyle(sheetName, "A1", "B1", style)
	for m := 0; m <= maxMaturity; m++ {
		cell, _ := excelize.CoordinatesToCellName(m+3, 1)
		f.SetCellValue(sheetName, cell, fmt.Sprintf("M+%d", m))
		f.SetCellStyle(sheetName, cell, cell, style)
	}

	for i, month := range months {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), month.Format("2006-01"))
		if base, ok := cells[month][0]; ok {
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), base.CohortSize)
		}
		for m := 0; m <= maxMaturity; m++ {
			rec, ok := cells[month][m]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(m+3, row)
			f.SetCellValue(sheetName, cell, rec.RetentionRate)
		}
	}

	colName, _ := excelize.ColumnNumberToName(maxMaturity + 3)
	f.SetColWidth(sheetName, "A", colName, 14)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=cohort_retention.xlsx")
	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to stream cohort export")
	}
}

// ExportCohortsCSV handles GET /api/v1/exports/cohorts.csv
// @Summary Export cohort records as CSV
// @Tags Exports
// @Produce text/csv
// @Success 200 {file} binary
// @Router /api/v1/exports/cohorts.csv [get]
func (h *ExportHandler) ExportCohortsCSV(c *gin.Context) {
	records, err := h.metrics.ListCohortRecords(c.Request.Context(), -1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=cohort_retention.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"cohort_month", "maturity", "cohort_size", "active_customers", "retention_rate"})
	for _, rec := range records {
		writer.Write([]string{
			rec.CohortMonth.Format("2006-01"),
			strconv.Itoa(rec.MonthsSinceAcquisition),
			strconv.Itoa(rec.CohortSize),
			strconv.Itoa(rec.ActiveCustomers),
			strconv.FormatFloat(rec.RetentionRate, 'f', 2, 64),
		})
	}
}

// ExportChurnXLSX handles GET /api/v1/exports/churn.xlsx
// @Summary Export churn assessments as a spreadsheet
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to latest run"
// @Success 200 {file} binary
// @Router /api/v1/exports/churn.xlsx [get]
func (h *ExportHandler) ExportChurnXLSX(c *gin.Context) {
	date, assessments, ok := h.loadAssessments(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Churn Risk"
	f.SetSheetName("Sheet1", sheetName)

	index := h.customerIndex(c.Request.Context())

	headers := []string{"Customer ID", "Email", "Segment", "Reference Date", "Days Since Last Order", "Total Orders", "Avg Order Cycle (days)", "Frequency Drop", "Status Inconsistent", "Risk Score", "Risk Level"}
	style := headerStyle(f)
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, style)
	}

	for i, a := range assessments {
		row := i + 2
		cust := index[a.CustomerID]
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), a.CustomerID.String())
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), cust.Email)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), cust.Segment)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), a.ReferenceDate.Format("2006-01-02"))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), a.DaysSinceLastOrder)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), a.TotalOrders)
		if a.AvgDaysBetweenOrders != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), *a.AvgDaysBetweenOrders)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), a.IsFrequencyDrop)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), a.IsStatusInconsistent)
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), a.ChurnRiskScore)
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), string(a.ChurnRiskLevel))
	}

	colName, _ := excelize.ColumnNumberToName(len(headers))
	f.SetColWidth(sheetName, "A", colName, 18)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=churn_risk_%s.xlsx", date.Format("2006-01-02")))
	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to stream churn export")
	}
}

// ExportChurnCSV handles GET /api/v1/exports/churn.csv
// @Summary Export churn assessments as CSV
// @Tags Exports
// @Produce text/csv
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to latest run"
// @Success 200 {file} binary
// @Router /api/v1/exports/churn.csv [get]
func (h *ExportHandler) ExportChurnCSV(c *gin.Context) {
	date, assessments, ok := h.loadAssessments(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=churn_risk_%s.csv", date.Format("2006-01-02")))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	index := h.customerIndex(c.Request.Context())

	writer.Write([]string{"customer_id", "email", "segment", "reference_date", "days_since_last_order", "total_orders", "avg_days_between_orders", "is_frequency_drop", "is_status_inconsistent", "churn_risk_score", "churn_risk_level"})
	for _, a := range assessments {
		avgCycle := ""
		if a.AvgDaysBetweenOrders != nil {
			avgCycle = strconv.FormatFloat(*a.AvgDaysBetweenOrders, 'f', 2, 64)
		}
		cust := index[a.CustomerID]
		writer.Write([]string{
			a.CustomerID.String(),
			cust.Email,
			cust.Segment,
			a.ReferenceDate.Format("2006-01-02"),
			strconv.Itoa(a.DaysSinceLastOrder),
			strconv.Itoa(a.TotalOrders),
			avgCycle,
			strconv.FormatBool(a.IsFrequencyDrop),
			strconv.FormatBool(a.IsStatusInconsistent),
			strconv.Itoa(a.ChurnRiskScore),
			string(a.ChurnRiskLevel),
		})
	}
}

func (h *ExportHandler) loadAssessments(c *gin.Context) (time.Time, []models.ChurnAssessment, bool) {
	ctx := c.Request.Context()

	var date time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return time.Time{}, nil, false
		}
		date = parsed.UTC()
	} else {
		latest, err := h.metrics.LatestSnapshotDate(ctx)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pipeline runs recorded yet"})
			return time.Time{}, nil, false
		}
		date = latest
	}

	assessments, err := h.metrics.ListAssessments(ctx, date, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return time.Time{}, nil, false
	}
	return date, assessments, true
}
