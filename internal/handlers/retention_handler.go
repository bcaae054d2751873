package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"retention-analytics-service/internal/models"
	"retention-analytics-service/internal/repository"
	"retention-analytics-service/internal/services"
)

// MetricsReader is the read surface the HTTP layer needs from the metrics
// store. *repository.MetricsRepository satisfies it.
type MetricsReader interface {
	ListSnapshots(ctx context.Context, referenceDate time.Time, status models.RetentionStatus) ([]models.RetentionSnapshot, error)
	GetCachedSummary(ctx context.Context) (*models.StatusRollup, error)
	LatestRollup(ctx context.Context) (*models.StatusRollup, error)
	ListAssessments(ctx context.Context, referenceDate time.Time, level models.ChurnRiskLevel) ([]models.ChurnAssessment, error)
	ListCohortRecords(ctx context.Context, maxMaturity int) ([]models.CohortRecord, error)
	ListAlertDecisions(ctx context.Context, limit int) ([]models.AlertDecision, error)
	LatestAlertDecision(ctx context.Context) (*models.AlertDecision, error)
	LatestSnapshotDate(ctx context.Context) (time.Time, error)
}

var (
	_ MetricsReader  = (*repository.MetricsRepository)(nil)
	_ CustomerReader = (*repository.OrderRepository)(nil)
)

// RetentionHandler handles retention analytics HTTP requests
type RetentionHandler struct {
	metrics  MetricsReader
	pipeline *services.PipelineService
	cohorts  *services.CohortService
	logger   *logrus.Logger
}

// NewRetentionHandler creates a new retention handler
func NewRetentionHandler(metrics MetricsReader, pipeline *services.PipelineService, cohorts *services.CohortService, logger *logrus.Logger) *RetentionHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &RetentionHandler{
		metrics:  metrics,
		pipeline: pipeline,
		cohorts:  cohorts,
		logger:   logger,
	}
}

// parseDateParam reads an ISO date query param. When the param is absent it
// falls back to the most recent snapshot date so that plain GETs return the
// latest computed state.
func (h *RetentionHandler) parseDateParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		latest, err := h.metrics.LatestSnapshotDate(c.Request.Context())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no pipeline runs recorded yet"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return time.Time{}, false
		}
		return latest, true
	}

	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date.UTC(), true
}

// ListSnapshots retrieves retention status snapshots for a reference date
// @Summary List retention snapshots
// @Tags Retention
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to latest run"
// @Param status query string false "Filter by retention status"
// @Success 200 {array} models.RetentionSnapshot
// @Router /api/v1/retention/snapshots [get]
func (h *RetentionHandler) ListSnapshots(c *gin.Context) {
	date, ok := h.parseDateParam(c)
	if !ok {
		return
	}

	status := models.RetentionStatus(c.Query("status"))
	snapshots, err := h.metrics.ListSnapshots(c.Request.Context(), date, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referenceDate": date.Format("2006-01-02"),
		"count":         len(snapshots),
		"snapshots":     snapshots,
	})
}

// GetSummary retrieves the latest status rollup
// @Summary Get retention summary
// @Tags Retention
// @Produce json
// @Success 200 {object} models.StatusRollup
// @Router /api/v1/retention/summary [get]
func (h *RetentionHandler) GetSummary(c *gin.Context) {
	ctx := c.Request.Context()

	if rollup, err := h.metrics.GetCachedSummary(ctx); err == nil {
		c.JSON(http.StatusOK, gin.H{"summary": rollup, "source": "cache"})
		return
	}

	rollup, err := h.metrics.LatestRollup(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pipeline runs recorded yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": rollup, "source": "database"})
}

// ListAssessments retrieves churn risk assessments for a reference date
// @Summary List churn assessments
// @Tags Churn
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to latest run"
// @Param level query string false "Filter by risk level (LOW, MEDIUM, HIGH)"
// @Success 200 {array} models.ChurnAssessment
// @Router /api/v1/churn/assessments [get]
func (h *RetentionHandler) ListAssessments(c *gin.Context) {
	date, ok := h.parseDateParam(c)
	if !ok {
		return
	}

	level := models.ChurnRiskLevel(c.Query("level"))
	assessments, err := h.metrics.ListAssessments(c.Request.Context(), date, level)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referenceDate": date.Format("2006-01-02"),
		"count":         len(assessments),
		"assessments":   assessments,
	})
}

// ListCohorts retrieves the cohort retention matrix
// @Summary List cohort records
// @Tags Cohorts
// @Produce json
// @Param maxMaturity query int false "Cap maturity offset (months)"
// @Success 200 {array} models.CohortRecord
// @Router /api/v1/cohorts [get]
func (h *RetentionHandler) ListCohorts(c *gin.Context) {
	maxMaturity := -1
	if raw := c.Query("maxMaturity"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxMaturity must be a non-negative integer"})
			return
		}
		maxMaturity = parsed
	}

	records, err := h.metrics.ListCohortRecords(c.Request.Context(), maxMaturity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"cohorts": records,
	})
}

// ListAlerts retrieves recent alert decisions
// @Summary List alert decisions
// @Tags Alerts
// @Produce json
// @Param limit query int false "Maximum decisions to return (default 30)"
// @Success 200 {array} models.AlertDecision
// @Router /api/v1/alerts [get]
func (h *RetentionHandler) ListAlerts(c *gin.Context) {
	limit := 30
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 365"})
			return
		}
		limit = parsed
	}

	decisions, err := h.metrics.ListAlertDecisions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(decisions),
		"decisions": decisions,
	})
}

// GetLatestAlert retrieves the most recent alert decision
// @Summary Get latest alert decision
// @Tags Alerts
// @Produce json
// @Success 200 {object} models.AlertDecision
// @Router /api/v1/alerts/latest [get]
func (h *RetentionHandler) GetLatestAlert(c *gin.Context) {
	decision, err := h.metrics.LatestAlertDecision(c.Request.Context())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no alert decisions recorded yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, decision)
}

// RunPipeline triggers a pipeline run for an explicit reference date
// @Summary Run the retention pipeline
// @Tags Internal
// @Produce json
// @Param date query string true "Reference date (YYYY-MM-DD)"
// @Success 200 {object} services.PipelineResult
// @Router /internal/pipeline/run [post]
func (h *RetentionHandler) RunPipeline(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYY-MM-DD); runs are always pinned to an explicit reference date"})
		return
	}

	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	result, err := h.pipeline.RunDaily(c.Request.Context(), date.UTC())
	if err != nil {
		h.logger.WithError(err).WithField("reference_date", raw).Error("Manual pipeline run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RebuildCohorts triggers a full cohort matrix rebuild
// @Summary Rebuild the cohort matrix
// @Tags Internal
// @Produce json
// @Success 200 {object} services.CohortResult
// @Router /internal/cohorts/rebuild [post]
func (h *RetentionHandler) RebuildCohorts(c *gin.Context) {
	result, err := h.cohorts.Rebuild(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Cohort rebuild failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
