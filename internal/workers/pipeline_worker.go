// Package workers provides background job processors for the retention
// analytics service.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"retention-analytics-service/internal/services"
)

// DefaultPipelineInterval is the default interval between scheduled runs.
const DefaultPipelineInterval = 24 * time.Hour

// PipelineWorker schedules the daily retention pipeline and cohort rebuild.
// The worker is the only place the wall clock chooses a reference date; every
// run it triggers is pinned to the UTC day the tick fired on, so a delayed
// tick still produces a correctly dated snapshot.
type PipelineWorker struct {
	pipeline *services.PipelineService
	cohorts  *services.CohortService
	interval time.Duration
	logger   *logrus.Entry

	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.Mutex
	running  bool
	lastRun  time.Time
	lastErr  error
	stats    PipelineStats
}

// PipelineStats tracks scheduler statistics.
type PipelineStats struct {
	RunsCompleted      int64     `json:"runsCompleted"`
	RunsFailed         int64     `json:"runsFailed"`
	CustomersEvaluated int       `json:"customersEvaluated"`
	LastRunAt          time.Time `json:"lastRunAt,omitempty"`
	LastRunDuration    string    `json:"lastRunDuration,omitempty"`
}

// NewPipelineWorker creates a new pipeline worker.
func NewPipelineWorker(pipeline *services.PipelineService, cohorts *services.CohortService, interval time.Duration, logger *logrus.Logger) *PipelineWorker {
	if interval == 0 {
		interval = DefaultPipelineInterval
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &PipelineWorker{
		pipeline: pipeline,
		cohorts:  cohorts,
		interval: interval,
		logger:   logger.WithField("component", "pipeline_worker"),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the scheduling loop.
func (w *PipelineWorker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run()
	w.logger.WithField("interval", w.interval.String()).Info("Pipeline worker started")
}

// Stop stops the scheduling loop and waits for an in-flight run to finish.
func (w *PipelineWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	<-w.doneChan
	w.logger.Info("Pipeline worker stopped")
}

// ForceRun triggers an immediate run for the given reference date.
func (w *PipelineWorker) ForceRun(ctx context.Context, referenceDate time.Time) error {
	return w.process(ctx, referenceDate)
}

// IsRunning returns whether the worker is running.
func (w *PipelineWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns the current scheduler statistics.
func (w *PipelineWorker) Stats() PipelineStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// run is the main scheduling loop.
func (w *PipelineWorker) run() {
	defer close(w.doneChan)

	// Run once on startup so a fresh deployment has data immediately.
	if err := w.process(context.Background(), todayUTC()); err != nil {
		w.logger.WithError(err).Error("Initial pipeline run failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case tick := <-ticker.C:
			day := time.Date(tick.UTC().Year(), tick.UTC().Month(), tick.UTC().Day(), 0, 0, 0, 0, time.UTC)
			if err := w.process(context.Background(), day); err != nil {
				w.logger.WithError(err).Error("Scheduled pipeline run failed")
			}
		}
	}
}

// process runs the daily pipeline and then the cohort rebuild for one date.
func (w *PipelineWorker) process(ctx context.Context, referenceDate time.Time) error {
	start := time.Now()

	result, err := w.pipeline.RunDaily(ctx, referenceDate)
	if err != nil {
		w.recordFailure(err)
		return err
	}

	// The cohort matrix is derived from the same ledger; refreshing it after
	// each daily run keeps the two surfaces consistent with each other.
	if _, err := w.cohorts.Rebuild(ctx); err != nil {
		w.recordFailure(err)
		return err
	}

	duration := time.Since(start)

	w.mu.Lock()
	w.lastRun = start
	w.lastErr = nil
	w.stats.RunsCompleted++
	w.stats.CustomersEvaluated = result.CustomersEvaluated
	w.stats.LastRunAt = start
	w.stats.LastRunDuration = duration.String()
	w.mu.Unlock()

	w.logger.WithFields(logrus.Fields{
		"reference_date": referenceDate.Format("2006-01-02"),
		"customers":      result.CustomersEvaluated,
		"duration":       duration.String(),
	}).Info("Scheduled pipeline run completed")

	return nil
}

func (w *PipelineWorker) recordFailure(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.stats.RunsFailed++
	w.mu.Unlock()
}

func todayUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// WorkerStatus contains the current status of the worker.
type WorkerStatus struct {
	Running   bool          `json:"running"`
	Interval  string        `json:"interval"`
	LastRun   time.Time     `json:"lastRun,omitempty"`
	LastError string        `json:"lastError,omitempty"`
	Stats     PipelineStats `json:"stats"`
}

// Status returns the current status of the worker.
func (w *PipelineWorker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	status := WorkerStatus{
		Running:  w.running,
		Interval: w.interval.String(),
		Stats:    w.stats,
	}

	if !w.lastRun.IsZero() {
		status.LastRun = w.lastRun
	}
	if w.lastErr != nil {
		status.LastError = w.lastErr.Error()
	}

	return status
}
