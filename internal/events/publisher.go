// Package events publishes retention alert events over NATS JetStream for
// the notification dispatchers (email, chat, ticketing) that live outside
// this service.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
	"retention-analytics-service/internal/models"
)

const (
	streamName            = "RETENTION_EVENTS"
	subjectAlertTriggered = "retention.alert.triggered"
)

// AlertPublisherInterface abstracts alert publication for the pipeline service
type AlertPublisherInterface interface {
	PublishAlertTriggered(ctx context.Context, decision *models.AlertDecision) error
	Close()
}

// AlertEvent is the wire payload consumed by notification dispatch.
type AlertEvent struct {
	EventID          string    `json:"eventId"`
	EventType        string    `json:"eventType"`
	Timestamp        time.Time `json:"timestamp"`
	ReferenceDate    string    `json:"referenceDate"`
	Metric           string    `json:"metric"`
	CurrentValue     float64   `json:"currentValue"`
	BaselineValue    *float64  `json:"baselineValue,omitempty"`
	DeltaPct         *float64  `json:"deltaPct,omitempty"`
	DeltaRelativePct *float64  `json:"deltaRelativePct,omitempty"`
	Severity         string    `json:"severity"`
	SampleSize       int       `json:"sampleSize"`
}

// AlertPublisher publishes alert decisions to NATS JetStream
type AlertPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Entry
}

// NewAlertPublisher connects to NATS and ensures the retention stream exists
func NewAlertPublisher(natsURL string, logger *logrus.Logger) (*AlertPublisher, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("retention-analytics-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("[NATS] Reconnected to %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warnf("[NATS] Disconnected: %v", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"retention.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to ensure retention stream (may already exist)")
	}

	return &AlertPublisher{
		nc:     nc,
		js:     js,
		logger: logger.WithField("component", "retention-events"),
	}, nil
}

// Close closes the NATS connection
func (p *AlertPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// PublishAlertTriggered publishes a retention.alert.triggered event for a
// flagged decision. Publication is fire-and-forget: a bus outage must never
// fail the pipeline run, since the decision row is already persisted.
func (p *AlertPublisher) PublishAlertTriggered(ctx context.Context, decision *models.AlertDecision) error {
	event := AlertEvent{
		EventID:          uuid.New().String(),
		EventType:        "retention.alert.triggered",
		Timestamp:        time.Now().UTC(),
		ReferenceDate:    decision.ReferenceDate.Format("2006-01-02"),
		Metric:           "at_risk_pct",
		CurrentValue:     decision.CurrentValue,
		BaselineValue:    decision.BaselineValue,
		DeltaPct:         decision.DeltaPct,
		DeltaRelativePct: decision.DeltaRelativePct,
		Severity:         string(decision.Severity),
		SampleSize:       decision.SampleSize,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := p.js.Publish(pubCtx, subjectAlertTriggered, payload); err != nil {
			p.logger.WithFields(logrus.Fields{
				"referenceDate": event.ReferenceDate,
				"severity":      event.Severity,
			}).WithError(err).Error("Failed to publish alert event")
		} else {
			p.logger.WithFields(logrus.Fields{
				"referenceDate": event.ReferenceDate,
				"severity":      event.Severity,
				"currentValue":  event.CurrentValue,
			}).Info("Alert event published")
		}
	}()

	return nil
}
