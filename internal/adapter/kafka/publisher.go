// Package kafka publishes impact-change alerts to a Kafka topic. Publishing
// is best effort: a broker outage degrades to logged failures, never to a
// blocked refresh loop.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hurricane-risk-service/internal/config"
	"github.com/couchcryptid/hurricane-risk-service/internal/observability"
	"github.com/couchcryptid/hurricane-risk-service/internal/places"
)

// Publisher produces alert messages to the configured topic.
// It implements refresh.AlertNotifier.
type Publisher struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the alert topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// PublishAlerts serializes and publishes the batch in a single
// WriteMessages call.
func (p *Publisher) PublishAlerts(ctx context.Context, alerts []places.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeToMessage(alerts[i])
		if err != nil {
			if p.metrics != nil {
				p.metrics.AlertFailures.Inc()
			}
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		if p.metrics != nil {
			p.metrics.AlertFailures.Inc()
		}
		return fmt.Errorf("publish alerts: %w", err)
	}
	if p.metrics != nil {
		p.metrics.AlertsPublished.Add(float64(len(alerts)))
	}
	p.logger.Info("alerts published", "count", len(alerts))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Alert into a Kafka message keyed by place,
// so per-place ordering survives partitioning.
func serializeToMessage(alert places.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.PlaceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_kind", Value: []byte(alert.Kind)},
			{Key: "observed_at", Value: []byte(alert.ObservedAt.Format(time.RFC3339))},
		},
	}, nil
}
