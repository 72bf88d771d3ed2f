/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/metrics"
)

// KafkaSink publishes escalation events to a Kafka topic, keyed by the
// escalation ID so records for the same escalation land on one partition.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

// NewKafkaSink creates a KafkaSink from the audit configuration.
func NewKafkaSink(cfg config.Audit, logger *zap.SugaredLogger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: time.Second,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}

	sink := &KafkaSink{
		writer: writer,
		logger: logger.Named("kafka-audit"),
	}

	sink.logger.Infow("Kafka audit sink created",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic)

	return sink, nil
}

// Write publishes one escalation event.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.AuditRecordErrors.WithLabelValues(s.Name()).Inc()
		return fmt.Errorf("kafka sink is closed")
	}
	s.mu.Unlock()

	value, err := json.Marshal(event)
	if err != nil {
		metrics.AuditRecordErrors.WithLabelValues(s.Name()).Inc()
		return fmt.Errorf("failed to marshal escalation event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "module", Value: []byte(event.Module)},
			{Key: "fail-time", Value: []byte(event.FailTime.Format(time.RFC3339))},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		metrics.AuditRecordErrors.WithLabelValues(s.Name()).Inc()
		s.logger.Warnw("Failed to publish escalation event",
			"id", event.ID,
			"module", event.Module,
			"error", err.Error())
		return fmt.Errorf("failed to write to Kafka: %w", err)
	}

	metrics.AuditRecordsWritten.WithLabelValues(s.Name()).Inc()
	return nil
}

// Close shuts down the Kafka writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

func (s *KafkaSink) Name() string { return "kafka" }
