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

// Package audit records every escalation as a structured event so failure
// notifications leave a durable trail independent of the channels themselves.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/EvanWAppel/hermes/pkg/metrics"
)

// Event is the audit record written for one escalation.
type Event struct {
	// ID is the unique escalation identifier.
	ID string `json:"id"`

	// Module and Function identify the failed unit of work.
	Module   string `json:"module"`
	Function string `json:"function"`

	Start    time.Time `json:"start"`
	FailTime time.Time `json:"failTime"`
	Machine  string    `json:"machine"`
	User     string    `json:"user"`

	// Error is the message of the work error that exhausted its retries.
	Error string `json:"error"`

	// Channels records the delivery outcome per active channel.
	Channels []ChannelResult `json:"channels"`
}

// ChannelResult is the per-channel delivery outcome for an escalation.
type ChannelResult struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// Sink is a destination for escalation audit events.
type Sink interface {
	// Write records one escalation event.
	Write(ctx context.Context, event *Event) error

	// Close releases any resources held by the sink.
	Close() error

	// Name returns the sink's identifier.
	Name() string
}

// LogSink writes escalation events to the structured logger. It is always
// active so every escalation is observable even with no Kafka configured.
type LogSink struct {
	logger *zap.SugaredLogger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.SugaredLogger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Write(_ context.Context, event *Event) error {
	s.logger.Infow("Escalation recorded",
		"id", event.ID,
		"module", event.Module,
		"function", event.Function,
		"start", event.Start.Format(time.RFC3339),
		"failTime", event.FailTime.Format(time.RFC3339),
		"machine", event.Machine,
		"user", event.User,
		"error", event.Error,
		"channels", event.Channels)
	metrics.AuditRecordsWritten.WithLabelValues(s.Name()).Inc()
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }

// MultiSink fans one event out to several sinks. A failing sink never stops
// the others; the last error is returned for visibility.
type MultiSink struct {
	sinks  []Sink
	logger *zap.SugaredLogger
}

// NewMultiSink creates a sink that writes to every destination.
func NewMultiSink(logger *zap.SugaredLogger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger.Named("audit")}
}

func (s *MultiSink) Write(ctx context.Context, event *Event) error {
	var lastErr error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, event); err != nil {
			s.logger.Warnw("Audit sink write failed",
				"sink", sink.Name(),
				"error", err.Error())
			lastErr = err
		}
	}
	return lastErr
}

func (s *MultiSink) Close() error {
	var lastErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (s *MultiSink) Name() string { return "multi" }
