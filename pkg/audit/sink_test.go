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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/system"
)

func testEvent() *Event {
	return &Event{
		ID:       "b4f9d2e0-0000-4000-8000-000000000001",
		Module:   "etl",
		Function: "load",
		Start:    time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		FailTime: time.Date(2026, 8, 1, 10, 5, 0, 0, time.UTC),
		Machine:  "worker-01",
		User:     "svc-etl",
		Error:    "boom",
		Channels: []ChannelResult{
			{Channel: "mail", Delivered: true},
			{Channel: "chat", Delivered: false, Error: "webhook returned status 500"},
		},
	}
}

type recordingSink struct {
	name   string
	err    error
	events []*Event
	closed bool
}

func (s *recordingSink) Write(_ context.Context, event *Event) error {
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func (s *recordingSink) Name() string { return s.name }

func TestLogSink(t *testing.T) {
	sink := NewLogSink(system.NewTestLogger())
	require.NoError(t, sink.Write(context.Background(), testEvent()))
	require.NoError(t, sink.Close())
	assert.Equal(t, "log", sink.Name())
}

func TestMultiSink_WritesAllDespiteFailure(t *testing.T) {
	failing := &recordingSink{name: "first", err: errors.New("broker down")}
	healthy := &recordingSink{name: "second"}

	multi := NewMultiSink(system.NewTestLogger(), failing, healthy)
	err := multi.Write(context.Background(), testEvent())

	// The failing sink must not stop the healthy one.
	require.Len(t, failing.events, 1)
	require.Len(t, healthy.events, 1)
	assert.Error(t, err)
}

func TestMultiSink_ClosesAll(t *testing.T) {
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}

	multi := NewMultiSink(system.NewTestLogger(), first, second)
	require.NoError(t, multi.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestKafkaSink_RequiresBrokersAndTopic(t *testing.T) {
	logger := system.NewTestLogger()

	_, err := NewKafkaSink(config.Audit{Topic: "escalations"}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker")

	_, err = NewKafkaSink(config.Audit{Brokers: []string{"localhost:9092"}}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic")
}

func TestKafkaSink_ClosedWriteFails(t *testing.T) {
	sink, err := NewKafkaSink(config.Audit{
		Brokers: []string{"localhost:9092"},
		Topic:   "escalations",
	}, system.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close()) // idempotent

	err = sink.Write(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
