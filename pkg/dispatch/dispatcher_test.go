package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvanWAppel/hermes/pkg/audit"
	"github.com/EvanWAppel/hermes/pkg/channel"
	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/failure"
	"github.com/EvanWAppel/hermes/pkg/report"
	"github.com/EvanWAppel/hermes/pkg/system"
)

type fakeDriver struct {
	name  string
	err   error
	sends int
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Send(_ context.Context, _ report.Report) error {
	d.sends++
	return d.err
}

type captureSink struct {
	events []*audit.Event
}

func (s *captureSink) Write(_ context.Context, event *audit.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) Name() string { return "capture" }

func testFailure() failure.Context {
	return failure.Context{
		Function:  "load",
		Module:    "etl",
		Start:     time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		FailTime:  time.Date(2026, 8, 1, 10, 5, 0, 0, time.UTC),
		Machine:   "worker-01",
		User:      "svc-etl",
		Err:       "boom",
		Traceback: "goroutine 1 [running]:",
	}
}

func TestNew_ChannelActivation(t *testing.T) {
	logger := system.NewTestLogger()
	mail := config.Mail{Origin: "from@example.com", Destination: "to@example.com"}

	tests := []struct {
		name string
		cfg  config.Channels
		want []string
	}{
		{
			name: "mail only",
			cfg:  config.Channels{Mail: mail},
			want: []string{"mail"},
		},
		{
			name: "webhook activates chat",
			cfg: config.Channels{
				Mail: mail,
				Chat: config.Chat{WebhookURL: "https://chat.example.com/hook"},
			},
			want: []string{"mail", "chat"},
		},
		{
			name: "full tracker credentials activate ticket",
			cfg: config.Channels{
				Mail: mail,
				Ticket: config.Ticket{
					URL:     "https://tracker.example.com",
					Email:   "oncall@example.com",
					Token:   "api-token",
					Project: "OPS",
				},
			},
			want: []string{"mail", "ticket"},
		},
		{
			name: "partial tracker credentials leave ticket inactive",
			cfg: config.Channels{
				Mail: mail,
				Ticket: config.Ticket{
					URL:   "https://tracker.example.com",
					Email: "oncall@example.com",
				},
			},
			want: []string{"mail"},
		},
		{
			name: "all channels",
			cfg: config.Channels{
				Mail: mail,
				Chat: config.Chat{WebhookURL: "https://chat.example.com/hook"},
				Ticket: config.Ticket{
					URL:     "https://tracker.example.com",
					Email:   "oncall@example.com",
					Token:   "api-token",
					Project: "OPS",
				},
			},
			want: []string{"mail", "chat", "ticket"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.cfg, logger)
			assert.Equal(t, tt.want, d.Channels())
		})
	}
}

func TestNew_BadAuditConfigDegradesToLogOnly(t *testing.T) {
	// Brokers without a topic never reach sink construction; a configured
	// sink that fails to build must not fail the dispatcher either. The
	// constructor below only rejects empty fields, so exercise the
	// degradation path through Configured() being false.
	cfg := config.Channels{
		Mail:  config.Mail{Origin: "from@example.com", Destination: "to@example.com"},
		Audit: config.Audit{Brokers: []string{"localhost:9092"}},
	}
	d := New(cfg, system.NewTestLogger())
	require.NotNil(t, d)
	assert.Equal(t, []string{"mail"}, d.Channels())
}

func TestDispatch_PerChannelIsolation(t *testing.T) {
	failing := &fakeDriver{name: "mail", err: &channel.DeliveryError{Channel: "mail", Err: errors.New("relay down")}}
	healthy := &fakeDriver{name: "chat"}
	sink := &captureSink{}

	d := newWithDrivers([]channel.Driver{failing, healthy}, sink, system.NewTestLogger())
	id := d.Dispatch(context.Background(), testFailure(), report.Report{Subject: "etl has failed.", Body: "boom"})

	require.NotEmpty(t, id)
	assert.Equal(t, 1, failing.sends)
	assert.Equal(t, 1, healthy.sends, "a failing channel must not stop the others")
}

func TestDispatch_AuditRecord(t *testing.T) {
	failing := &fakeDriver{name: "chat", err: &channel.DeliveryError{Channel: "chat", Err: errors.New("429")}}
	healthy := &fakeDriver{name: "mail"}
	sink := &captureSink{}

	d := newWithDrivers([]channel.Driver{healthy, failing}, sink, system.NewTestLogger())
	fc := testFailure()
	id := d.Dispatch(context.Background(), fc, report.Report{Subject: "etl has failed.", Body: "boom"})

	require.Len(t, sink.events, 1)
	event := sink.events[0]

	assert.Equal(t, id, event.ID)
	assert.Equal(t, "etl", event.Module)
	assert.Equal(t, "load", event.Function)
	assert.Equal(t, fc.Start, event.Start)
	assert.Equal(t, fc.FailTime, event.FailTime)
	assert.Equal(t, "worker-01", event.Machine)
	assert.Equal(t, "svc-etl", event.User)
	assert.Equal(t, "boom", event.Error)

	require.Len(t, event.Channels, 2)
	assert.Equal(t, audit.ChannelResult{Channel: "mail", Delivered: true}, event.Channels[0])
	assert.Equal(t, "chat", event.Channels[1].Channel)
	assert.False(t, event.Channels[1].Delivered)
	assert.Contains(t, event.Channels[1].Error, "429")
}

func TestDispatch_UniqueEscalationIDs(t *testing.T) {
	sink := &captureSink{}
	d := newWithDrivers([]channel.Driver{&fakeDriver{name: "mail"}}, sink, system.NewTestLogger())

	first := d.Dispatch(context.Background(), testFailure(), report.Report{})
	second := d.Dispatch(context.Background(), testFailure(), report.Report{})
	assert.NotEqual(t, first, second)
}
