// Package dispatch fans a rendered failure report out to every active
// notification channel and records the escalation in the audit trail.
package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EvanWAppel/hermes/pkg/audit"
	"github.com/EvanWAppel/hermes/pkg/channel"
	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/failure"
	"github.com/EvanWAppel/hermes/pkg/metrics"
	"github.com/EvanWAppel/hermes/pkg/report"
)

// Dispatcher owns the active channel drivers for one wrapped unit of work.
// Which channels are active is a pure function of the configuration: mail is
// always on, chat requires a webhook URL, ticket requires the full tracker
// credential set.
type Dispatcher struct {
	drivers []channel.Driver
	sink    audit.Sink
	logger  *zap.SugaredLogger
}

// New builds a Dispatcher from the channel configuration. A misconfigured
// audit sink degrades to log-only auditing rather than failing construction;
// escalation delivery must not depend on the audit pipeline.
func New(cfg config.Channels, logger *zap.SugaredLogger) *Dispatcher {
	drivers := []channel.Driver{channel.NewMailDriver(cfg.Mail, logger)}
	if cfg.Chat.Configured() {
		drivers = append(drivers, channel.NewChatDriver(cfg.Chat, logger))
	}
	if cfg.Ticket.Configured() {
		drivers = append(drivers, channel.NewTicketDriver(cfg.Ticket, logger))
	}

	sinks := []audit.Sink{audit.NewLogSink(logger)}
	if cfg.Audit.Configured() {
		kafkaSink, err := audit.NewKafkaSink(cfg.Audit, logger)
		if err != nil {
			logger.Warnw("Kafka audit sink unavailable, falling back to log-only auditing",
				"error", err.Error())
		} else {
			sinks = append(sinks, kafkaSink)
		}
	}

	return newWithDrivers(drivers, audit.NewMultiSink(logger, sinks...), logger)
}

// newWithDrivers is the assembly seam used by tests to inject fake drivers
// and sinks.
func newWithDrivers(drivers []channel.Driver, sink audit.Sink, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		drivers: drivers,
		sink:    sink,
		logger:  logger.Named("dispatch"),
	}
}

// Channels returns the names of the active channels in dispatch order.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.drivers))
	for _, drv := range d.drivers {
		names = append(names, drv.Name())
	}
	return names
}

// Dispatch sends the report through every active channel and writes the
// escalation audit record. Channel failures are logged and counted but never
// returned: a broken webhook must not stop the mail, and no delivery problem
// may ever mask the original work error. The escalation ID is returned for
// correlation.
func (d *Dispatcher) Dispatch(ctx context.Context, fc failure.Context, rep report.Report) string {
	id := uuid.NewString()
	results := make([]audit.ChannelResult, 0, len(d.drivers))

	for _, drv := range d.drivers {
		result := audit.ChannelResult{Channel: drv.Name()}
		if err := drv.Send(ctx, rep); err != nil {
			metrics.NotificationSendFailure.WithLabelValues(drv.Name()).Inc()
			d.logger.Errorw("Notification delivery failed",
				"escalation", id,
				"channel", drv.Name(),
				"module", fc.Module,
				"error", err.Error())
			result.Error = err.Error()
		} else {
			metrics.NotificationSendSuccess.WithLabelValues(drv.Name()).Inc()
			result.Delivered = true
		}
		results = append(results, result)
	}

	event := &audit.Event{
		ID:       id,
		Module:   fc.Module,
		Function: fc.Function,
		Start:    fc.Start,
		FailTime: fc.FailTime,
		Machine:  fc.Machine,
		User:     fc.User,
		Error:    fc.Err,
		Channels: results,
	}
	if err := d.sink.Write(ctx, event); err != nil {
		d.logger.Warnw("Escalation audit write failed",
			"escalation", id,
			"error", err.Error())
	}

	return id
}

// Close releases the audit sink resources.
func (d *Dispatcher) Close() error {
	return d.sink.Close()
}
