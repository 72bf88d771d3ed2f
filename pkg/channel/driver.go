// Package channel implements the notification channel drivers. Each driver
// performs exactly one outbound delivery per escalation; retries belong to
// the work being wrapped, never to notification delivery.
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/EvanWAppel/hermes/pkg/report"
)

// requestTimeout bounds each outbound notification call.
const requestTimeout = 30 * time.Second

// Driver delivers one rendered failure report over a single channel.
type Driver interface {
	// Name returns the channel identifier ("mail", "chat", "ticket").
	Name() string

	// Send performs the one-shot delivery. Failures are returned as
	// *DeliveryError; the dispatcher isolates them per channel.
	Send(ctx context.Context, rep report.Report) error
}

// DeliveryError wraps a channel transport, auth or protocol failure with the
// channel it occurred on.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
