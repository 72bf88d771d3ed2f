// Package hermes wraps a unit of work with retries and terminal-failure
// notification. A wrapped function is retried on error with a fixed delay;
// once retries are exhausted the failure is captured, rendered and dispatched
// over the configured channels, and the work error is returned to the caller
// unchanged. Success produces no notification.
package hermes

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/dispatch"
	"github.com/EvanWAppel/hermes/pkg/failure"
	"github.com/EvanWAppel/hermes/pkg/metrics"
	"github.com/EvanWAppel/hermes/pkg/report"
	"github.com/EvanWAppel/hermes/pkg/system"
)

// Policy controls the retry behavior of a wrapped unit of work. MaxRetries
// counts retries after the first attempt, so a value of n yields n+1
// invocations. Delay is the fixed pause between consecutive attempts; there
// is no delay before the first attempt or after the last.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultPolicy retries once after a minute.
var DefaultPolicy = Policy{MaxRetries: 1, Delay: 60 * time.Second}

// Escalator receives the terminal failure. *dispatch.Dispatcher is the
// production implementation.
type Escalator interface {
	Dispatch(ctx context.Context, fc failure.Context, rep report.Report) string
	Close() error
}

// Notifier binds a retry policy, a report template and an escalation path.
// One Notifier can wrap any number of functions; it is safe for concurrent
// use once constructed.
type Notifier struct {
	policy    Policy
	tmpl      *report.Template
	logger    *zap.SugaredLogger
	escalator Escalator
	module    string
	sleep     func(context.Context, time.Duration)
}

type options struct {
	policy    Policy
	logger    *zap.SugaredLogger
	tmplText  string
	tmplPath  string
	module    string
	escalator Escalator
}

// Option configures a Notifier.
type Option func(*options)

// WithPolicy overrides the default retry policy. Negative values are
// clamped to zero.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithTemplate sets the report body template from a string. An invalid
// template is logged and the built-in default body is used instead; a
// template problem must never block an escalation.
func WithTemplate(text string) Option {
	return func(o *options) { o.tmplText = text }
}

// WithTemplateFile sets the report body template from a file, with the same
// fallback behavior as WithTemplate.
func WithTemplateFile(path string) Option {
	return func(o *options) { o.tmplPath = path }
}

// WithLogger replaces the default logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithModule overrides the module name derived from the wrapped function's
// package. The module names the report subject line.
func WithModule(name string) Option {
	return func(o *options) { o.module = name }
}

// WithEscalator replaces the channel dispatcher. Used by tests.
func WithEscalator(e Escalator) Option {
	return func(o *options) { o.escalator = e }
}

// New creates a Notifier for the given channel configuration.
func New(cfg config.Channels, opts ...Option) *Notifier {
	o := &options{policy: DefaultPolicy}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = system.NewLogger(false)
	}

	escalator := o.escalator
	if escalator == nil {
		escalator = dispatch.New(cfg, logger)
	}

	if o.policy.MaxRetries < 0 {
		o.policy.MaxRetries = 0
	}
	if o.policy.Delay < 0 {
		o.policy.Delay = 0
	}

	n := &Notifier{
		policy:    o.policy,
		logger:    logger.Named("hermes"),
		escalator: escalator,
		module:    o.module,
		sleep:     sleepContext,
	}
	n.tmpl = resolveTemplate(o, n.logger)
	return n
}

// Close releases the escalation path resources.
func (n *Notifier) Close() error {
	return n.escalator.Close()
}

func resolveTemplate(o *options, logger *zap.SugaredLogger) *report.Template {
	var (
		tmpl *report.Template
		err  error
	)
	switch {
	case o.tmplText != "":
		tmpl, err = report.Parse(o.tmplText)
	case o.tmplPath != "":
		tmpl, err = report.ParseFile(o.tmplPath)
	default:
		return nil
	}
	if err != nil {
		metrics.TemplateFallbacks.Inc()
		logger.Warnw("Invalid report template, using default body", "error", err.Error())
		return nil
	}
	return tmpl
}

// Wrap returns fn with retry and escalation attached. The function's origin
// is resolved here, once, before any attempt runs.
func Wrap[T any](n *Notifier, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	origin := n.originFor(fn)
	return func(ctx context.Context) (T, error) {
		return run(ctx, n, origin, fn)
	}
}

// Do invokes fn under the notifier's retry policy and returns its result.
// On terminal failure the escalation fires and the work error comes back
// unchanged; escalation never substitutes its own errors.
func Do[T any](ctx context.Context, n *Notifier, fn func(context.Context) (T, error)) (T, error) {
	return run(ctx, n, n.originFor(fn), fn)
}

// Run is Do for functions that return only an error.
func (n *Notifier) Run(ctx context.Context, fn func(context.Context) error) error {
	origin := n.originFor(fn)
	_, err := run(ctx, n, origin, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (n *Notifier) originFor(fn any) failure.Origin {
	origin := failure.ResolveOrigin(fn)
	if n.module != "" {
		origin.Module = n.module
	}
	return origin
}

func run[T any](ctx context.Context, n *Notifier, origin failure.Origin, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	start := time.Now()
	for attempt := 0; attempt <= n.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.WorkRetries.WithLabelValues(origin.Module).Inc()
			n.sleep(ctx, n.policy.Delay)
			if ctx.Err() != nil {
				break
			}
		}

		metrics.WorkAttempts.WithLabelValues(origin.Module).Inc()
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		n.logger.Warnw("Work attempt failed",
			"module", origin.Module,
			"function", origin.Function,
			"attempt", attempt+1,
			"maxAttempts", n.policy.MaxRetries+1,
			"error", err.Error())
	}

	n.escalate(ctx, origin, start, lastErr)
	return zero, lastErr
}

// escalate fires exactly once per terminal failure. The snapshot, the render
// and the dispatch all happen here, synchronously, before the work error is
// handed back. Dispatch runs on a context detached from the work's
// cancellation: once escalation begins it runs to completion, and a caller
// cancelling the failed work must not also cancel its failure notification.
// Each driver still bounds its own sends with a request timeout.
func (n *Notifier) escalate(ctx context.Context, origin failure.Origin, start time.Time, err error) {
	fc := failure.Capture(origin, start, err)
	rep := report.Render(fc, n.tmpl)

	id := n.escalator.Dispatch(context.WithoutCancel(ctx), fc, rep)
	metrics.Escalations.WithLabelValues(fc.Module).Inc()

	n.logger.Errorw("Retries exhausted, failure escalated",
		"escalation", id,
		"module", fc.Module,
		"function", fc.Function,
		"error", fc.Err)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
