package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Work lifecycle metrics
	WorkAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_work_attempts_total",
		Help: "Total number of wrapped work invocations, including retries",
	}, []string{"module"})
	WorkRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_work_retries_total",
		Help: "Total number of retries after a failed work invocation",
	}, []string{"module"})
	Escalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_escalations_total",
		Help: "Total number of terminal failures escalated to notification",
	}, []string{"module"})

	// Notification channel metrics
	NotificationSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_notification_send_success_total",
		Help: "Total number of successful notification deliveries per channel",
	}, []string{"channel"})
	NotificationSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_notification_send_failure_total",
		Help: "Total number of failed notification deliveries per channel",
	}, []string{"channel"})

	// Renderer metrics
	TemplateFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hermes_template_fallbacks_total",
		Help: "Total number of renders that fell back to the default body after a template error",
	})

	// Audit sink metrics
	AuditRecordsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_audit_records_written_total",
		Help: "Total number of escalation audit records written per sink",
	}, []string{"sink"})
	AuditRecordErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_audit_record_errors_total",
		Help: "Total number of escalation audit record write failures per sink",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(WorkAttempts)
	prometheus.MustRegister(WorkRetries)
	prometheus.MustRegister(Escalations)
	prometheus.MustRegister(NotificationSendSuccess)
	prometheus.MustRegister(NotificationSendFailure)
	prometheus.MustRegister(TemplateFallbacks)
	prometheus.MustRegister(AuditRecordsWritten)
	prometheus.MustRegister(AuditRecordErrors)
}

// Handler returns the HTTP handler exposing the hermes metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
