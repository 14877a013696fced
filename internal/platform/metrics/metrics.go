package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the compliance service.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	LedgerAppends     *prometheus.CounterVec
	IntegrityFailures *prometheus.CounterVec

	RequestsOpened *prometheus.CounterVec
	RequestsClosed *prometheus.CounterVec

	RetentionActions *prometheus.CounterVec
	JobRuns          *prometheus.CounterVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdms_http_requests_total",
			Help: "Total HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cdms_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),

		LedgerAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdms_ledger_appends_total",
			Help: "Total hash-chain entries appended by scope prefix",
		}, []string{"scope"}),

		IntegrityFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdms_ledger_integrity_failures_total",
			Help: "Hash-chain integrity violations detected; any increase needs operator attention",
		}, []string{"scope"}),

		RequestsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdms_rights_requests_opened_total",
			Help: "Rights requests created by kind",
		}, []string{"kind"}),

		RequestsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdms_rights_requests_closed_total",
			Help: "Rights requests reaching a terminal status by kind and status",
		}, []string{"kind", "status"}),

		RetentionActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdms_retention_actions_total",
			Help: "Retention record transitions by action",
		}, []string{"action"}),

		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdms_job_runs_total",
			Help: "Background job executions by job type and outcome",
		}, []string{"job", "status"}),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) IncLedgerAppend(scopePrefix string) {
	if m != nil {
		m.LedgerAppends.WithLabelValues(scopePrefix).Inc()
	}
}

func (m *Metrics) IncIntegrityFailure(scopePrefix string) {
	if m != nil {
		m.IntegrityFailures.WithLabelValues(scopePrefix).Inc()
	}
}

func (m *Metrics) IncRequestOpened(kind string) {
	if m != nil {
		m.RequestsOpened.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncRequestClosed(kind, status string) {
	if m != nil {
		m.RequestsClosed.WithLabelValues(kind, status).Inc()
	}
}

func (m *Metrics) IncRetentionAction(action string) {
	if m != nil {
		m.RetentionActions.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncJobRun(job, status string) {
	if m != nil {
		m.JobRuns.WithLabelValues(job, status).Inc()
	}
}
