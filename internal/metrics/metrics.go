// Package metrics holds the Prometheus collectors for ingestion, billing and
// the operator API. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion outcomes, one per processed message.
const (
	OutcomeStored    = "stored"
	OutcomeUnmatched = "unmatched"
	OutcomeDuplicate = "duplicate"
	OutcomeUnparsed  = "unparsed"
	OutcomeUnhandled = "unhandled"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	messages    *prometheus.CounterVec
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	reminders   *prometheus.CounterVec
	debits      *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

// New builds a registry with the ledgerd collectors and the Go runtime
// collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerd_ingest_messages_total",
			Help: "Notifications processed by ingestion, by outcome.",
		}, []string{"outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerd_job_runs_total",
			Help: "Job executions by job name and status.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerd_job_duration_seconds",
			Help:    "Duration of job executions in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerd_reminders_total",
			Help: "Late payment reminders attempted, by delivery status.",
		}, []string{"status"}),
		debits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerd_debits_total",
			Help: "Recurring debits issued, by billing plan.",
		}, []string{"plan"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerd_http_requests_total",
			Help: "Operator API requests by route and status code.",
		}, []string{"route", "code"}),
	}
	registry.MustRegister(
		m.messages, m.jobRuns, m.jobDuration, m.reminders, m.debits, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reminder(status string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(status).Inc()
}

func (m *Metrics) Debit(plan string) {
	if m == nil {
		return
	}
	m.debits.WithLabelValues(plan).Inc()
}

func (m *Metrics) Request(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Tracker instruments a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the run's duration and status and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.jobRuns.WithLabelValues(t.job, status).Inc()
	t.metrics.jobDuration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}
