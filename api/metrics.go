package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/debt-ledger/ledger"
)

// Metrics holds the Prometheus collectors for the HTTP layer and the
// reminder scheduler. Each instance owns its registry so tests can build
// as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	remindersCreated  prometheus.Counter
	notificationsSent prometheus.Counter
	notificationsFail prometheus.Counter
	jobRuns           *prometheus.CounterVec
	requests          *prometheus.CounterVec
	latency           *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		remindersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_reminders_created_total",
			Help: "Reminder notifications created by the scan.",
		}),
		notificationsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_notifications_sent_total",
			Help: "Notifications delivered to the mailer.",
		}),
		notificationsFail: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_notifications_failed_total",
			Help: "Notifications the mailer rejected.",
		}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_reminder_job_runs_total",
			Help: "Reminder job ticks by outcome.",
		}, []string{"outcome"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ReminderCreated()    { m.remindersCreated.Inc() }
func (m *Metrics) NotificationSent()   { m.notificationsSent.Inc() }
func (m *Metrics) NotificationFailed() { m.notificationsFail.Inc() }

// JobRun counts one reminder job tick; outcome is "ok" or "error".
func (m *Metrics) JobRun(outcome string) { m.jobRuns.WithLabelValues(outcome).Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so /api/debts/{id} is one series rather than one per id.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

var _ ledger.Metrics = (*Metrics)(nil)
