// Package metrics содержит Prometheus-коллекторы сервиса и HTTP middleware.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Результаты для меток result.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultIgnored = "ignored"
	ResultHit     = "hit"
	ResultMiss    = "miss"
)

// Metrics набор коллекторов сервиса.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	OTPDispatch    *prometheus.CounterVec
	WebhookEvents  *prometheus.CounterVec
	DashboardCache *prometheus.CounterVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		OTPDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_dispatch_total",
			Help: "Notification dispatches by channel and result.",
		}, []string{"channel", "result"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Payment processor events by type and result.",
		}, []string{"type", "result"}),
		DashboardCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_cache_lookups_total",
			Help: "Dashboard cache lookups by metric and result.",
		}, []string{"metric", "result"}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.OTPDispatch, m.WebhookEvents, m.DashboardCache)
	return m
}

// NewNop создаёт коллекторы без регистрации, для тестов и CLI.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Middleware считает запросы и их длительность по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
