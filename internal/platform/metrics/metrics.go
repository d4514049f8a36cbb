// Package metrics exposes Prometheus instruments for the record service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uhra/uhra/internal/domain/records"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec
	AccessDecisions *prometheus.CounterVec
	DatasetLoads    *prometheus.CounterVec
	DatasetLoadTime *prometheus.HistogramVec
}

// New creates the metrics on a private registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uhra_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uhra_http_request_duration_seconds",
			Help:    "Latency of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		AccessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uhra_record_access_decisions_total",
			Help: "Record access decisions, labeled by outcome and deny reason",
		}, []string{"outcome", "reason"}),
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uhra_dataset_loads_total",
			Help: "Dataset loads by storage source and result",
		}, []string{"source", "result"}),
		DatasetLoadTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uhra_dataset_load_duration_seconds",
			Help:    "Time spent reading and parsing the dataset",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"source"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPLatency,
		m.AccessDecisions,
		m.DatasetLoads,
		m.DatasetLoadTime,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDecision implements records.Observer.
func (m *Metrics) ObserveDecision(d records.Decision) {
	outcome := "allow"
	if !d.Allowed {
		outcome = "deny"
	}
	m.AccessDecisions.WithLabelValues(outcome, d.Reason.String()).Inc()
}

// ObserveLoad implements records.Observer.
func (m *Metrics) ObserveLoad(source string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.DatasetLoads.WithLabelValues(source, result).Inc()
	m.DatasetLoadTime.WithLabelValues(source).Observe(elapsed.Seconds())
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			m.HTTPRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return echo.WrapHandler(http.HandlerFunc(h.ServeHTTP))
}
