// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics owns the Prometheus registry of the API server.

Every collector is registered on a private [prometheus.Registry] rather than
the global default, so tests can build isolated instances. All recording
methods are nil-safe: a nil [*Metrics] records nothing.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workhub"

// Outcome labels shared by the operation counters.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Cache lookup labels.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds all Prometheus collectors of the API server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Hierarchy metrics
	HierarchyOperationsTotal *prometheus.CounterVec
	HierarchyCacheTotal      *prometheus.CounterVec
	SuperAdminsActive        prometheus.Gauge
}

// New creates and registers all collectors on registry, including the Go
// runtime and process collectors.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route pattern.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		HierarchyOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hierarchy_operations_total",
				Help:      "Role changes and removals by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		HierarchyCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hierarchy_cache_lookups_total",
				Help:      "Hierarchy snapshot cache lookups by result.",
			},
			[]string{"result"},
		),
		SuperAdminsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "super_admins_active",
				Help:      "Active super administrators as of the last count.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HierarchyOperationsTotal,
		m.HierarchyCacheTotal,
		m.SuperAdminsActive,
	)

	return m
}

// ObservePool exports connection statistics of pool as gauges.
func (m *Metrics) ObservePool(pool *pgxpool.Pool) {
	if m == nil || pool == nil {
		return
	}

	gauge := func(name, help string, value func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "db", Name: name, Help: help},
			func() float64 { return value(pool.Stat()) },
		)
	}

	m.registry.MustRegister(
		gauge("connections_acquired", "Connections currently in use.", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("connections_idle", "Idle connections in the pool.", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("connections_total", "Total connections in the pool.", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
	)
}

// # Recording

// Operation counts one hierarchy mutation attempt.
func (m *Metrics) Operation(operation, outcome string) {
	if m == nil {
		return
	}
	m.HierarchyOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// CacheLookup counts one hierarchy snapshot lookup.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.HierarchyCacheTotal.WithLabelValues(result).Inc()
}

// SuperAdmins records the latest active super administrator count.
func (m *Metrics) SuperAdmins(count int) {
	if m == nil {
		return
	}
	m.SuperAdminsActive.Set(float64(count))
}

// # HTTP

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (writer *statusWriter) WriteHeader(code int) {
	writer.status = code
	writer.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests. The route label is the chi route pattern,
// so path parameters like user IDs never explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: writer, status: http.StatusOK}

		next.ServeHTTP(wrapped, request)

		route := "unmatched"
		if routeCtx := chi.RouteContext(request.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.HTTPRequestsTotal.WithLabelValues(request.Method, route, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(request.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
