// Package metrics provides Prometheus metrics collection for the gateway.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global metrics - used by the application.
	// Using atomic.Pointer for lock-free initialization checks on hot path metrics.
	requestsTotal     atomic.Pointer[prometheus.CounterVec]
	requestDuration   atomic.Pointer[prometheus.HistogramVec]
	proxiedTotal      atomic.Pointer[prometheus.CounterVec]
	proxiedCost       atomic.Pointer[prometheus.CounterVec]
	proxyRejections   atomic.Pointer[prometheus.CounterVec]
	budgetEventsTotal atomic.Pointer[prometheus.CounterVec]
)

// Init initializes all Prometheus metrics and registers them with the provided registry.
// This should be called once at application startup.
func Init(reg prometheus.Registerer) error {
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvault",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the gateway",
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestsTotalVec); err != nil {
		return fmt.Errorf("failed to register requestsTotal: %w", err)
	}

	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keyvault",
			Subsystem: "proxy",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestDurationVec); err != nil {
		return fmt.Errorf("failed to register requestDuration: %w", err)
	}

	proxiedTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvault",
			Subsystem: "proxy",
			Name:      "proxied_requests_total",
			Help:      "Total number of upstream calls proxied, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	if err := reg.Register(proxiedTotalVec); err != nil {
		return fmt.Errorf("failed to register proxiedTotal: %w", err)
	}

	proxiedCostVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvault",
			Subsystem: "proxy",
			Name:      "proxied_cost_usd_total",
			Help:      "Cumulative reconciled cost of proxied calls in USD",
		},
		[]string{"provider"},
	)
	if err := reg.Register(proxiedCostVec); err != nil {
		return fmt.Errorf("failed to register proxiedCost: %w", err)
	}

	proxyRejectionsVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvault",
			Subsystem: "proxy",
			Name:      "rejections_total",
			Help:      "Total number of proxied calls rejected before the upstream call",
		},
		[]string{"reason"},
	)
	if err := reg.Register(proxyRejectionsVec); err != nil {
		return fmt.Errorf("failed to register proxyRejections: %w", err)
	}

	budgetEventsVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvault",
			Subsystem: "proxy",
			Name:      "budget_events_total",
			Help:      "Budget threshold crossings, by limit kind and percentage",
		},
		[]string{"limit_kind", "percentage"},
	)
	if err := reg.Register(budgetEventsVec); err != nil {
		return fmt.Errorf("failed to register budgetEvents: %w", err)
	}

	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	proxiedTotal.Store(proxiedTotalVec)
	proxiedCost.Store(proxiedCostVec)
	proxyRejections.Store(proxyRejectionsVec)
	budgetEventsTotal.Store(budgetEventsVec)

	return nil
}

// RecordRequest increments the requests counter for the given method, path, and status code.
// The path should be normalized (e.g., "/admin/proxy-keys/:id" instead of a raw ID).
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordRequestDuration records the latency for a request in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordProxiedRequest increments the proxied-call counter.
// Outcomes: "ok", "upstream_error".
func RecordProxiedRequest(provider, outcome string) {
	if counter := proxiedTotal.Load(); counter != nil {
		counter.WithLabelValues(provider, outcome).Inc()
	}
}

// RecordProxiedCost adds the reconciled cost of one call.
func RecordProxiedCost(provider string, costUSD float64) {
	if counter := proxiedCost.Load(); counter != nil {
		counter.WithLabelValues(provider).Add(costUSD)
	}
}

// RecordProxyRejection increments the rejection counter for the given reason.
// Common reasons: "key_inactive", "origin_not_allowed", "insufficient_scope",
// "rate_limited", "budget_exceeded", "not_found".
func RecordProxyRejection(reason string) {
	if counter := proxyRejections.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// RecordBudgetEvent increments the threshold-crossing counter.
func RecordBudgetEvent(limitKind string, percentage int) {
	if counter := budgetEventsTotal.Load(); counter != nil {
		counter.WithLabelValues(limitKind, fmt.Sprintf("%d", percentage)).Inc()
	}
}

// Handler returns an HTTP handler for Prometheus metrics in text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
