// Package metrics exports engine, notification, ledger and HTTP telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "funds_tracker"

// Collectors implements the observer interfaces of the engine, the notification dispatcher, the reconciler and
// the HTTP middleware.
type Collectors struct {
	operations    *prometheus.CounterVec
	retries       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	stalePending  prometheus.Gauge
	requests      *prometheus.HistogramVec
}

// New registers every collector on reg; a nil reg uses the default registerer
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_operations_total",
			Help:      "Subscribe and cancel calls by outcome.",
		}, []string{"operation", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_retries_total",
			Help:      "Attempts restarted after a conditional write conflict.",
		}, []string{"operation"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
		stalePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_stale_pending_entries",
			Help:      "Ledger entries still Pending past the reconcile threshold.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	for _, collector := range []prometheus.Collector{c.operations, c.retries, c.notifications, c.stalePending, c.requests} {
		if err := reg.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

func (c *Collectors) ObserveOperation(op, outcome string) {
	c.operations.WithLabelValues(op, outcome).Inc()
}

func (c *Collectors) ObserveRetry(op string) {
	c.retries.WithLabelValues(op).Inc()
}

func (c *Collectors) ObserveNotification(channel, outcome string) {
	c.notifications.WithLabelValues(channel, outcome).Inc()
}

func (c *Collectors) SetStalePending(n int) {
	c.stalePending.Set(float64(n))
}

func (c *Collectors) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
