// Package metrics exports the API client activity as prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/masomo-admin/core/apiclient"
)

const namespace = "masomo_admin"

// Collector records dispatcher events. It is the apiclient.Observer of the application.
type Collector struct {
	registry prometheus.Gatherer

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	failures *prometheus.CounterVec
	breakers *prometheus.GaugeVec
	trips    *prometheus.CounterVec
}

var _ apiclient.Observer = (*Collector)(nil)

// NewCollector registers the client metrics with reg. A nil reg uses a new private registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "API requests by resource type and answer source (network, mock or fallback)",
		}, []string{"resource", "source"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time taken to answer API requests",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"resource"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_failures_total",
			Help:      "Infrastructure failures (server error, timeout, no response) by resource type",
		}, []string{"resource", "kind", "status"}),
		breakers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_open",
			Help:      "1 while the resource type is served from the fallback",
		}, []string{"resource"}),
		trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_trips_total",
			Help:      "Number of times the breaker of a resource type opened",
		}, []string{"resource"}),
	}
	reg.MustRegister(c.requests, c.latency, c.failures, c.breakers, c.trips)
	return c
}

func (c *Collector) ObserveRequest(resourceType string, source apiclient.Source, duration time.Duration) {
	resource := label(resourceType)
	c.requests.WithLabelValues(resource, source.String()).Inc()
	c.latency.WithLabelValues(resource).Observe(duration.Seconds())
}

func (c *Collector) ObserveFailure(resourceType, kind string, status int) {
	c.failures.WithLabelValues(label(resourceType), kind, strconv.Itoa(status)).Inc()
}

func (c *Collector) ObserveBreaker(resourceType string, open bool) {
	resource := label(resourceType)
	if open {
		c.breakers.WithLabelValues(resource).Set(1)
		c.trips.WithLabelValues(resource).Inc()
		return
	}
	c.breakers.WithLabelValues(resource).Set(0)
}

// Handler serves the collected metrics in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// untracked paths (auth, health...) have no resource type
func label(resourceType string) string {
	if resourceType == "" {
		return "none"
	}
	return resourceType
}
