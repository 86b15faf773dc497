// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus instrumentation for preload activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for preload request metrics.
const (
	OutcomeResolved = "resolved"
	OutcomeRejected = "rejected"
)

// Bootstrap outcome labels.
const (
	BootstrapIssued  = "issued"
	BootstrapSkipped = "skipped"
	BootstrapError   = "error"
)

// Collector records preload activity.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bootstrapTotal  *prometheus.CounterVec
	cacheHitsTotal  *prometheus.CounterVec
}

// NewCollector creates a Collector with its own Prometheus registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "preflight_requests_total",
			Help: "Preload requests by logical key and outcome.",
		}, []string{"key", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "preflight_request_duration_seconds",
			Help:    "Preload request duration by logical key.",
			Buckets: prometheus.DefBuckets,
		}, []string{"key"}),
		bootstrapTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "preflight_bootstrap_total",
			Help: "Bootstrap invocations by outcome.",
		}, []string{"outcome"}),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "preflight_cache_hits_total",
			Help: "Snapshot cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(c.requestsTotal, c.requestDuration, c.bootstrapTotal, c.cacheHitsTotal)
	return c
}

// ObserveRequest records one settled preload request.
func (c *Collector) ObserveRequest(key, outcome string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(key, outcome).Inc()
	c.requestDuration.WithLabelValues(key).Observe(duration.Seconds())
}

// ObserveBootstrap records one bootstrap invocation.
func (c *Collector) ObserveBootstrap(outcome string) {
	c.bootstrapTotal.WithLabelValues(outcome).Inc()
}

// ObserveCache records one snapshot cache lookup ("hit", "miss", or "stale").
func (c *Collector) ObserveCache(result string) {
	c.cacheHitsTotal.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus scrape handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry for tests.
func (c *Collector) Gather() prometheus.Gatherer {
	return c.registry
}
