// Copyright (c) 2026 John Earle
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

// Package metrics exposes Prometheus counters and histograms for the contact
// pipeline on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	deliveryAttempts *prometheus.CounterVec
	rateLimitEntries prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers the pipeline metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_requests_total",
				Help: "Contact requests by final outcome",
			},
			[]string{"outcome"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contact_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		deliveryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_delivery_attempts_total",
				Help: "Delivery transport attempts by provider and result",
			},
			[]string{"provider", "result"},
		),

		rateLimitEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contact_ratelimit_entries",
				Help: "Source addresses tracked by the in-memory rate limiter",
			},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.stageDuration,
		m.deliveryAttempts,
		m.rateLimitEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRequest counts one finished request. outcome is "success" or the
// failure kind.
func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveDeliveryAttempt implements mail.AttemptObserver.
func (m *Metrics) ObserveDeliveryAttempt(provider string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.deliveryAttempts.WithLabelValues(provider, result).Inc()
}

// SetRateLimitEntries reports the in-memory limiter's size.
func (m *Metrics) SetRateLimitEntries(n int) {
	if m == nil {
		return
	}
	m.rateLimitEntries.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
