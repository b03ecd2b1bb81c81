// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics defines the Prometheus collectors of the PronounDB API.

Collectors live on a [Collector] value rather than in package globals so that
tests can register a fresh set on their own registry.
*/
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pronoundb"

// Lookup methods.
const (
	MethodSingle = "single"
	MethodBulk   = "bulk"
)

// Collector groups every metric exported by the service.
type Collector struct {
	LookupRequests  *prometheus.CounterVec
	LookupIDs       *prometheus.CounterVec
	LookupHits      *prometheus.CounterVec
	LookupBulkSize  *prometheus.HistogramVec
	APICallVersion  *prometheus.CounterVec
	DatabaseLatency *prometheus.SummaryVec
	OAuthCallbacks  *prometheus.CounterVec
}

// New creates the collectors and registers them on registerer.
func New(registerer prometheus.Registerer) (*Collector, error) {
	collector := &Collector{
		LookupRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "lookup_requests_total", Help: "Lookup API calls by platform and method."},
			[]string{"platform", "method"},
		),
		LookupIDs: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "lookup_ids_total", Help: "Account ids queried through the lookup API."},
			[]string{"platform"},
		),
		LookupHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "lookup_hits_total", Help: "Account ids that resolved to a user."},
			[]string{"platform"},
		),
		LookupBulkSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lookup_bulk_size",
				Help:      "Number of ids per bulk lookup.",
				Buckets:   []float64{2, 5, 10, 20, 30, 40, 50},
			},
			[]string{"platform"},
		),
		APICallVersion: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "api_calls_total", Help: "Public API calls by API version."},
			[]string{"version"},
		),
		DatabaseLatency: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  namespace,
				Name:       "database_latency_seconds",
				Help:       "Database query latency by query type and operation.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
				MaxAge:     10 * time.Minute,
			},
			[]string{"type", "op"},
		),
		OAuthCallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "oauth_callbacks_total", Help: "OAuth callbacks by platform and outcome."},
			[]string{"platform", "result"},
		),
	}

	for _, c := range []prometheus.Collector{
		collector.LookupRequests,
		collector.LookupIDs,
		collector.LookupHits,
		collector.LookupBulkSize,
		collector.APICallVersion,
		collector.DatabaseLatency,
		collector.OAuthCallbacks,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return collector, nil
}

// RecordLookup accounts for one lookup of requested distinct ids, of which hits resolved.
func (collector *Collector) RecordLookup(platform string, requested, hits int) {
	method := MethodBulk
	if requested == 1 {
		method = MethodSingle
	}

	collector.LookupRequests.WithLabelValues(platform, method).Inc()
	collector.LookupIDs.WithLabelValues(platform).Add(float64(requested))
	collector.LookupHits.WithLabelValues(platform).Add(float64(hits))
	if method == MethodBulk {
		collector.LookupBulkSize.WithLabelValues(platform).Observe(float64(requested))
	}
}

// RecordAPICall counts a call to the given public API version.
func (collector *Collector) RecordAPICall(version int) {
	collector.APICallVersion.WithLabelValues(strconv.Itoa(version)).Inc()
}

// RecordOAuthCallback counts a finished OAuth callback. result is "ok" or a flash code.
func (collector *Collector) RecordOAuthCallback(platform, result string) {
	collector.OAuthCallbacks.WithLabelValues(platform, result).Inc()
}

// StartQuery starts timing a database query; call the returned func when done.
//
//	defer collector.StartQuery("read", "lookup_pronouns")()
func (collector *Collector) StartQuery(kind, op string) func() {
	timer := prometheus.NewTimer(collector.DatabaseLatency.WithLabelValues(kind, op))
	return func() { timer.ObserveDuration() }
}
