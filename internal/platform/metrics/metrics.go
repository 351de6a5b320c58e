// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package metrics provides Prometheus instrumentation for the session core.

It counts the outcomes that matter for diagnosing a degraded session: how a
profile resolution was satisfied (store row, fresh insert, synthesized
fallback, absent), whether presence writes land, and how often the auth
authority pushes state changes.

Architecture:

  - Collector: Registers and owns all counters; injected by constructor.
  - Handler: Exposes the standard /metrics scrape endpoint via promhttp.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// # Outcome Labels

// Resolution outcomes recorded per resolver call.
const (
	OutcomePersisted   = "persisted"   // direct store hit
	OutcomeCreated     = "created"     // insert-on-missing succeeded
	OutcomeConverged   = "converged"   // duplicate key, another caller won
	OutcomeSynthesized = "synthesized" // store unreachable, in-memory fallback
	OutcomeAbsent      = "absent"      // no identity available at all
)

// # Collector

// Collector owns the Prometheus instruments for the session core.
type Collector struct {
	resolutions      *prometheus.CounterVec
	presenceWrites   *prometheus.CounterVec
	authStateChanges prometheus.Counter
}

// NewCollector creates a new [Collector] and registers its instruments with
// the given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puconnect_profile_resolutions_total",
			Help: "Profile resolutions by outcome.",
		}, []string{"outcome"}),
		presenceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "puconnect_presence_writes_total",
			Help: "Presence writes by result (ok/error).",
		}, []string{"result"}),
		authStateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "puconnect_auth_state_changes_total",
			Help: "Auth-state notifications consumed by the session controller.",
		}),
	}

	reg.MustRegister(
		c.resolutions,
		c.presenceWrites,
		c.authStateChanges,
	)

	return c
}

// RecordResolution counts one profile resolution with the given outcome label.
func (c *Collector) RecordResolution(outcome string) {
	c.resolutions.WithLabelValues(outcome).Inc()
}

// RecordPresenceWrite counts one presence write.
func (c *Collector) RecordPresenceWrite(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.presenceWrites.WithLabelValues(result).Inc()
}

// RecordAuthStateChange counts one consumed auth-state notification.
func (c *Collector) RecordAuthStateChange() {
	c.authStateChanges.Inc()
}

// # Scrape Endpoint

// Handler returns the HTTP handler serving the Prometheus scrape format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
