// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the
// orchestrator.
//
// # Description
//
// Metrics cover the intervention lifecycle (proposals, state
// transitions, execution latency), circuit breaker health, and the
// audit buffer backlog. Everything registers against an explicit
// registry owned by the Metrics value, so independent service
// instances (one per test) never collide on registration.
//
// # Integration
//
// Exposed via the /metrics endpoint. Use with Prometheus + Grafana for
// dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "orgflow"

const orchestratorSubsystem = "orchestrator"

// Metrics holds all Prometheus metrics for the orchestrator service.
type Metrics struct {
	registry *prometheus.Registry

	// ProposalsTotal counts proposed interventions.
	// Labels: type, impact_level
	ProposalsTotal *prometheus.CounterVec

	// TransitionsTotal counts intervention state transitions.
	// Labels: to_status
	TransitionsTotal *prometheus.CounterVec

	// ExecutionDurationSeconds measures end-to-end execution latency,
	// including breaker retries.
	// Labels: outcome (executed, failed)
	ExecutionDurationSeconds *prometheus.HistogramVec

	// PendingApprovals tracks interventions waiting on a human.
	PendingApprovals prometheus.Gauge

	// BreakerState reports each dependency's breaker state
	// (0 closed, 1 half-open, 2 open).
	// Labels: dependency
	BreakerState *prometheus.GaugeVec

	// AuditBufferedEntries tracks audit entries awaiting durable write.
	// Non-zero means the audit backend is (or recently was) unhealthy.
	AuditBufferedEntries prometheus.Gauge
}

// NewMetrics creates and registers all orchestrator metrics on a fresh
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ProposalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "proposals_total",
				Help:      "Total proposed interventions by type and impact level",
			},
			[]string{"type", "impact_level"},
		),

		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "transitions_total",
				Help:      "Total intervention state transitions by destination status",
			},
			[]string{"to_status"},
		),

		ExecutionDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "execution_duration_seconds",
				Help:      "End-to-end execution latency including breaker retries",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),

		PendingApprovals: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "pending_approvals",
				Help:      "Interventions currently awaiting human approval",
			},
		),

		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "breaker_state",
				Help:      "Circuit breaker state per dependency (0 closed, 1 half-open, 2 open)",
			},
			[]string{"dependency"},
		),

		AuditBufferedEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "audit_buffered_entries",
				Help:      "Audit entries buffered locally awaiting a durable write",
			},
		),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordProposal records a newly proposed intervention.
func (m *Metrics) RecordProposal(interventionType, impactLevel string) {
	m.ProposalsTotal.WithLabelValues(interventionType, impactLevel).Inc()
}

// RecordTransition records a state transition by destination status.
func (m *Metrics) RecordTransition(toStatus string) {
	m.TransitionsTotal.WithLabelValues(toStatus).Inc()
}

// RecordExecutionDuration records how long an execution took.
func (m *Metrics) RecordExecutionDuration(outcome string, seconds float64) {
	m.ExecutionDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}
