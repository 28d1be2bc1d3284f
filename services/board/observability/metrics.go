// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the board service.
//
// # Description
//
// Metrics cover the mutation pipeline end to end:
//   - Mutation counters (by operation and outcome)
//   - Conflict detection and resolution counters (by strategy)
//   - Realtime fan-out counters and the connected-client gauge
//   - Retention purge counter
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "boardsync"

// Subsystem for board mutation metrics
const boardSubsystem = "board"

// BoardMetrics holds all Prometheus metrics for board operations.
//
// # Description
//
// Provides counters and gauges for monitoring task mutations, conflict
// traffic, and websocket fan-out. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type BoardMetrics struct {
	// MutationsTotal counts task mutations by operation and outcome.
	// Labels: operation (create, update, delete, bulk_update, reassign,
	// smart_assign, resolve_conflict), status (success, conflict, error)
	MutationsTotal *prometheus.CounterVec

	// ConflictsDetectedTotal counts version-guard rejections.
	ConflictsDetectedTotal prometheus.Counter

	// ConflictsResolvedTotal counts resolutions by strategy.
	// Labels: strategy (current, incoming, merge)
	ConflictsResolvedTotal *prometheus.CounterVec

	// BroadcastEventsTotal counts realtime events fanned out to clients.
	// Labels: event (taskCreated, taskUpdated, ...)
	BroadcastEventsTotal *prometheus.CounterVec

	// ConnectedClients tracks currently connected websocket clients.
	ConnectedClients prometheus.Gauge

	// ActivitiesPurgedTotal counts activity entries removed by retention.
	ActivitiesPurgedTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of BoardMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *BoardMetrics

// InitMetrics initializes the default metrics instance against the
// default Prometheus registry.
//
// # Description
//
// Creates and registers all board metrics. Call once at application
// startup; calling it twice panics on duplicate registration.
//
// # Outputs
//
//   - *BoardMetrics: The initialized metrics instance.
func InitMetrics() *BoardMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates a BoardMetrics registered against reg. Tests use
// this with a private registry to stay isolated from the default one.
func NewMetrics(reg prometheus.Registerer) *BoardMetrics {
	factory := promauto.With(reg)

	return &BoardMetrics{
		MutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: boardSubsystem,
				Name:      "mutations_total",
				Help:      "Total task mutations by operation and outcome",
			},
			[]string{"operation", "status"},
		),

		ConflictsDetectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: boardSubsystem,
				Name:      "conflicts_detected_total",
				Help:      "Total updates rejected by the version guard",
			},
		),

		ConflictsResolvedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: boardSubsystem,
				Name:      "conflicts_resolved_total",
				Help:      "Total conflicts resolved by strategy",
			},
			[]string{"strategy"},
		),

		BroadcastEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: boardSubsystem,
				Name:      "broadcast_events_total",
				Help:      "Total realtime events broadcast to board sessions",
			},
			[]string{"event"},
		),

		ConnectedClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: boardSubsystem,
				Name:      "connected_clients",
				Help:      "Number of currently connected websocket clients",
			},
		),

		ActivitiesPurgedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: boardSubsystem,
				Name:      "activities_purged_total",
				Help:      "Total activity entries removed by the retention purge",
			},
		),
	}
}

// =============================================================================
// Operation Names
// =============================================================================

// Operation labels a mutation for metrics.
type Operation string

const (
	OpCreate          Operation = "create"
	OpUpdate          Operation = "update"
	OpDelete          Operation = "delete"
	OpBulkUpdate      Operation = "bulk_update"
	OpReassign        Operation = "reassign"
	OpSmartAssign     Operation = "smart_assign"
	OpResolveConflict Operation = "resolve_conflict"
)

// =============================================================================
// Helper Methods
// =============================================================================

// All helpers are nil-receiver safe so library code can record metrics
// unconditionally whether or not InitMetrics ran (tests, embedded use).

// RecordMutation records a completed mutation attempt.
//
// # Inputs
//
//   - op: The mutation operation.
//   - status: Outcome label (success, conflict, error).
func (m *BoardMetrics) RecordMutation(op Operation, status string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(string(op), status).Inc()
}

// RecordConflictDetected records one version-guard rejection.
func (m *BoardMetrics) RecordConflictDetected() {
	if m == nil {
		return
	}
	m.ConflictsDetectedTotal.Inc()
}

// RecordConflictResolved records one resolved conflict.
//
// # Inputs
//
//   - strategy: The resolution strategy applied.
func (m *BoardMetrics) RecordConflictResolved(strategy string) {
	if m == nil {
		return
	}
	m.ConflictsResolvedTotal.WithLabelValues(strategy).Inc()
}

// RecordBroadcast records one event fanned out to a session.
//
// # Inputs
//
//   - event: The realtime event name.
func (m *BoardMetrics) RecordBroadcast(event string) {
	if m == nil {
		return
	}
	m.BroadcastEventsTotal.WithLabelValues(event).Inc()
}

// ClientConnected increments the connected-client gauge.
func (m *BoardMetrics) ClientConnected() {
	if m == nil {
		return
	}
	m.ConnectedClients.Inc()
}

// ClientDisconnected decrements the connected-client gauge.
func (m *BoardMetrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.ConnectedClients.Dec()
}

// RecordActivitiesPurged records entries removed by a retention run.
//
// # Inputs
//
//   - n: Number of entries purged.
func (m *BoardMetrics) RecordActivitiesPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ActivitiesPurgedTotal.Add(float64(n))
}
