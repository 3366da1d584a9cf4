// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for workflow runs and
// their progress streams.
//
// # Description
//
// Metrics include:
//   - Run counters and duration histograms by final status
//   - Phase entry counters
//   - Plan size and per-file rewrite outcomes
//   - Active stream gauge, heartbeats and client disconnects
//
// Metrics are exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ishaan-arora-1/not-cursor/services/workflow"
)

const metricsNamespace = "notcursor"

const (
	workflowSubsystem  = "workflow"
	streamingSubsystem = "streaming"
)

// WorkflowMetrics holds all Prometheus collectors of the service. It
// implements workflow.Metrics.
type WorkflowMetrics struct {
	// RunsTotal counts finished runs. Labels: status (succeeded, failed)
	RunsTotal *prometheus.CounterVec

	// RunsInFlight is 1 while a run is active.
	RunsInFlight prometheus.Gauge

	// RunDurationSeconds measures submission to terminator. Labels: status
	RunDurationSeconds *prometheus.HistogramVec

	// PhaseEntriesTotal counts phase entries. Labels: phase
	PhaseEntriesTotal *prometheus.CounterVec

	// PlanEntries observes the size of every extracted plan.
	PlanEntries prometheus.Histogram

	// FilesTotal counts plan entries by outcome. Labels: outcome (modified, no_change, gated)
	FilesTotal *prometheus.CounterVec

	// RequestsTotal counts API requests. Labels: endpoint, status (HTTP code)
	RequestsTotal *prometheus.CounterVec

	// ActiveStreams tracks connected progress observers.
	ActiveStreams prometheus.Gauge

	// HeartbeatsTotal counts heartbeat events sent to observers.
	HeartbeatsTotal prometheus.Counter

	// ClientDisconnectsTotal counts observers that left before done.
	ClientDisconnectsTotal prometheus.Counter
}

// NewWorkflowMetrics creates and registers all collectors on reg. A nil reg
// uses the Prometheus default registerer.
//
// # Limitations
//
//   - Panics if called twice with the same registerer (duplicate registration).
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &WorkflowMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: workflowSubsystem,
				Name:      "runs_total",
				Help:      "Total finished workflow runs by status",
			},
			[]string{"status"},
		),

		RunsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: workflowSubsystem,
				Name:      "runs_in_flight",
				Help:      "Workflow runs currently executing",
			},
		),

		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: workflowSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Workflow run duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),

		PhaseEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: workflowSubsystem,
				Name:      "phase_entries_total",
				Help:      "Total phase entries by phase",
			},
			[]string{"phase"},
		),

		PlanEntries: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: workflowSubsystem,
				Name:      "plan_entries",
				Help:      "Number of entries per extracted plan",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),

		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: workflowSubsystem,
				Name:      "files_total",
				Help:      "Plan entries processed by outcome",
			},
			[]string{"outcome"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "requests_total",
				Help:      "Total API requests by endpoint and status code",
			},
			[]string{"endpoint", "status"},
		),

		ActiveStreams: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently connected progress streams",
			},
		),

		HeartbeatsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "heartbeats_total",
				Help:      "Total heartbeat events sent",
			},
		),

		ClientDisconnectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total observers that disconnected before the run finished",
			},
		),
	}
}

// =============================================================================
// workflow.Metrics
// =============================================================================

func (m *WorkflowMetrics) RunStarted() {
	m.RunsInFlight.Inc()
}

func (m *WorkflowMetrics) RunFinished(status string, duration time.Duration) {
	m.RunsInFlight.Dec()
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *WorkflowMetrics) PhaseEntered(phase workflow.Phase) {
	m.PhaseEntriesTotal.WithLabelValues(string(phase)).Inc()
}

func (m *WorkflowMetrics) PlanSize(entries int) {
	m.PlanEntries.Observe(float64(entries))
}

func (m *WorkflowMetrics) FileRewritten(outcome string) {
	m.FilesTotal.WithLabelValues(outcome).Inc()
}

// =============================================================================
// Stream helpers
// =============================================================================

// Endpoint labels API requests.
type Endpoint string

const (
	EndpointExecute Endpoint = "execute"
	EndpointStream  Endpoint = "stream"
	EndpointRuns    Endpoint = "runs"
)

// RecordRequest counts one API response.
func (m *WorkflowMetrics) RecordRequest(endpoint Endpoint, status int) {
	m.RequestsTotal.WithLabelValues(string(endpoint), statusLabel(status)).Inc()
}

func (m *WorkflowMetrics) StreamStarted() { m.ActiveStreams.Inc() }

func (m *WorkflowMetrics) StreamEnded() { m.ActiveStreams.Dec() }

func (m *WorkflowMetrics) RecordHeartbeat() { m.HeartbeatsTotal.Inc() }

func (m *WorkflowMetrics) RecordClientDisconnect() { m.ClientDisconnectsTotal.Inc() }

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

var _ workflow.Metrics = (*WorkflowMetrics)(nil)
