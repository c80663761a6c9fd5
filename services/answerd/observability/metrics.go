// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the answer
// service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the answer
// pipeline. Metrics include:
//   - Answer counters by serving tier (memory, cache, generated, refusal)
//   - End-to-end latency histograms by tier
//   - Cache event counters (hit, miss, store, invalidated)
//   - Generation counters by provider and status
//   - Quality score distribution
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
const metricsNamespace = "vidya"

// Subsystem for answer pipeline metrics
const answersSubsystem = "answers"

// AnswerMetrics holds all Prometheus metrics for the answer pipeline.
//
// # Description
//
// Provides counters and histograms for monitoring answer serving, cache
// behavior, and generation fallback. Initialize once at startup via
// InitMetrics().
//
// # Fields
//
//   - AnswersTotal: Counter of served answers by tier
//   - AnswerDurationSeconds: Histogram of end-to-end latency by tier
//   - FailuresTotal: Counter of failed requests by kind
//   - CacheEventsTotal: Counter of cache events
//   - GenerationsTotal: Counter of generation attempts by provider and status
//   - QualityScores: Histogram of quality scores assigned to answers
//   - FeedbackReportsTotal: Counter of negative feedback reports received
//
// # Thread Safety
//
// All operations are thread-safe.
type AnswerMetrics struct {
	// AnswersTotal counts served answers by tier.
	// Labels: source (memory, cache, generated, refusal)
	AnswersTotal *prometheus.CounterVec

	// AnswerDurationSeconds measures end-to-end answer latency.
	// Labels: source (memory, cache, generated, refusal)
	AnswerDurationSeconds *prometheus.HistogramVec

	// FailuresTotal counts failed requests by kind.
	// Labels: kind (invalid_query, provider_unavailable, internal)
	FailuresTotal *prometheus.CounterVec

	// CacheEventsTotal counts shared-cache events.
	// Labels: event (hit, miss, store, invalidated)
	CacheEventsTotal *prometheus.CounterVec

	// GenerationsTotal counts generation attempts by provider and status.
	// Labels: provider (openai, anthropic, googleai, ollama, fallback),
	// status (success, error)
	GenerationsTotal *prometheus.CounterVec

	// QualityScores tracks the distribution of assigned quality scores.
	QualityScores prometheus.Histogram

	// FeedbackReportsTotal counts negative feedback reports received.
	FeedbackReportsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of AnswerMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AnswerMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup, after the Prometheus registry is available.
//
// # Outputs
//
//   - *AnswerMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *AnswerMetrics {
	DefaultMetrics = &AnswerMetrics{
		AnswersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "served_total",
				Help:      "Total answers served by tier",
			},
			[]string{"source"},
		),

		AnswerDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end answer latency in seconds by tier",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"source"},
		),

		FailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "failures_total",
				Help:      "Total failed answer requests by kind",
			},
			[]string{"kind"},
		),

		CacheEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "cache_events_total",
				Help:      "Total shared answer cache events",
			},
			[]string{"event"},
		),

		GenerationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "generations_total",
				Help:      "Total generation attempts by provider and status",
			},
			[]string{"provider", "status"},
		),

		QualityScores: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "quality_scores",
				Help:      "Distribution of quality scores assigned to answers",
				Buckets:   []float64{0.4, 0.5, 0.6, 0.8, 1.0},
			},
		),

		FeedbackReportsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: answersSubsystem,
				Name:      "feedback_reports_total",
				Help:      "Total negative feedback reports received",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Failure Kinds
// =============================================================================

// FailureKind represents a categorized failure type for metrics.
type FailureKind string

const (
	// FailureInvalidQuery indicates request validation failure.
	FailureInvalidQuery FailureKind = "invalid_query"

	// FailureProviderUnavailable indicates every generation provider failed.
	FailureProviderUnavailable FailureKind = "provider_unavailable"

	// FailureInternal indicates an internal server error.
	FailureInternal FailureKind = "internal"
)

// =============================================================================
// Cache Events
// =============================================================================

// CacheEvent represents a shared-cache event for metrics labeling.
type CacheEvent string

const (
	// CacheHit indicates a cache entry was served.
	CacheHit CacheEvent = "hit"

	// CacheMiss indicates no servable cache entry was found.
	CacheMiss CacheEvent = "miss"

	// CacheStore indicates a fresh answer was written through.
	CacheStore CacheEvent = "store"

	// CacheInvalidated indicates crowd feedback invalidated an entry.
	CacheInvalidated CacheEvent = "invalidated"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordAnswer records a served answer.
//
// # Inputs
//
//   - source: The serving tier (memory, cache, generated, refusal).
//   - seconds: End-to-end latency in seconds.
func (m *AnswerMetrics) RecordAnswer(source string, seconds float64) {
	m.AnswersTotal.WithLabelValues(source).Inc()
	m.AnswerDurationSeconds.WithLabelValues(source).Observe(seconds)
}

// RecordFailure records a failed request.
//
// # Inputs
//
//   - kind: The failure category.
func (m *AnswerMetrics) RecordFailure(kind FailureKind) {
	m.FailuresTotal.WithLabelValues(string(kind)).Inc()
}

// RecordCacheEvent records a shared-cache event.
//
// # Inputs
//
//   - event: The cache event type.
func (m *AnswerMetrics) RecordCacheEvent(event CacheEvent) {
	m.CacheEventsTotal.WithLabelValues(string(event)).Inc()
}

// RecordGeneration records one generation attempt.
//
// # Inputs
//
//   - provider: The provider that handled the attempt.
//   - success: Whether the attempt produced an answer.
func (m *AnswerMetrics) RecordGeneration(provider string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.GenerationsTotal.WithLabelValues(provider, status).Inc()
}

// RecordQuality records the quality score assigned to an answer.
//
// # Inputs
//
//   - score: The assigned quality score in [0,1].
func (m *AnswerMetrics) RecordQuality(score float64) {
	m.QualityScores.Observe(score)
}

// RecordFeedback increments the feedback report counter.
func (m *AnswerMetrics) RecordFeedback() {
	m.FeedbackReportsTotal.Inc()
}
