// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates an AnswerMetrics instance with a custom registry.
// This avoids conflicts with the global Prometheus registry and allows
// parallel testing.
func newTestMetrics(t *testing.T) *AnswerMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: answersSubsystem,
			Name:      "served_total",
			Help:      "Total answers served by tier",
		},
		[]string{"source"},
	)

	answerDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: answersSubsystem,
			Name:      "duration_seconds",
			Help:      "End-to-end answer latency in seconds by tier",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"source"},
	)

	failuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: answersSubsystem,
			Name:      "failures_total",
			Help:      "Total failed answer requests by kind",
		},
		[]string{"kind"},
	)

	cacheEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: answersSubsystem,
			Name:      "cache_events_total",
			Help:      "Total shared answer cache events",
		},
		[]string{"event"},
	)

	generationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: answersSubsystem,
			Name:      "generations_total",
			Help:      "Total generation attempts by provider and status",
		},
		[]string{"provider", "status"},
	)

	qualityScores := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: answersSubsystem,
			Name:      "quality_scores",
			Help:      "Distribution of quality scores assigned to answers",
			Buckets:   []float64{0.4, 0.5, 0.6, 0.8, 1.0},
		},
	)

	feedbackReportsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: answersSubsystem,
			Name:      "feedback_reports_total",
			Help:      "Total negative feedback reports received",
		},
	)

	reg.MustRegister(
		answersTotal,
		answerDurationSeconds,
		failuresTotal,
		cacheEventsTotal,
		generationsTotal,
		qualityScores,
		feedbackReportsTotal,
	)

	return &AnswerMetrics{
		AnswersTotal:          answersTotal,
		AnswerDurationSeconds: answerDurationSeconds,
		FailuresTotal:         failuresTotal,
		CacheEventsTotal:      cacheEventsTotal,
		GenerationsTotal:      generationsTotal,
		QualityScores:         qualityScores,
		FeedbackReportsTotal:  feedbackReportsTotal,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

// Note: InitMetrics uses promauto which registers with the default Prometheus
// registry. This test must only run once per test binary execution since
// duplicate registration will panic.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()

	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}
	if DefaultMetrics == nil {
		t.Fatal("DefaultMetrics should be set after InitMetrics()")
	}
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}

	if result.AnswersTotal == nil {
		t.Error("AnswersTotal should not be nil")
	}
	if result.AnswerDurationSeconds == nil {
		t.Error("AnswerDurationSeconds should not be nil")
	}
	if result.FailuresTotal == nil {
		t.Error("FailuresTotal should not be nil")
	}
	if result.CacheEventsTotal == nil {
		t.Error("CacheEventsTotal should not be nil")
	}
	if result.GenerationsTotal == nil {
		t.Error("GenerationsTotal should not be nil")
	}
	if result.QualityScores == nil {
		t.Error("QualityScores should not be nil")
	}
	if result.FeedbackReportsTotal == nil {
		t.Error("FeedbackReportsTotal should not be nil")
	}

	// Verify metrics can be used
	result.RecordAnswer("cache", 0.003)
	result.RecordFailure(FailureProviderUnavailable)
	result.RecordCacheEvent(CacheHit)
	result.RecordGeneration("openai", true)
	result.RecordQuality(0.8)
	result.RecordFeedback()
}

// ============================================================================
// Constants Tests
// ============================================================================

func TestConstants(t *testing.T) {
	if metricsNamespace != "vidya" {
		t.Errorf("metricsNamespace = %q, want %q", metricsNamespace, "vidya")
	}
	if answersSubsystem != "answers" {
		t.Errorf("answersSubsystem = %q, want %q", answersSubsystem, "answers")
	}
}

func TestFailureKindConstants(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{FailureInvalidQuery, "invalid_query"},
		{FailureProviderUnavailable, "provider_unavailable"},
		{FailureInternal, "internal"},
	}

	for _, tt := range tests {
		if string(tt.kind) != tt.want {
			t.Errorf("FailureKind = %q, want %q", tt.kind, tt.want)
		}
	}
}

func TestCacheEventConstants(t *testing.T) {
	tests := []struct {
		event CacheEvent
		want  string
	}{
		{CacheHit, "hit"},
		{CacheMiss, "miss"},
		{CacheStore, "store"},
		{CacheInvalidated, "invalidated"},
	}

	for _, tt := range tests {
		if string(tt.event) != tt.want {
			t.Errorf("CacheEvent = %q, want %q", tt.event, tt.want)
		}
	}
}

// ============================================================================
// RecordAnswer Tests
// ============================================================================

func TestAnswerMetrics_RecordAnswer(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAnswer("cache", 0.002)
	m.RecordAnswer("cache", 0.004)
	m.RecordAnswer("generated", 3.5)

	cacheVal := testutil.ToFloat64(m.AnswersTotal.WithLabelValues("cache"))
	if cacheVal != 2 {
		t.Errorf("AnswersTotal[cache] = %f, want 2", cacheVal)
	}

	generatedVal := testutil.ToFloat64(m.AnswersTotal.WithLabelValues("generated"))
	if generatedVal != 1 {
		t.Errorf("AnswersTotal[generated] = %f, want 1", generatedVal)
	}

	count := testutil.CollectAndCount(m.AnswerDurationSeconds)
	if count == 0 {
		t.Error("Expected at least one duration metric to be collected")
	}
}

func TestAnswerMetrics_RecordAnswer_RefusalTier(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAnswer("refusal", 0.05)

	val := testutil.ToFloat64(m.AnswersTotal.WithLabelValues("refusal"))
	if val != 1 {
		t.Errorf("AnswersTotal[refusal] = %f, want 1", val)
	}
}

// ============================================================================
// RecordFailure Tests
// ============================================================================

func TestAnswerMetrics_RecordFailure(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFailure(FailureProviderUnavailable)
	m.RecordFailure(FailureProviderUnavailable)
	m.RecordFailure(FailureInvalidQuery)

	unavailVal := testutil.ToFloat64(m.FailuresTotal.WithLabelValues("provider_unavailable"))
	if unavailVal != 2 {
		t.Errorf("FailuresTotal[provider_unavailable] = %f, want 2", unavailVal)
	}

	invalidVal := testutil.ToFloat64(m.FailuresTotal.WithLabelValues("invalid_query"))
	if invalidVal != 1 {
		t.Errorf("FailuresTotal[invalid_query] = %f, want 1", invalidVal)
	}
}

// ============================================================================
// RecordCacheEvent Tests
// ============================================================================

func TestAnswerMetrics_RecordCacheEvent(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCacheEvent(CacheHit)
	m.RecordCacheEvent(CacheMiss)
	m.RecordCacheEvent(CacheMiss)
	m.RecordCacheEvent(CacheStore)
	m.RecordCacheEvent(CacheInvalidated)

	tests := []struct {
		event CacheEvent
		want  float64
	}{
		{CacheHit, 1},
		{CacheMiss, 2},
		{CacheStore, 1},
		{CacheInvalidated, 1},
	}

	for _, tt := range tests {
		val := testutil.ToFloat64(m.CacheEventsTotal.WithLabelValues(string(tt.event)))
		if val != tt.want {
			t.Errorf("CacheEventsTotal[%s] = %f, want %f", tt.event, val, tt.want)
		}
	}
}

// ============================================================================
// RecordGeneration Tests
// ============================================================================

func TestAnswerMetrics_RecordGeneration(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordGeneration("openai", true)
	m.RecordGeneration("openai", false)
	m.RecordGeneration("googleai", true)

	successVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("openai", "success"))
	if successVal != 1 {
		t.Errorf("GenerationsTotal[openai,success] = %f, want 1", successVal)
	}

	errorVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("openai", "error"))
	if errorVal != 1 {
		t.Errorf("GenerationsTotal[openai,error] = %f, want 1", errorVal)
	}

	googleVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("googleai", "success"))
	if googleVal != 1 {
		t.Errorf("GenerationsTotal[googleai,success] = %f, want 1", googleVal)
	}
}

// ============================================================================
// RecordQuality / RecordFeedback Tests
// ============================================================================

func TestAnswerMetrics_RecordQuality(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordQuality(1.0)
	m.RecordQuality(0.8)
	m.RecordQuality(0.4)

	count := testutil.CollectAndCount(m.QualityScores)
	if count == 0 {
		t.Error("Expected quality score metric to be collected")
	}
}

func TestAnswerMetrics_RecordFeedback(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFeedback()
	m.RecordFeedback()

	val := testutil.ToFloat64(m.FeedbackReportsTotal)
	if val != 2 {
		t.Errorf("FeedbackReportsTotal = %f, want 2", val)
	}
}

// ============================================================================
// Scenario Tests
// ============================================================================

func TestAnswerMetrics_GeneratedAnswerScenario(t *testing.T) {
	m := newTestMetrics(t)

	// Simulate a full generated-answer request
	m.RecordCacheEvent(CacheMiss)
	m.RecordGeneration("openai", false)
	m.RecordGeneration("googleai", true)
	m.RecordQuality(0.8)
	m.RecordCacheEvent(CacheStore)
	m.RecordAnswer("generated", 4.2)

	missVal := testutil.ToFloat64(m.CacheEventsTotal.WithLabelValues("miss"))
	if missVal != 1 {
		t.Errorf("CacheEventsTotal[miss] = %f, want 1", missVal)
	}

	storeVal := testutil.ToFloat64(m.CacheEventsTotal.WithLabelValues("store"))
	if storeVal != 1 {
		t.Errorf("CacheEventsTotal[store] = %f, want 1", storeVal)
	}

	servedVal := testutil.ToFloat64(m.AnswersTotal.WithLabelValues("generated"))
	if servedVal != 1 {
		t.Errorf("AnswersTotal[generated] = %f, want 1", servedVal)
	}
}

func TestAnswerMetrics_ConcurrentSafety(t *testing.T) {
	m := newTestMetrics(t)

	done := make(chan bool, 60)

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordAnswer("cache", 0.001)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordCacheEvent(CacheHit)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordGeneration("openai", true)
			done <- true
		}()
	}

	for i := 0; i < 60; i++ {
		<-done
	}

	cacheVal := testutil.ToFloat64(m.AnswersTotal.WithLabelValues("cache"))
	if cacheVal != 20 {
		t.Errorf("AnswersTotal[cache] = %f, want 20", cacheVal)
	}

	hitVal := testutil.ToFloat64(m.CacheEventsTotal.WithLabelValues("hit"))
	if hitVal != 20 {
		t.Errorf("CacheEventsTotal[hit] = %f, want 20", hitVal)
	}
}
