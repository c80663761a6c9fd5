// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/VidyaLabs/VidyaServe/services/answerd/cache"
	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
	"github.com/VidyaLabs/VidyaServe/services/answerd/feedback"
	"github.com/VidyaLabs/VidyaServe/services/answerd/memory"
	"github.com/VidyaLabs/VidyaServe/services/answerd/pipeline"
	"github.com/VidyaLabs/VidyaServe/services/answerd/quality"
	"github.com/VidyaLabs/VidyaServe/services/llm"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// mockLLMClient is a minimal mock for llm.LLMClient
type mockLLMClient struct{}

func (m *mockLLMClient) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return "mock response", nil
}

func (m *mockLLMClient) Chat(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams) (string, error) {
	return "mock chat response", nil
}

func (m *mockLLMClient) Name() string { return "mock" }

func newTestService(t *testing.T) *pipeline.Service {
	t.Helper()
	scorer, err := quality.NewScorer(quality.DefaultConfig())
	if err != nil {
		t.Fatalf("scorer construction failed: %v", err)
	}
	svc, err := pipeline.NewService(nil, nil, nil, &mockLLMClient{}, scorer, pipeline.DefaultConfig())
	if err != nil {
		t.Fatalf("service construction failed: %v", err)
	}
	return svc
}

func hasRoute(routes gin.RoutesInfo, method, path string) bool {
	for _, r := range routes {
		if r.Method == method && r.Path == path {
			return true
		}
	}
	return false
}

// ============================================================================
// SetupRoutes Tests - Without Optional Stores
// ============================================================================

func TestSetupRoutes_WithoutStores(t *testing.T) {
	router := gin.New()

	// Should not panic when the cache and memory store are nil
	SetupRoutes(router, newTestService(t), nil, nil)

	coreRoutes := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/ask"},
	}
	routes := router.Routes()
	for _, expected := range coreRoutes {
		if !hasRoute(routes, expected.method, expected.path) {
			t.Errorf("Expected route %s %s not found", expected.method, expected.path)
		}
	}

	// These routes should NOT be registered without their backing stores
	storeRoutes := []struct {
		method string
		path   string
	}{
		{"POST", "/v1/feedback"},
		{"POST", "/v1/cache/purge"},
		{"GET", "/v1/cache/stats"},
		{"POST", "/v1/memory"},
		{"GET", "/v1/memory"},
		{"DELETE", "/v1/memory"},
	}
	for _, notExpected := range storeRoutes {
		if hasRoute(routes, notExpected.method, notExpected.path) {
			t.Errorf("Route %s %s should NOT be registered without its store", notExpected.method, notExpected.path)
		}
	}
}

// ============================================================================
// SetupRoutes Tests - With All Stores
// ============================================================================

func TestSetupRoutes_WithAllStores(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	answerCache, err := cache.NewAnswerCache(rdb, feedback.NewLedger(rdb), cache.DefaultConfig())
	if err != nil {
		t.Fatalf("cache construction failed: %v", err)
	}
	store, err := memory.NewStore(memory.InMemoryStoreConfig())
	if err != nil {
		t.Fatalf("memory store construction failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	router := gin.New()
	SetupRoutes(router, newTestService(t), answerCache, store)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/ask"},
		{"POST", "/v1/feedback"},
		{"POST", "/v1/cache/purge"},
		{"GET", "/v1/cache/stats"},
		{"POST", "/v1/memory"},
		{"GET", "/v1/memory"},
		{"DELETE", "/v1/memory"},
	}
	routes := router.Routes()
	for _, e := range expected {
		if !hasRoute(routes, e.method, e.path) {
			t.Errorf("Expected route %s %s not found", e.method, e.path)
		}
	}
}

// ============================================================================
// Route Handler Tests
// ============================================================================

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newTestService(t), nil, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newTestService(t), nil, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}
