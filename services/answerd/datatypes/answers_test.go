// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"
	"testing"
)

// =============================================================================
// AskRequest Validation Tests
// =============================================================================

func TestAskRequest_Validate_Success(t *testing.T) {
	req := &AskRequest{
		Question: "What is photosynthesis?",
		UserID:   "student-42",
		Grade:    "7",
	}
	req.EnsureDefaults()

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestAskRequest_Validate_MissingQuestion(t *testing.T) {
	req := &AskRequest{UserID: "student-42"}
	req.EnsureDefaults()

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing question, got nil")
	}
}

func TestAskRequest_Validate_OversizedQuestion(t *testing.T) {
	req := &AskRequest{
		Question: strings.Repeat("a", MaxQuestionBytes+1),
	}
	req.EnsureDefaults()

	if err := req.Validate(); err == nil {
		t.Errorf("expected error for question over %d bytes, got nil", MaxQuestionBytes)
	}
}

func TestAskRequest_Validate_ExactlyMaxQuestion(t *testing.T) {
	req := &AskRequest{
		Question: strings.Repeat("a", MaxQuestionBytes),
	}
	req.EnsureDefaults()

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request at exactly %d bytes, got error: %v",
			MaxQuestionBytes, err)
	}
}

func TestAskRequest_Validate_InvalidRequestID(t *testing.T) {
	req := &AskRequest{
		RequestID: "not-a-uuid",
		Question:  "What is photosynthesis?",
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for invalid request_id, got nil")
	}
}

func TestAskRequest_Validate_TooManyHistoryTurns(t *testing.T) {
	history := make([]Message, MaxHistoryTurns+1)
	for i := range history {
		history[i] = Message{Role: "user", Content: "turn"}
	}

	req := &AskRequest{
		Question: "What is photosynthesis?",
		History:  history,
	}
	req.EnsureDefaults()

	if err := req.Validate(); err == nil {
		t.Errorf("expected error for %d history turns (max is %d), got nil",
			len(history), MaxHistoryTurns)
	}
}

func TestAskRequest_Validate_TopKOutOfRange(t *testing.T) {
	req := &AskRequest{
		Question: "What is photosynthesis?",
		TopK:     MaxTopK + 1,
	}

	if err := req.Validate(); err == nil {
		t.Errorf("expected error for top_k above %d, got nil", MaxTopK)
	}
}

func TestAskRequest_Validate_RejectsUnsafeUserID(t *testing.T) {
	cases := []struct {
		name   string
		userID string
		valid  bool
	}{
		{"plain token", "student-42", true},
		{"email style", "student.42@school.example", true},
		{"embedded colon", "student:42", false},
		{"embedded space", "student 42", false},
		{"embedded slash", "student/42", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := &AskRequest{
				Question: "What is photosynthesis?",
				UserID:   tc.userID,
			}
			req.EnsureDefaults()

			err := req.Validate()
			if tc.valid && err != nil {
				t.Errorf("expected user_id %q to validate, got error: %v", tc.userID, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("expected error for user_id %q, got nil", tc.userID)
			}
		})
	}
}

// =============================================================================
// AskRequest EnsureDefaults Tests
// =============================================================================

func TestAskRequest_EnsureDefaults_PopulatesIdentifiers(t *testing.T) {
	req := &AskRequest{Question: "What is photosynthesis?"}
	req.EnsureDefaults()

	if req.RequestID == "" {
		t.Error("expected RequestID to be generated")
	}
	if req.Timestamp == 0 {
		t.Error("expected Timestamp to be generated")
	}
	if req.TopK != DefaultTopK {
		t.Errorf("expected TopK default %d, got %d", DefaultTopK, req.TopK)
	}
}

func TestAskRequest_EnsureDefaults_PreservesClientValues(t *testing.T) {
	req := &AskRequest{
		RequestID: "550e8400-e29b-41d4-a716-446655440000",
		Timestamp: 1735817400000,
		Question:  "What is photosynthesis?",
		TopK:      5,
	}
	req.EnsureDefaults()

	if req.RequestID != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("expected client RequestID to be preserved, got %s", req.RequestID)
	}
	if req.Timestamp != 1735817400000 {
		t.Errorf("expected client Timestamp to be preserved, got %d", req.Timestamp)
	}
	if req.TopK != 5 {
		t.Errorf("expected client TopK to be preserved, got %d", req.TopK)
	}
}

// =============================================================================
// FeedbackRequest Validation Tests
// =============================================================================

func TestFeedbackRequest_Validate_Success(t *testing.T) {
	req := &FeedbackRequest{
		Question:   "What is photosynthesis?",
		ReporterID: "student-42",
		Reason:     "the answer describes respiration instead",
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestFeedbackRequest_Validate_MissingQuestion(t *testing.T) {
	req := &FeedbackRequest{ReporterID: "student-42"}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing question, got nil")
	}
}

func TestFeedbackRequest_Validate_AnonymousReporterAllowed(t *testing.T) {
	req := &FeedbackRequest{Question: "What is photosynthesis?"}

	if err := req.Validate(); err != nil {
		t.Errorf("expected anonymous feedback to validate, got error: %v", err)
	}
}

// =============================================================================
// Memory Request Validation Tests
// =============================================================================

func TestSaveMemoryRequest_Validate_Success(t *testing.T) {
	req := &SaveMemoryRequest{
		UserID:   "student-42",
		Question: "What is the capital of France?",
		Answer:   "Paris.",
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestSaveMemoryRequest_Validate_MissingFields(t *testing.T) {
	cases := []struct {
		name string
		req  SaveMemoryRequest
	}{
		{"missing user_id", SaveMemoryRequest{Question: "q", Answer: "a"}},
		{"missing question", SaveMemoryRequest{UserID: "u", Answer: "a"}},
		{"missing answer", SaveMemoryRequest{UserID: "u", Question: "q"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestForgetMemoryRequest_Validate_MissingUser(t *testing.T) {
	req := &ForgetMemoryRequest{Question: "What is the capital of France?"}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing user_id, got nil")
	}
}
