// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the answerd service.
//
// This file contains request and response types for the answers endpoint.
// For feedback types, see feedback.go. For memory types, see memory.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxQuestionBytes is the maximum size of a single question.
	// Checks byte length, not rune count, to bound memory per request.
	MaxQuestionBytes = 8 * 1024 // 8KB

	// MaxHistoryTurns is the maximum number of prior turns in a request.
	MaxHistoryTurns = 20

	// DefaultTopK is the retrieval result cap applied when the client
	// does not ask for one.
	DefaultTopK = 20

	// MaxTopK is the largest retrieval result cap a client may request.
	MaxTopK = 50
)

// Answer sources reported in AskResponse.Source.
const (
	SourceMemory    = "memory"
	SourceCache     = "cache"
	SourceGenerated = "generated"
	SourceRefusal   = "refusal"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// answerValidate is the validator instance for answerd datatypes.
// Initialized in init() with custom validators.
var answerValidate *validator.Validate

func init() {
	answerValidate = validator.New()

	_ = answerValidate.RegisterValidation("maxbytes", validateMaxBytes)
	_ = answerValidate.RegisterValidation("idtoken", validateIDToken)
}

// validateMaxBytes validates that a string field does not exceed
// MaxQuestionBytes. Byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxQuestionBytes
}

// validateIDToken restricts identity fields to opaque token characters.
// IDs embed in store keys with colon separators, so colons, whitespace,
// and other punctuation are rejected.
func validateIDToken(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '@':
		default:
			return false
		}
	}
	return true
}

// =============================================================================
// Shared Message Type
// =============================================================================

// Message is a single conversational turn. Role is one of "user",
// "assistant", or "system".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// Ask Request Types
// =============================================================================

// AskRequest represents a study question submitted for answering.
//
// # Description
//
// AskRequest carries the question, an optional user identity (enables the
// per-user memory tier), an optional curriculum scope hint, and optional
// conversation history. This is the body for POST /v1/ask. Every request
// includes a unique ID and timestamp for audit trails and log correlation.
//
// # Fields
//
//   - RequestID: Required after EnsureDefaults. Unique identifier for this
//     request (UUID v4). Used for tracing and log correlation.
//   - Timestamp: Required after EnsureDefaults. Unix timestamp in
//     milliseconds (UTC) when the request was created.
//   - Question: Required. The natural-language study question.
//     Limited to 8KB (byte length, not runes).
//   - UserID: Optional. Stable identifier of the asking student. When set,
//     the per-user memory tier is consulted before any shared tier.
//   - Grade: Optional. Curriculum scope hint (e.g. "10"). Narrows retrieval
//     to the student's grade without pinning a subject or chapter.
//   - History: Optional. Prior conversation turns, oldest first, capped at
//     MaxHistoryTurns. Used only for prompt assembly, never for caching.
//   - TopK: Optional. Retrieval result cap. Defaults to DefaultTopK.
//
// # Validation
//
// Uses go-playground/validator:
//   - Question: required, max 8192 bytes
//   - History: at most 20 elements
//   - TopK: 0-50
//
// # Examples
//
//	req := AskRequest{
//	    Question: "What is photosynthesis?",
//	    UserID:   "student-42",
//	    Grade:    "7",
//	}
//	req.EnsureDefaults()
//
// # Limitations
//
//   - No streaming support; the full answer is returned in one response.
//   - History is advisory context for generation, not a session store.
type AskRequest struct {
	RequestID string    `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp int64     `json:"timestamp" validate:"gte=0"`
	Question  string    `json:"question" validate:"required,maxbytes"`
	UserID    string    `json:"user_id,omitempty" validate:"omitempty,idtoken,max=128"`
	Grade     string    `json:"grade,omitempty" validate:"omitempty,max=32"`
	History   []Message `json:"history,omitempty" validate:"max=20,dive"`
	TopK      int       `json:"top_k,omitempty" validate:"gte=0,lte=50"`
}

// Validate validates the AskRequest fields.
//
// # Description
//
// Performs validation using go-playground/validator tags and custom
// validators. Call after binding the JSON request.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field
func (r *AskRequest) Validate() error {
	return answerValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
//
// # Description
//
// Generates RequestID and Timestamp if the client did not provide them, and
// applies the default retrieval cap. Call before Validate.
func (r *AskRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
}

// =============================================================================
// Ask Response Types
// =============================================================================

// SourceRef identifies one knowledge-base excerpt an answer was grounded on.
type SourceRef struct {
	SourceID  string  `json:"source_id"`
	Grade     string  `json:"grade,omitempty"`
	Subject   string  `json:"subject,omitempty"`
	Chapter   string  `json:"chapter,omitempty"`
	Relevance float64 `json:"relevance,omitempty"`
}

// AskResponse represents the answer returned for a study question.
//
// # Description
//
// Contains the answer text, where it came from, and the grounding citations
// when the answer was generated from retrieved material. Refusals are
// well-formed responses with Refused set and a fixed message in Answer; they
// are never generated text.
//
// # Fields
//
//   - ResponseID: Unique identifier for this response (UUID v4).
//   - RequestID: Echo of the request ID for correlation.
//   - Timestamp: Unix timestamp in milliseconds (UTC) when the response
//     was produced.
//   - Answer: The answer text, a remembered answer, or the fixed refusal
//     message.
//   - Source: One of "memory", "cache", "generated", "refusal".
//   - QualityScore: Grounding quality in [0,1]. Zero for refusals.
//   - Refused: True when no grounding evidence existed and the service
//     declined to generate.
//   - Sources: Citations for the grounding excerpts used, best first.
//   - ProcessingTimeMs: Time taken to produce the response in milliseconds.
//
// # Examples
//
//	Response JSON:
//	{
//	    "response_id": "660f9500-f39c-52e5-b827-557766551111",
//	    "request_id": "550e8400-e29b-41d4-a716-446655440000",
//	    "timestamp": 1735817400000,
//	    "answer": "Photosynthesis is ...",
//	    "source": "generated",
//	    "quality_score": 1.0,
//	    "sources": [{"source_id": "bio7-ch2-p14", "relevance": 0.91}],
//	    "processing_time_ms": 1250
//	}
type AskResponse struct {
	ResponseID       string      `json:"response_id"`
	RequestID        string      `json:"request_id"`
	Timestamp        int64       `json:"timestamp"`
	Answer           string      `json:"answer"`
	Source           string      `json:"source"`
	QualityScore     float64     `json:"quality_score"`
	Refused          bool        `json:"refused,omitempty"`
	Sources          []SourceRef `json:"sources,omitempty"`
	ProcessingTimeMs int64       `json:"processing_time_ms,omitempty"`
}

// NewAskResponse creates a new AskResponse with auto-generated ID and
// timestamp.
//
// # Inputs
//
//   - requestID: The request ID to echo back for correlation
//   - answer: The answer text
//   - source: Which tier produced the answer
//
// # Outputs
//
//   - *AskResponse: A new response with ResponseID and Timestamp set
func NewAskResponse(requestID, answer, source string) *AskResponse {
	return &AskResponse{
		ResponseID: uuid.New().String(),
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
		Answer:     answer,
		Source:     source,
	}
}
