// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline package.
var (
	// ErrInvalidQuery indicates an empty or malformed question, rejected
	// before any answer tier is consulted.
	ErrInvalidQuery = errors.New("invalid query")
)

// IsInvalidQuery checks whether an error is (or wraps) ErrInvalidQuery.
// Handlers map it to HTTP 400.
func IsInvalidQuery(err error) bool {
	return errors.Is(err, ErrInvalidQuery)
}

// NoGroundingError signals that retrieval produced nothing usable for a
// knowledge question. It never reaches API callers: the pipeline converts
// it into the fixed refusal response before returning.
type NoGroundingError struct {
	Question string
}

// Error implements the error interface for NoGroundingError.
func (e *NoGroundingError) Error() string {
	return fmt.Sprintf("no grounding found for question %q", e.Question)
}

// IsNoGrounding checks if an error is a NoGroundingError.
func IsNoGrounding(err error) bool {
	_, ok := err.(*NoGroundingError)
	return ok
}

// ProviderUnavailableError is returned when every generation provider in
// the fallback chain failed. Handlers surface it as HTTP 503 with the fixed
// failure text; nothing is cached.
type ProviderUnavailableError struct {
	Err error
}

// Error implements the error interface for ProviderUnavailableError.
func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("all generation providers unavailable: %v", e.Err)
}

// Unwrap exposes the chain failure for errors.Is/As.
func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// IsProviderUnavailable checks if an error is a ProviderUnavailableError.
// This is useful for handlers to determine the appropriate HTTP status code.
//
// Example:
//
//	resp, err := service.Answer(ctx, req)
//	if err != nil {
//	    if pipeline.IsProviderUnavailable(err) {
//	        c.JSON(http.StatusServiceUnavailable, gin.H{"error": pipeline.FailureText})
//	        return
//	    }
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
//	}
func IsProviderUnavailable(err error) bool {
	_, ok := err.(*ProviderUnavailableError)
	return ok
}
