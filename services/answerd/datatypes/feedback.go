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

// FeedbackRequest reports a wrong or unhelpful cached answer.
//
// The question text is fingerprinted server-side; clients never handle
// fingerprints directly. ReporterID is optional: anonymous reports are
// accepted but each one counts at most once toward invalidation.
type FeedbackRequest struct {
	Question   string `json:"question" validate:"required,maxbytes"`
	ReporterID string `json:"reporter_id,omitempty" validate:"omitempty,idtoken,max=128"`
	Reason     string `json:"reason,omitempty" validate:"max=1024"`
}

// Validate validates the FeedbackRequest fields.
func (r *FeedbackRequest) Validate() error {
	return answerValidate.Struct(r)
}

// FeedbackResponse reports the state of the cached answer after the
// feedback was recorded.
type FeedbackResponse struct {
	Fingerprint   string `json:"fingerprint"`
	FeedbackCount int64  `json:"feedback_count"`
	Invalidated   bool   `json:"invalidated"`
}
