// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/VidyaLabs/VidyaServe/services/answerd/cache"
	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
	"github.com/VidyaLabs/VidyaServe/services/answerd/fingerprint"
	"github.com/VidyaLabs/VidyaServe/services/answerd/observability"
)

// HandleFeedback serves POST /v1/feedback. Reports against a question the
// cache does not hold are a 404, not a silent success, so clients learn the
// entry already rotated out.
func HandleFeedback(answerCache *cache.AnswerCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.FeedbackRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the feedback request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		fp, err := fingerprint.New(req.Question)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Anonymous reports still count once each toward the threshold.
		reporter := req.ReporterID
		if reporter == "" {
			reporter = fmt.Sprintf("anon:%s", uuid.New().String())
		}

		count, invalidated, err := answerCache.ReportFeedback(c.Request.Context(), fp, reporter, req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, cache.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "no cached answer for that question"})
			case errors.Is(err, cache.ErrUnavailable):
				slog.Error("Feedback rejected, cache unavailable", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "answer cache unavailable"})
			default:
				slog.Error("Failed to record feedback", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
			}
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordFeedback()
			if invalidated {
				m.RecordCacheEvent(observability.CacheInvalidated)
			}
		}
		if invalidated {
			slog.Info("Cached answer invalidated by crowd feedback",
				"fingerprint", fp.String(), "reports", count)
		}

		c.JSON(http.StatusOK, datatypes.FeedbackResponse{
			Fingerprint:   fp.String(),
			FeedbackCount: count,
			Invalidated:   invalidated,
		})
	}
}
