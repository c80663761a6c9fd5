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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VidyaLabs/VidyaServe/services/answerd/cache"
	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
)

// HandlePurgeExpired serves POST /v1/cache/purge. Redis already drops
// entries at their grace deadline; the sweep exists for logically expired
// entries still within grace. An empty body means a real purge.
func HandlePurgeExpired(answerCache *cache.AnswerCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.PurgeRequest
		if c.Request.ContentLength > 0 {
			if err := c.BindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		removed, remaining, err := answerCache.PurgeExpired(c.Request.Context(), req.DryRun)
		if err != nil {
			slog.Error("Cache purge failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cache purge failed"})
			return
		}

		slog.Info("Cache purge completed",
			"removed", removed, "remaining", remaining, "dry_run", req.DryRun)
		c.JSON(http.StatusOK, datatypes.PurgeResponse{
			Removed:   removed,
			Remaining: remaining,
			DryRun:    req.DryRun,
		})
	}
}

// HandleCacheStats serves GET /v1/cache/stats.
func HandleCacheStats(answerCache *cache.AnswerCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, expired, err := answerCache.Stats(c.Request.Context())
		if err != nil {
			slog.Error("Cache stats failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cache stats failed"})
			return
		}

		c.JSON(http.StatusOK, datatypes.CacheStatsResponse{
			Entries: entries,
			Expired: expired,
		})
	}
}
