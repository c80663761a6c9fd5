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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
	"github.com/VidyaLabs/VidyaServe/services/answerd/memory"
)

// HandleRememberAnswer serves POST /v1/memory. The saved record comes back
// so clients can show what was actually stored.
func HandleRememberAnswer(store *memory.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SaveMemoryRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the remember request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		record, err := store.Save(c.Request.Context(), req.UserID, req.Question, req.Answer, req.Refs)
		if err != nil {
			if errors.Is(err, memory.ErrInvalidOwner) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("Failed to save memory record", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save memory record"})
			return
		}

		slog.Info("Remembered answer for user", "user_id", req.UserID)
		c.JSON(http.StatusOK, record)
	}
}

// HandleRecallMemory serves GET /v1/memory?user_id=...&q=... and returns the
// first remembered record whose normalized question matches the prefix.
func HandleRecallMemory(store *memory.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		question := c.Query("q")
		if userID == "" || question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and q query parameters are required"})
			return
		}

		record, found, err := store.Find(c.Request.Context(), userID, question)
		if err != nil {
			if errors.Is(err, memory.ErrInvalidOwner) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("Failed to search memory records", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search memory records"})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no remembered answer for that question"})
			return
		}

		c.JSON(http.StatusOK, record)
	}
}

// HandleForgetAnswer serves DELETE /v1/memory. Forgetting something that was
// never remembered is a normal response with removed=false.
func HandleForgetAnswer(store *memory.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ForgetMemoryRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the forget request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		removed, err := store.Forget(c.Request.Context(), req.UserID, req.Question)
		if err != nil {
			if errors.Is(err, memory.ErrInvalidOwner) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("Failed to forget memory record", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to forget memory record"})
			return
		}

		resp := datatypes.ForgetMemoryResponse{Removed: removed, Message: "forgotten"}
		if !removed {
			resp.Message = "nothing to remove"
		}
		c.JSON(http.StatusOK, resp)
	}
}
