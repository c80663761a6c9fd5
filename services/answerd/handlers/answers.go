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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
	"github.com/VidyaLabs/VidyaServe/services/answerd/pipeline"
)

var answersTracer = otel.Tracer("vidya.answerd.handlers")

// HandleAsk serves POST /v1/ask. Refusals come back as a normal 200 with
// refused=true so clients can distinguish "no grounding" from a failure.
func HandleAsk(service *pipeline.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := answersTracer.Start(c.Request.Context(), "HandleAsk")
		defer span.End()

		var req datatypes.AskRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the ask request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		resp, err := service.Answer(ctx, &req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			switch {
			case pipeline.IsInvalidQuery(err):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case pipeline.IsProviderUnavailable(err):
				slog.Error("Every generation provider failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": pipeline.FailureText})
			default:
				slog.Error("Answer pipeline failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "answerd"})
}
