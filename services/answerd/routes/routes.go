// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VidyaLabs/VidyaServe/services/answerd/cache"
	"github.com/VidyaLabs/VidyaServe/services/answerd/handlers"
	"github.com/VidyaLabs/VidyaServe/services/answerd/memory"
	"github.com/VidyaLabs/VidyaServe/services/answerd/pipeline"
)

// SetupRoutes registers the answer service endpoints. Routes backed by an
// optional store are only registered when that store is configured, so a
// degraded deployment 404s instead of erroring on every call.
func SetupRoutes(router *gin.Engine, service *pipeline.Service, answerCache *cache.AnswerCache,
	memoryStore *memory.Store) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/ask", handlers.HandleAsk(service))

		if answerCache != nil {
			v1.POST("/feedback", handlers.HandleFeedback(answerCache))
			// Cache administration routes
			cacheAdmin := v1.Group("/cache")
			{
				cacheAdmin.POST("/purge", handlers.HandlePurgeExpired(answerCache))
				cacheAdmin.GET("/stats", handlers.HandleCacheStats(answerCache))
			}
		}

		if memoryStore != nil {
			// Per-user memory routes
			memoryGroup := v1.Group("/memory")
			{
				memoryGroup.POST("", handlers.HandleRememberAnswer(memoryStore))
				memoryGroup.GET("", handlers.HandleRecallMemory(memoryStore))
				memoryGroup.DELETE("", handlers.HandleForgetAnswer(memoryStore))
			}
		}
	}
}
