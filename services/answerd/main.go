// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/VidyaLabs/VidyaServe/services/answerd/cache"
	"github.com/VidyaLabs/VidyaServe/services/answerd/feedback"
	"github.com/VidyaLabs/VidyaServe/services/answerd/memory"
	"github.com/VidyaLabs/VidyaServe/services/answerd/observability"
	"github.com/VidyaLabs/VidyaServe/services/answerd/pipeline"
	"github.com/VidyaLabs/VidyaServe/services/answerd/quality"
	"github.com/VidyaLabs/VidyaServe/services/answerd/retrieval"
	"github.com/VidyaLabs/VidyaServe/services/answerd/routes"
	"github.com/VidyaLabs/VidyaServe/services/llm"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "vidya-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("answerd-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildGenerator assembles the ordered provider chain from the
// GENERATION_PROVIDERS env var, e.g. "openai,googleai,ollama". Order is
// preference order; a question is retried on the next provider when one
// fails.
func buildGenerator(ctx context.Context) (llm.LLMClient, error) {
	names := os.Getenv("GENERATION_PROVIDERS")
	if names == "" {
		names = "openai,googleai"
		slog.Warn("GENERATION_PROVIDERS not set, defaulting", "providers", names)
	}

	var providers []llm.LLMClient
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		switch name {
		case "openai":
			client, err := llm.NewOpenAIClient()
			if err != nil {
				slog.Warn("Skipping OpenAI provider", "error", err)
				continue
			}
			providers = append(providers, client)
			slog.Info("Registered OpenAI generation provider")
		case "googleai", "gemini":
			client, err := llm.NewGoogleAIClient(ctx)
			if err != nil {
				slog.Warn("Skipping Google AI provider", "error", err)
				continue
			}
			providers = append(providers, client)
			slog.Info("Registered Google AI generation provider")
		case "anthropic", "claude":
			client, err := llm.NewAnthropicClient()
			if err != nil {
				slog.Warn("Skipping Anthropic provider", "error", err)
				continue
			}
			providers = append(providers, client)
			slog.Info("Registered Anthropic generation provider")
		case "ollama":
			client, err := llm.NewOllamaClient()
			if err != nil {
				slog.Warn("Skipping Ollama provider", "error", err)
				continue
			}
			providers = append(providers, client)
			slog.Info("Registered Ollama generation provider")
		case "":
		default:
			slog.Warn("Unknown generation provider, skipping", "provider", name)
		}
	}

	return llm.NewFallbackChain(llm.DefaultFallbackConfig(), providers...)
}

// runPurgeLoop sweeps logically expired cache entries on a fixed interval.
// Redis handles hard expiry on its own; the sweep keeps stats honest for
// entries still inside their grace window.
func runPurgeLoop(answerCache *cache.AnswerCache, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		removed, remaining, err := answerCache.PurgeExpired(context.Background(), false)
		if err != nil {
			slog.Error("Scheduled cache purge failed", "error", err)
			continue
		}
		slog.Info("Scheduled cache purge completed",
			"removed", removed, "remaining", remaining)
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	// --- Shared answer cache (optional) ---
	var answerCache *cache.AnswerCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.Address = redisAddr
		redisCfg.Password = os.Getenv("REDIS_PASSWORD")
		rdb, err := cache.NewRedisClient(redisCfg)
		if err != nil {
			slog.Error("Failed to connect to Redis, running without the shared cache", "error", err)
		} else {
			answerCache, err = cache.NewAnswerCache(rdb, feedback.NewLedger(rdb), cache.DefaultConfig())
			if err != nil {
				slog.Error("Failed to build the answer cache", "error", err)
				answerCache = nil
			}
		}
	} else {
		slog.Info("REDIS_ADDR not set. Running without the shared answer cache.")
	}

	// --- Per-user memory store (optional) ---
	var memoryStore *memory.Store
	memoryPath := os.Getenv("MEMORY_DB_PATH")
	if memoryPath == "" {
		memoryPath = "/var/lib/vidya/memory"
	}
	storeCfg := memory.DefaultStoreConfig()
	storeCfg.Path = memoryPath
	memoryStore, err = memory.NewStore(storeCfg)
	if err != nil {
		slog.Error("Failed to open the memory store, running without per-user memory",
			"path", memoryPath, "error", err)
		memoryStore = nil
	} else {
		defer func() { _ = memoryStore.Close() }()
	}

	// --- Study-material vector store (optional) ---
	weaviateURL := os.Getenv("WEAVIATE_URL")
	// Sanitize: Trim quotes and whitespace just in case the container runtime passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")

	var searcher retrieval.Searcher

	// Robust Check: URL must exist AND have a scheme (http/https)
	if weaviateURL != "" && strings.Contains(weaviateURL, "http") {
		parsedURL, err := url.Parse(weaviateURL)

		if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
			slog.Warn("WEAVIATE_URL is invalid. All knowledge questions will be refused.",
				"url", weaviateURL, "error", err)
		} else {
			clientConf := weaviate.Config{
				Host:   parsedURL.Host,
				Scheme: parsedURL.Scheme,
			}
			weaviateClient, err := weaviate.NewClient(clientConf)
			if err != nil {
				slog.Error("Failed to create Weaviate client", "error", err)
			} else {
				ws, err := retrieval.NewWeaviateSearcher(weaviateClient, retrieval.DefaultSearcherConfig())
				if err != nil {
					slog.Error("Failed to build the study-material searcher", "error", err)
				} else {
					searcher = ws
				}
			}
		}
	} else {
		slog.Warn("WEAVIATE_URL not set or empty. All knowledge questions will be refused.")
	}

	// --- Generation providers ---
	log.Println("Configuring the generation provider chain")
	generator, err := buildGenerator(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize generation providers: %v", err)
	}

	scorer, err := quality.NewScorer(quality.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to initialize the quality scorer: %v", err)
	}

	service, err := pipeline.NewService(answerCache, memoryStore, searcher, generator, scorer, pipeline.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to build the answer pipeline: %v", err)
	}

	if answerCache != nil {
		purgeInterval := 24 * time.Hour
		if raw := os.Getenv("CACHE_PURGE_INTERVAL"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				slog.Warn("Invalid CACHE_PURGE_INTERVAL, using default", "value", raw)
			} else {
				purgeInterval = parsed
			}
		}
		go runPurgeLoop(answerCache, purgeInterval)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("answerd-service"))

	routes.SetupRoutes(router, service, answerCache, memoryStore)

	log.Println("Starting the answerd server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
