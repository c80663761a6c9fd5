// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates the answer tiers: per-user memory, the
// shared quality-adaptive cache, retrieval-grounded generation, and the
// fixed refusal when no grounding exists. The ordering is strict and a
// knowledge question is never answered from the model alone.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/VidyaLabs/VidyaServe/services/answerd/cache"
	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
	"github.com/VidyaLabs/VidyaServe/services/answerd/fingerprint"
	"github.com/VidyaLabs/VidyaServe/services/answerd/memory"
	"github.com/VidyaLabs/VidyaServe/services/answerd/observability"
	"github.com/VidyaLabs/VidyaServe/services/answerd/quality"
	"github.com/VidyaLabs/VidyaServe/services/answerd/retrieval"
	"github.com/VidyaLabs/VidyaServe/services/llm"
)

var tracer = otel.Tracer("vidya.answerd.pipeline")

// Config holds the generation settings for the pipeline.
type Config struct {
	// Temperature is passed to every generation call.
	Temperature float32

	// MaxTokens caps the length of generated answers.
	MaxTokens int
}

// DefaultConfig returns the standard generation settings.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.7,
		MaxTokens:   500,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// Service answers student questions by walking the tiers in order. The
// cache, memory store, and searcher may each be nil: the service runs in a
// degraded mode that skips the missing tier and never fabricates grounding.
type Service struct {
	cache     *cache.AnswerCache
	memory    *memory.Store
	searcher  retrieval.Searcher
	generator llm.LLMClient
	scorer    *quality.Scorer
	config    Config
	flight    singleflight.Group
	logger    *slog.Logger
	now       func() time.Time
}

// answerResult carries a produced answer between the generation path and
// the per-caller response assembly. Responses are materialized per request
// so collapsed concurrent callers never share IDs.
type answerResult struct {
	answer  string
	source  string
	score   float64
	refused bool
	sources []datatypes.SourceRef
}

// NewService creates the answer pipeline. The generator and scorer are
// required; cache, memory, and searcher may be nil for degraded operation.
func NewService(answerCache *cache.AnswerCache, memoryStore *memory.Store, searcher retrieval.Searcher, generator llm.LLMClient, scorer *quality.Scorer, cfg Config) (*Service, error) {
	if generator == nil {
		return nil, errors.New("generator must not be nil")
	}
	if scorer == nil {
		return nil, errors.New("scorer must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	logger := slog.Default().With("component", "pipeline")
	if answerCache == nil {
		logger.Warn("No answer cache configured, every question generates fresh")
	}
	if memoryStore == nil {
		logger.Warn("No memory store configured, per-user recall disabled")
	}
	if searcher == nil {
		logger.Warn("No retrieval store configured, all knowledge questions will be refused")
	}

	return &Service{
		cache:     answerCache,
		memory:    memoryStore,
		searcher:  searcher,
		generator: generator,
		scorer:    scorer,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Answer serves a question through the tiers: validation, the user's own
// remembered answers, the shared cache, then retrieval-grounded generation.
// A knowledge question with no retrieved grounding gets the fixed refusal
// and nothing is generated or cached for it.
//
// Returned errors are ErrInvalidQuery (possibly wrapped) for malformed
// requests and *ProviderUnavailableError when every provider failed; the
// refusal is a normal response, not an error.
func (s *Service) Answer(ctx context.Context, req *datatypes.AskRequest) (*datatypes.AskResponse, error) {
	ctx, span := tracer.Start(ctx, "Answer")
	defer span.End()

	start := s.now()

	if req == nil {
		return nil, fmt.Errorf("%w: request must not be nil", ErrInvalidQuery)
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordFailure(observability.FailureInvalidQuery)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	fp, err := fingerprint.New(req.Question)
	if err != nil {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordFailure(observability.FailureInvalidQuery)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	span.SetAttributes(
		attribute.String("answer.fingerprint", fp.String()),
		attribute.String("answer.request_id", req.RequestID),
	)

	// Tier 1: the user's own remembered answers. Store trouble degrades to
	// a skipped tier, never a failed request.
	if req.UserID != "" && s.memory != nil {
		record, found, err := s.memory.Find(ctx, req.UserID, req.Question)
		if err != nil {
			s.logger.Warn("Memory tier unavailable, skipping",
				"request_id", req.RequestID,
				"error", err)
		} else if found {
			span.SetAttributes(attribute.String("answer.source", datatypes.SourceMemory))
			return s.respond(req, start, &answerResult{
				answer:  record.Answer,
				source:  datatypes.SourceMemory,
				sources: refsToSourceRefs(record.GroundingRefs),
			}), nil
		}
	}

	// Tier 2: the shared cache.
	if s.cache != nil {
		entry, found, err := s.cache.Lookup(ctx, fp)
		switch {
		case err != nil:
			s.logger.Warn("Cache tier unavailable, skipping",
				"request_id", req.RequestID,
				"error", err)
		case found:
			if m := observability.DefaultMetrics; m != nil {
				m.RecordCacheEvent(observability.CacheHit)
			}
			span.SetAttributes(attribute.String("answer.source", datatypes.SourceCache))
			return s.respond(req, start, &answerResult{
				answer:  entry.Answer,
				source:  datatypes.SourceCache,
				score:   entry.QualityScore,
				sources: refsToSourceRefs(entry.GroundingRefs),
			}), nil
		default:
			if m := observability.DefaultMetrics; m != nil {
				m.RecordCacheEvent(observability.CacheMiss)
			}
		}
	}

	// Tier 3: retrieve, generate, and write through. Concurrent misses on
	// the same fingerprint collapse into a single generation.
	v, err, shared := s.flight.Do(fp.String(), func() (interface{}, error) {
		return s.generateAndStore(ctx, req, fp)
	})
	if err != nil {
		if IsNoGrounding(err) {
			// Fixed refusal: nothing was generated and nothing was cached.
			span.SetAttributes(attribute.String("answer.source", datatypes.SourceRefusal))
			return s.respond(req, start, &answerResult{
				answer:  RefusalText,
				source:  datatypes.SourceRefusal,
				refused: true,
			}), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if m := observability.DefaultMetrics; m != nil {
			if IsProviderUnavailable(err) {
				m.RecordFailure(observability.FailureProviderUnavailable)
			} else {
				m.RecordFailure(observability.FailureInternal)
			}
		}
		return nil, err
	}
	if shared {
		s.logger.Debug("Concurrent identical question collapsed",
			"fingerprint", fp.String())
	}

	res := v.(*answerResult)
	span.SetAttributes(attribute.String("answer.source", res.source))
	return s.respond(req, start, res), nil
}

// generateAndStore runs inside the singleflight group. It returns
// *NoGroundingError when retrieval yields nothing usable and
// *ProviderUnavailableError when the whole provider chain failed.
func (s *Service) generateAndStore(ctx context.Context, req *datatypes.AskRequest, fp fingerprint.Fingerprint) (*answerResult, error) {
	if IsConversational(req.Question) {
		return s.generateConversational(ctx, req, fp)
	}

	if s.searcher == nil {
		return nil, &NoGroundingError{Question: req.Question}
	}

	passages, err := s.searcher.Search(ctx, req.Question, retrieval.Scope{Grade: req.Grade}, req.TopK)
	if err != nil {
		// Fail fast: a broken retrieval store must not let an ungrounded
		// answer through.
		s.logger.Error("Retrieval failed, refusing",
			"request_id", req.RequestID,
			"error", err)
		return nil, &NoGroundingError{Question: req.Question}
	}
	if len(passages) == 0 {
		s.logger.Info("No grounding found, refusing",
			"request_id", req.RequestID,
			"grade", req.Grade)
		return nil, &NoGroundingError{Question: req.Question}
	}

	relevances := make([]float64, len(passages))
	for i, p := range passages {
		relevances[i] = p.Relevance
	}
	score := s.scorer.Score(relevances)

	answer, err := s.generate(ctx, buildGroundedMessages(req, passages))
	if err != nil {
		return nil, err
	}

	s.storeThrough(ctx, fp, answer, passageRefs(passages), score, true)

	if m := observability.DefaultMetrics; m != nil {
		m.RecordQuality(score)
	}

	return &answerResult{
		answer:  answer,
		source:  datatypes.SourceGenerated,
		score:   score,
		sources: toSourceRefs(passages),
	}, nil
}

// generateConversational handles pure small talk. No retrieval happens, the
// answer scores the fixed ungrounded value, and it is cached through the
// standard quality step.
func (s *Service) generateConversational(ctx context.Context, req *datatypes.AskRequest, fp fingerprint.Fingerprint) (*answerResult, error) {
	answer, err := s.generate(ctx, buildConversationalMessages(req))
	if err != nil {
		return nil, err
	}

	score := s.scorer.Score(nil)
	s.storeThrough(ctx, fp, answer, nil, score, false)

	return &answerResult{
		answer: answer,
		source: datatypes.SourceGenerated,
		score:  score,
	}, nil
}

// generate runs the provider chain with the configured settings.
func (s *Service) generate(ctx context.Context, messages []datatypes.Message) (string, error) {
	temperature := s.config.Temperature
	maxTokens := s.config.MaxTokens
	answer, err := s.generator.Chat(ctx, messages, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if m := observability.DefaultMetrics; m != nil {
		m.RecordGeneration(s.generator.Name(), err == nil)
	}
	if err != nil {
		return "", &ProviderUnavailableError{Err: err}
	}
	return answer, nil
}

// storeThrough writes a generated answer to the shared cache. A store
// failure is logged and never blocks serving the answer.
func (s *Service) storeThrough(ctx context.Context, fp fingerprint.Fingerprint, answer string, refs []string, score float64, grounded bool) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Store(ctx, fp, answer, refs, score, grounded); err != nil {
		s.logger.Warn("Cache store failed, serving uncached answer",
			"fingerprint", fp.String(),
			"error", err)
		return
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordCacheEvent(observability.CacheStore)
	}
}

// respond materializes the per-caller response and records serving metrics.
func (s *Service) respond(req *datatypes.AskRequest, start time.Time, res *answerResult) *datatypes.AskResponse {
	resp := datatypes.NewAskResponse(req.RequestID, res.answer, res.source)
	resp.QualityScore = res.score
	resp.Refused = res.refused
	resp.Sources = res.sources
	resp.ProcessingTimeMs = s.now().Sub(start).Milliseconds()

	if m := observability.DefaultMetrics; m != nil {
		m.RecordAnswer(res.source, s.now().Sub(start).Seconds())
	}

	s.logger.Info("Answer served",
		"request_id", req.RequestID,
		"source", res.source,
		"quality", res.score,
		"refused", res.refused,
		"elapsed_ms", resp.ProcessingTimeMs)

	return resp
}

func toSourceRefs(passages []retrieval.Passage) []datatypes.SourceRef {
	refs := make([]datatypes.SourceRef, 0, len(passages))
	for _, p := range passages {
		refs = append(refs, datatypes.SourceRef{
			SourceID:  p.Source,
			Grade:     p.Grade,
			Subject:   p.Subject,
			Chapter:   p.Chapter,
			Relevance: p.Relevance,
		})
	}
	return refs
}

func passageRefs(passages []retrieval.Passage) []string {
	refs := make([]string, 0, len(passages))
	for _, p := range passages {
		refs = append(refs, p.Source)
	}
	return refs
}

// refsToSourceRefs rebuilds source references from stored IDs. Only the IDs
// survive a cache or memory round trip, so the other fields stay empty.
func refsToSourceRefs(refs []string) []datatypes.SourceRef {
	if len(refs) == 0 {
		return nil
	}
	out := make([]datatypes.SourceRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, datatypes.SourceRef{SourceID: ref})
	}
	return out
}
