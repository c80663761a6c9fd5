// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval searches the study-material vector store for passages
// relevant to a question. Passages live in the Weaviate StudyPassage class
// and carry their curriculum coordinates (grade, subject, chapter) so the
// pipeline can cite them back to the student.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("vidya.answerd.retrieval")

// StudyPassageClassName is the Weaviate class holding ingested study material.
const StudyPassageClassName = "StudyPassage"

// Passage is one retrieved excerpt together with its curriculum coordinates
// and the relevance score the vector store assigned to it.
type Passage struct {
	Content   string
	Subject   string
	Grade     string
	Chapter   string
	Source    string
	Relevance float64
}

// Scope narrows a search to the asking student's curriculum. Only the grade
// is ever applied as a hard filter; subject and chapter partitions stay open
// so a question about photosynthesis finds the biology chapter no matter
// which subject the student is currently studying.
type Scope struct {
	Grade string
}

// Searcher finds passages relevant to a question.
type Searcher interface {
	Search(ctx context.Context, question string, scope Scope, limit int) ([]Passage, error)
}

// SearcherConfig configures the Weaviate searcher.
type SearcherConfig struct {
	// ClassName is the Weaviate class to query.
	ClassName string

	// DefaultLimit is applied when the caller passes limit <= 0.
	DefaultLimit int
}

// DefaultSearcherConfig returns production defaults.
func DefaultSearcherConfig() SearcherConfig {
	return SearcherConfig{
		ClassName:    StudyPassageClassName,
		DefaultLimit: 20,
	}
}

// Validate checks the configuration.
func (c *SearcherConfig) Validate() error {
	if c.ClassName == "" {
		return errors.New("class name must not be empty")
	}
	if c.DefaultLimit <= 0 {
		return errors.New("default limit must be positive")
	}
	return nil
}

// WeaviateSearcher implements Searcher against a Weaviate instance.
//
// # Thread Safety
//
// WeaviateSearcher is safe for concurrent use. The underlying Weaviate
// client handles connection pooling.
type WeaviateSearcher struct {
	client *weaviate.Client
	config SearcherConfig
}

// NewWeaviateSearcher creates a searcher over the study-material class.
//
// # Inputs
//
//   - client: Weaviate client. Must not be nil.
//   - config: Searcher configuration (use DefaultSearcherConfig() for defaults).
//
// # Outputs
//
//   - *WeaviateSearcher: The configured searcher.
//   - error: Non-nil if the client is nil or the config is invalid.
func NewWeaviateSearcher(client *weaviate.Client, config SearcherConfig) (*WeaviateSearcher, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid searcher config: %w", err)
	}
	return &WeaviateSearcher{
		client: client,
		config: config,
	}, nil
}

// Search performs semantic retrieval of study passages.
//
// # Description
//
// Runs a nearText query over the study-material class across every subject
// and chapter partition. When scope carries a grade the search is filtered
// to that grade; it is never narrowed further, so cross-subject questions
// still find their material. Results come back ordered by descending
// relevance.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - question: The student's question. Must not be empty.
//   - scope: Optional grade filter.
//   - limit: Maximum passages to return; <= 0 uses the configured default.
//
// # Outputs
//
//   - []Passage: Relevant passages, highest relevance first. Empty when the
//     store holds nothing relevant (not an error).
//   - error: Non-nil if the store call fails.
func (s *WeaviateSearcher) Search(ctx context.Context, question string, scope Scope, limit int) ([]Passage, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	span.SetAttributes(
		attribute.Int("retrieval.limit", limit),
		attribute.String("retrieval.grade", scope.Grade))

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{question})

	// Note: We request certainty (always [0,1]) alongside distance which
	// varies by metric; certainty wins when both are present.
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "subject"},
		{Name: "grade"},
		{Name: "chapter"},
		{Name: "source"},
		{Name: "_additional { certainty distance }"},
	}

	query := s.client.GraphQL().Get().
		WithClassName(s.config.ClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit)

	if scope.Grade != "" {
		query = query.WithWhere(filters.Where().
			WithPath([]string{"grade"}).
			WithOperator(filters.Equal).
			WithValueString(scope.Grade))
	}

	result, err := query.Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "semantic search failed")
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	if result.Errors != nil && len(result.Errors) > 0 {
		err := fmt.Errorf("search error: %s", result.Errors[0].Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, "semantic search failed")
		return nil, err
	}

	passages := parsePassages(result, s.config.ClassName)
	if len(passages) > limit {
		passages = passages[:limit]
	}

	slog.Debug("Retrieved study passages",
		"grade", scope.Grade,
		"count", len(passages))

	return passages, nil
}

// parsePassages unpacks a GraphQL response into passages ordered by
// descending relevance.
func parsePassages(result *models.GraphQLResponse, className string) []Passage {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []Passage{}
	}

	objects, ok := data[className].([]interface{})
	if !ok {
		return []Passage{}
	}

	passages := make([]Passage, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}

		p := Passage{
			Content: getString(m, "content"),
			Subject: getString(m, "subject"),
			Grade:   getString(m, "grade"),
			Chapter: getString(m, "chapter"),
			Source:  getString(m, "source"),
		}

		p.Relevance = 0.5 // default when the store reports no score
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				p.Relevance = certainty
			} else if distance, ok := additional["distance"].(float64); ok {
				p.Relevance = clamp01(1 - distance/2)
			}
		}

		passages = append(passages, p)
	}

	sort.Slice(passages, func(i, j int) bool {
		return passages[i].Relevance > passages[j].Relevance
	})

	return passages
}

// getString safely extracts a string from a map.
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ Searcher = (*WeaviateSearcher)(nil)
