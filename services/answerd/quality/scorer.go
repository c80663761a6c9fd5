// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quality converts retrieval relevance signals into the single
// trust score that drives cache admission and expiry.
package quality

import (
	"errors"
	"fmt"
)

// UngroundedScore is assigned when an answer was generated without any
// retrieved excerpts. It applies only to conversational turns; knowledge
// questions without grounding are refused upstream and never scored.
const UngroundedScore = 0.5

// Config holds the relevance thresholds and the scores they map to.
// The threshold values are operational tuning knobs, not derived logic.
type Config struct {
	// HighRelevance is the mean relevance at or above which an answer is
	// considered fully grounded.
	HighRelevance float64

	// MediumRelevance is the lower bound of the medium band.
	MediumRelevance float64

	// LowRelevance is the lower bound of the weak band; means below it
	// score the floor.
	LowRelevance float64

	// Scores for the four bands, highest first.
	HighScore   float64
	MediumScore float64
	LowScore    float64
	FloorScore  float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		HighRelevance:   0.7,
		MediumRelevance: 0.5,
		LowRelevance:    0.3,
		HighScore:       1.0,
		MediumScore:     0.8,
		LowScore:        0.6,
		FloorScore:      0.4,
	}
}

// Validate checks that the thresholds are ordered and in range.
func (c Config) Validate() error {
	if c.HighRelevance <= c.MediumRelevance || c.MediumRelevance <= c.LowRelevance {
		return fmt.Errorf("thresholds must be strictly descending, got %.2f/%.2f/%.2f",
			c.HighRelevance, c.MediumRelevance, c.LowRelevance)
	}
	if c.LowRelevance < 0 || c.HighRelevance > 1 {
		return errors.New("thresholds must lie within [0,1]")
	}
	return nil
}

// Scorer maps the relevance values of the excerpts actually used in an
// answer to a quality score in [0,1]. It is a pure function of its input:
// identical relevance sets always yield the identical score.
type Scorer struct {
	cfg Config
}

// NewScorer builds a Scorer from the given config.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scorer config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

// Score returns the quality score for a set of excerpt relevances.
//
// An empty set means the answer used no grounding and receives the fixed
// UngroundedScore. Otherwise the mean relevance is banded through the
// configured thresholds.
func (s *Scorer) Score(relevances []float64) float64 {
	if len(relevances) == 0 {
		return UngroundedScore
	}

	var sum float64
	for _, r := range relevances {
		sum += r
	}
	mean := sum / float64(len(relevances))

	switch {
	case mean >= s.cfg.HighRelevance:
		return s.cfg.HighScore
	case mean >= s.cfg.MediumRelevance:
		return s.cfg.MediumScore
	case mean >= s.cfg.LowRelevance:
		return s.cfg.LowScore
	default:
		return s.cfg.FloorScore
	}
}
