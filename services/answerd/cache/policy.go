// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import "time"

// Cache lifetime is a proxy for trustworthiness, not recency: an answer
// backed by strong grounding may circulate for ten days, while a plausible
// but poorly-grounded one decays out within a day.
const (
	// HighQualityTTL applies to scores of 0.7 and above.
	HighQualityTTL = 240 * time.Hour // 10 days

	// MediumQualityTTL applies to scores in [0.5, 0.7).
	MediumQualityTTL = 72 * time.Hour // 3 days

	// LowQualityTTL applies to scores below 0.5.
	LowQualityTTL = 24 * time.Hour // 1 day

	highQualityFloor   = 0.7
	mediumQualityFloor = 0.5
)

const (
	// MinServeThreshold is the lowest quality score a cached answer may
	// carry and still be replayed. Entries below it are treated as misses
	// even while unexpired.
	MinServeThreshold = 0.3

	// InvalidationThreshold is the distinct-reporter count at which a
	// cached answer is invalidated and deleted eagerly.
	InvalidationThreshold = 2
)

// TTLFor maps a quality score onto a cache lifetime via the tier step
// function. Thresholds are compared inclusively at the floor of each tier.
func TTLFor(quality float64) time.Duration {
	switch {
	case quality >= highQualityFloor:
		return HighQualityTTL
	case quality >= mediumQualityFloor:
		return MediumQualityTTL
	default:
		return LowQualityTTL
	}
}
