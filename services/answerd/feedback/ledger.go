// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feedback tracks negative answer reports per question fingerprint.
//
// Reports are stored as Redis sets keyed by fingerprint, one member per
// reporter, so a single dissatisfied user cannot invalidate a cached answer
// by reporting it repeatedly. Anonymous reports are accepted; each one
// counts once under a generated identity.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/VidyaLabs/VidyaServe/services/answerd/fingerprint"
)

const keyPrefix = "feedback:v1:"

// retention bounds how long a report set can outlive the cache entry it
// condemns. Slightly longer than the longest cache lifetime plus its grace
// window, so a set never expires before its entry.
const retention = 11 * 24 * time.Hour

// Ledger counts distinct negative reporters per fingerprint.
type Ledger struct {
	rdb *redis.Client
}

func NewLedger(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb}
}

func key(fp fingerprint.Fingerprint) string {
	return keyPrefix + fp.String()
}

// Record registers one negative report against a fingerprint and returns
// the distinct-reporter count afterwards. Repeated reports from the same
// reporter do not raise the count. The reason is logged for operators, not
// persisted.
func (l *Ledger) Record(ctx context.Context, fp fingerprint.Fingerprint, reporterID, reason string) (int64, error) {
	member := reporterID
	if member == "" {
		member = "anon:" + uuid.New().String()
	}

	k := key(fp)
	if err := l.rdb.SAdd(ctx, k, member).Err(); err != nil {
		return 0, fmt.Errorf("failed to record feedback for %s: %w", fp, err)
	}
	if err := l.rdb.Expire(ctx, k, retention).Err(); err != nil {
		slog.Warn("Failed to refresh feedback retention", "fingerprint", fp.String(), "error", err)
	}

	count, err := l.rdb.SCard(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback for %s: %w", fp, err)
	}
	slog.Info("Negative feedback recorded",
		"fingerprint", fp.String(), "count", count, "reason", reason)
	return count, nil
}

// Count returns the distinct-reporter count for a fingerprint. Zero when no
// reports exist.
func (l *Ledger) Count(ctx context.Context, fp fingerprint.Fingerprint) (int64, error) {
	count, err := l.rdb.SCard(ctx, key(fp)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback for %s: %w", fp, err)
	}
	return count, nil
}

// Clear drops all reports for a fingerprint. Called when a fresh answer is
// stored so complaints about the old answer do not condemn its replacement.
func (l *Ledger) Clear(ctx context.Context, fp fingerprint.Fingerprint) error {
	if err := l.rdb.Del(ctx, key(fp)).Err(); err != nil {
		return fmt.Errorf("failed to clear feedback for %s: %w", fp, err)
	}
	return nil
}
