// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache implements the shared answer cache with quality-adaptive
// expiry and crowd-sourced invalidation.
//
// Entries live in Redis as JSON blobs keyed by question fingerprint. The
// logical lifetime recorded in ExpiresAt is authoritative on every read;
// the native Redis TTL is set slightly longer and only backstops entries
// the purge sweep never reaches. Mutations for one fingerprint are
// serialized through striped locks within a process; across replicas the
// store is last-writer-wins, and a lookup racing an invalidation may serve
// one additional stale read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/VidyaLabs/VidyaServe/services/answerd/feedback"
	"github.com/VidyaLabs/VidyaServe/services/answerd/fingerprint"
)

var (
	// ErrUnavailable wraps Redis transport failures so callers can degrade
	// to generation instead of failing the request.
	ErrUnavailable = errors.New("answer cache unavailable")

	// ErrNotFound is returned by ReportFeedback when the question has no
	// cached entry to report against.
	ErrNotFound = errors.New("no cached answer for fingerprint")
)

// Entry is one cached answer. NegativeFeedbackCount mirrors the feedback
// ledger at the time of the last report; the ledger is authoritative.
type Entry struct {
	Fingerprint           string    `json:"fingerprint"`
	Answer                string    `json:"answer"`
	GroundingRefs         []string  `json:"grounding_refs,omitempty"`
	QualityScore          float64   `json:"quality_score"`
	HasGrounding          bool      `json:"has_grounding"`
	CreatedAt             time.Time `json:"created_at"`
	ExpiresAt             time.Time `json:"expires_at"`
	HitCount              int64     `json:"hit_count"`
	NegativeFeedbackCount int64     `json:"negative_feedback_count"`
	Invalidated           bool      `json:"invalidated"`
}

// RedisConfig holds connection settings for the shared Redis instance.
type RedisConfig struct {
	Address      string
	Password     string
	Database     int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:      "localhost:6379",
		Database:     0,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func (c RedisConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("redis address must not be empty")
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("redis pool size must be at least 1, got %d", c.PoolSize)
	}
	return nil
}

// NewRedisClient builds and pings a Redis client. The ledger and the cache
// share one client.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// Config holds cache-level settings.
type Config struct {
	// KeyPrefix namespaces cache keys in the shared Redis.
	KeyPrefix string

	// TTLGrace is added to the logical lifetime when setting the native
	// Redis expiry, so the purge sweep observes logically expired entries
	// before Redis collects them.
	TTLGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		KeyPrefix: "answercache:v1:",
		TTLGrace:  24 * time.Hour,
	}
}

func (c Config) Validate() error {
	if c.KeyPrefix == "" {
		return fmt.Errorf("key prefix must not be empty")
	}
	if c.TTLGrace < 0 {
		return fmt.Errorf("ttl grace must not be negative, got %s", c.TTLGrace)
	}
	return nil
}

const stripeCount = 64

// AnswerCache is the shared quality-adaptive answer cache.
type AnswerCache struct {
	rdb    *redis.Client
	ledger *feedback.Ledger
	cfg    Config
	logger *slog.Logger

	stripes [stripeCount]sync.Mutex

	// now is swappable for expiry tests.
	now func() time.Time
}

func NewAnswerCache(rdb *redis.Client, ledger *feedback.Ledger, cfg Config) (*AnswerCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}
	return &AnswerCache{
		rdb:    rdb,
		ledger: ledger,
		cfg:    cfg,
		logger: slog.Default().With("component", "answer-cache"),
		now:    time.Now,
	}, nil
}

func (c *AnswerCache) key(fp fingerprint.Fingerprint) string {
	return c.cfg.KeyPrefix + fp.String()
}

func (c *AnswerCache) stripe(fp fingerprint.Fingerprint) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fp))
	return &c.stripes[h.Sum32()%stripeCount]
}

// get fetches and unmarshals one entry. Returns (nil, nil) on miss.
func (c *AnswerCache) get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("Failed to unmarshal cache entry, treating as miss", "key", key, "error", err)
		return nil, nil
	}
	return &entry, nil
}

// Lookup returns the cached answer for a fingerprint when it is unexpired,
// not invalidated, and of servable quality. Found hits increment HitCount.
// Entries failing any check are reported as misses, never as errors.
func (c *AnswerCache) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, bool, error) {
	mu := c.stripe(fp)
	mu.Lock()
	defer mu.Unlock()

	key := c.key(fp)
	entry, err := c.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}

	now := c.now()
	switch {
	case entry.Invalidated:
		c.logger.Debug("Cache entry invalidated, miss", "fingerprint", fp.String())
		return nil, false, nil
	case !now.Before(entry.ExpiresAt):
		c.logger.Debug("Cache entry expired, miss", "fingerprint", fp.String())
		return nil, false, nil
	case entry.QualityScore < MinServeThreshold:
		c.logger.Debug("Cache entry below serve threshold, miss",
			"fingerprint", fp.String(), "quality", entry.QualityScore)
		return nil, false, nil
	}

	entry.HitCount++
	if err := c.rewrite(ctx, key, entry); err != nil {
		// The read itself succeeded; losing one hit-count update must not
		// fail the serve.
		c.logger.Warn("Failed to persist hit count", "fingerprint", fp.String(), "error", err)
	}
	return entry, true, nil
}

// Store writes (or overwrites) the answer for a fingerprint. The lifetime
// comes from the quality tier step function; concurrent stores for one
// fingerprint are last-writer-wins. A successful store clears the feedback
// ledger so complaints about the previous answer do not condemn this one.
func (c *AnswerCache) Store(ctx context.Context, fp fingerprint.Fingerprint, answer string, groundingRefs []string, qualityScore float64, hasGrounding bool) (*Entry, error) {
	mu := c.stripe(fp)
	mu.Lock()
	defer mu.Unlock()

	now := c.now()
	ttl := TTLFor(qualityScore)
	entry := &Entry{
		Fingerprint:   fp.String(),
		Answer:        answer,
		GroundingRefs: groundingRefs,
		QualityScore:  qualityScore,
		HasGrounding:  hasGrounding,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(fp), data, ttl+c.cfg.TTLGrace).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := c.ledger.Clear(ctx, fp); err != nil {
		c.logger.Warn("Failed to clear feedback ledger after store",
			"fingerprint", fp.String(), "error", err)
	}

	c.logger.Debug("Cached answer",
		"fingerprint", fp.String(), "quality", qualityScore, "ttl", ttl)
	return entry, nil
}

// ReportFeedback records one negative report against a cached answer. When
// the distinct-reporter count reaches InvalidationThreshold the entry is
// invalidated and deleted eagerly so the wrong answer stops propagating.
// Returns ErrNotFound when the fingerprint has no cached entry.
func (c *AnswerCache) ReportFeedback(ctx context.Context, fp fingerprint.Fingerprint, reporterID, reason string) (count int64, invalidated bool, err error) {
	mu := c.stripe(fp)
	mu.Lock()
	defer mu.Unlock()

	key := c.key(fp)
	entry, err := c.get(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if entry == nil {
		return 0, false, ErrNotFound
	}

	count, err = c.ledger.Record(ctx, fp, reporterID, reason)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	entry.NegativeFeedbackCount = count
	if count >= InvalidationThreshold {
		entry.Invalidated = true
	}
	if err := c.rewrite(ctx, key, entry); err != nil {
		return count, entry.Invalidated, err
	}

	if entry.Invalidated {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			// The invalidated flag is already persisted, so lookups reject
			// the entry even though the delete failed.
			c.logger.Error("Failed to delete invalidated entry", "fingerprint", fp.String(), "error", err)
			return count, true, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.logger.Info("Cached answer invalidated by crowd feedback",
			"fingerprint", fp.String(), "reports", count)
	}
	return count, entry.Invalidated, nil
}

// rewrite persists a mutated entry without touching its native expiry.
func (c *AnswerCache) rewrite(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// PurgeExpired sweeps the cache and deletes logically expired entries.
// Redis native expiry would collect them eventually; the sweep keeps Stats
// honest and is exposed to operators for out-of-band runs. With dryRun set
// nothing is deleted.
func (c *AnswerCache) PurgeExpired(ctx context.Context, dryRun bool) (removed, remaining int64, err error) {
	now := c.now()
	pattern := c.cfg.KeyPrefix + "*"

	var cursor uint64
	for {
		keys, newCursor, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, remaining, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, key := range keys {
			entry, err := c.get(ctx, key)
			if err != nil {
				return removed, remaining, err
			}
			if entry == nil {
				continue
			}
			if now.Before(entry.ExpiresAt) && !entry.Invalidated {
				remaining++
				continue
			}
			removed++
			if dryRun {
				continue
			}
			if err := c.rdb.Del(ctx, key).Err(); err != nil {
				return removed, remaining, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}

		cursor = newCursor
		if cursor == 0 {
			break
		}
	}

	c.logger.Info("Cache purge swept", "removed", removed, "remaining", remaining, "dry_run", dryRun)
	return removed, remaining, nil
}

// Stats counts cached entries and how many of them are logically expired
// but not yet collected.
func (c *AnswerCache) Stats(ctx context.Context) (entries, expired int64, err error) {
	now := c.now()
	pattern := c.cfg.KeyPrefix + "*"

	var cursor uint64
	for {
		keys, newCursor, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return entries, expired, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, key := range keys {
			entry, err := c.get(ctx, key)
			if err != nil {
				return entries, expired, err
			}
			if entry == nil {
				continue
			}
			entries++
			if !now.Before(entry.ExpiresAt) {
				expired++
			}
		}

		cursor = newCursor
		if cursor == 0 {
			break
		}
	}
	return entries, expired, nil
}
