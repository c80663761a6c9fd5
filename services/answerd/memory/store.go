// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
	"github.com/VidyaLabs/VidyaServe/services/answerd/fingerprint"
)

// ErrInvalidOwner is returned when an owner ID is empty. Owner IDs are
// opaque tokens validated at the request boundary; keys embed them with
// colon separators.
var ErrInvalidOwner = errors.New("owner id must not be empty")

// Store is the per-user durable memory tier.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "memory-store"),
		now:    time.Now,
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		s.gc.start()
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

func recordKey(ownerID, normalizedQuestion string) []byte {
	return []byte(fmt.Sprintf("mem:%s:%s", ownerID, normalizedQuestion))
}

func ownerPrefix(ownerID string) []byte {
	return []byte(fmt.Sprintf("mem:%s:", ownerID))
}

// withTxn executes fn in a read-write transaction after checking the
// context.
func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.Update(fn)
}

// Save writes (or overwrites) a remembered answer for one user. The
// original question text is preserved in the record; the key uses the
// normalized form so later recalls match regardless of casing and
// punctuation.
func (s *Store) Save(ctx context.Context, ownerID, question, answer string, refs []string) (*datatypes.MemoryRecord, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	normalized := fingerprint.Normalize(question)
	if normalized == "" {
		return nil, fingerprint.ErrEmptyQuestion
	}

	now := s.now()
	record := &datatypes.MemoryRecord{
		OwnerID:            ownerID,
		Question:           question,
		NormalizedQuestion: normalized,
		Answer:             answer,
		GroundingRefs:      refs,
		CreatedAt:          now,
		LastAccessedAt:     now,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal memory record: %w", err)
	}

	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(recordKey(ownerID, normalized), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save memory record: %w", err)
	}

	s.logger.Debug("Memory record saved", "owner", ownerID, "question", normalized)
	return record, nil
}

// Find returns the first remembered record whose normalized question
// starts with the normalized query, in key order. A hit increments
// AccessCount and stamps LastAccessedAt within the same transaction.
func (s *Store) Find(ctx context.Context, ownerID, questionPrefix string) (*datatypes.MemoryRecord, bool, error) {
	if ownerID == "" {
		return nil, false, ErrInvalidOwner
	}
	normalized := fingerprint.Normalize(questionPrefix)
	if normalized == "" {
		return nil, false, fingerprint.ErrEmptyQuestion
	}

	prefix := append(ownerPrefix(ownerID), []byte(normalized)...)
	var record *datatypes.MemoryRecord

	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		item := it.Item()
		key := item.KeyCopy(nil)
		var found datatypes.MemoryRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &found)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal memory record: %w", err)
		}

		found.AccessCount++
		found.LastAccessedAt = s.now()
		data, err := json.Marshal(&found)
		if err != nil {
			return fmt.Errorf("failed to marshal memory record: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to persist access count: %w", err)
		}

		record = &found
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to find memory record: %w", err)
	}
	if record == nil {
		return nil, false, nil
	}
	return record, true, nil
}

// Forget removes one remembered answer by exact question. Forgetting an
// absent record is a no-op reported through the removed flag, not an
// error.
func (s *Store) Forget(ctx context.Context, ownerID, question string) (removed bool, err error) {
	if ownerID == "" {
		return false, ErrInvalidOwner
	}
	normalized := fingerprint.Normalize(question)
	if normalized == "" {
		return false, fingerprint.ErrEmptyQuestion
	}

	key := recordKey(ownerID, normalized)
	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to forget memory record: %w", err)
	}

	if removed {
		s.logger.Debug("Memory record forgotten", "owner", ownerID, "question", normalized)
	}
	return removed, nil
}
