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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VidyaLabs/VidyaServe/services/answerd/fingerprint"
)

// createTestStore opens an in-memory store torn down with the test.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(InMemoryStoreConfig())
	require.NoError(t, err, "in-memory store should open")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// =============================================================================
// Save and Find Tests
// =============================================================================

func TestStore_SaveAndFind_Roundtrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, "student-42", "What is the capital of France?", "Paris.", []string{"geo8-ch1"})
	require.NoError(t, err)
	assert.Equal(t, "what is the capital of france", saved.NormalizedQuestion)

	record, found, err := s.Find(ctx, "student-42", "What is the capital of France?")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Paris.", record.Answer)
	assert.Equal(t, "What is the capital of France?", record.Question,
		"the original question text is preserved")
	assert.Equal(t, []string{"geo8-ch1"}, record.GroundingRefs)
}

func TestStore_Find_MatchesByPrefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "student-42", "what is the capital of france", "Paris.", nil)
	require.NoError(t, err)

	record, found, err := s.Find(ctx, "student-42", "what is the capital")
	require.NoError(t, err)
	require.True(t, found, "a normalized prefix of the stored question should match")
	assert.Equal(t, "Paris.", record.Answer)
}

func TestStore_Find_NormalizesQuery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "student-42", "what is the capital of france", "Paris.", nil)
	require.NoError(t, err)

	_, found, err := s.Find(ctx, "student-42", "What IS the Capital?!")
	require.NoError(t, err)
	assert.True(t, found, "casing and punctuation must not affect recall")
}

func TestStore_Find_MissWithoutRecord(t *testing.T) {
	s := createTestStore(t)

	record, found, err := s.Find(context.Background(), "student-42", "what is photosynthesis")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, record)
}

func TestStore_Find_IncrementsAccessCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "student-42", "what is the capital of france", "Paris.", nil)
	require.NoError(t, err)

	for want := int64(1); want <= 3; want++ {
		record, found, err := s.Find(ctx, "student-42", "what is the capital")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want, record.AccessCount,
			"each successful recall should increment the access count")
	}
}

func TestStore_Save_OverwritesSameQuestion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "student-42", "what is the capital of france", "Lyon.", nil)
	require.NoError(t, err)
	_, err = s.Save(ctx, "student-42", "What is the capital of FRANCE", "Paris.", nil)
	require.NoError(t, err)

	record, found, err := s.Find(ctx, "student-42", "what is the capital of france")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Paris.", record.Answer,
		"equivalent question forms share one record, last write wins")
	assert.Equal(t, int64(1), record.AccessCount, "overwrite resets the access count")
}

func TestStore_IsolatesOwners(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "student-42", "what is the capital of france", "Paris.", nil)
	require.NoError(t, err)

	_, found, err := s.Find(ctx, "student-7", "what is the capital of france")
	require.NoError(t, err)
	assert.False(t, found, "one user's memory must be invisible to another")
}

// =============================================================================
// Forget Tests
// =============================================================================

func TestStore_Forget_RemovesRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "student-42", "what is the capital of france", "Paris.", nil)
	require.NoError(t, err)

	removed, err := s.Forget(ctx, "student-42", "What is the capital of France?")
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err := s.Find(ctx, "student-42", "what is the capital of france")
	require.NoError(t, err)
	assert.False(t, found, "forgotten records must not be recalled")
}

func TestStore_Forget_AbsentRecordIsNoop(t *testing.T) {
	s := createTestStore(t)

	removed, err := s.Forget(context.Background(), "student-42", "never remembered")
	require.NoError(t, err, "forgetting nothing is not an error")
	assert.False(t, removed)
}

// =============================================================================
// Input Validation Tests
// =============================================================================

func TestStore_RejectsEmptyOwner(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "", "question", "answer", nil)
	assert.ErrorIs(t, err, ErrInvalidOwner)

	_, _, err = s.Find(ctx, "", "question")
	assert.ErrorIs(t, err, ErrInvalidOwner)

	_, err = s.Forget(ctx, "", "question")
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestStore_RejectsEmptyQuestion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "student-42", "  ?!? ", "answer", nil)
	assert.ErrorIs(t, err, fingerprint.ErrEmptyQuestion,
		"punctuation-only questions normalize to nothing")

	_, _, err = s.Find(ctx, "student-42", "")
	assert.ErrorIs(t, err, fingerprint.ErrEmptyQuestion)
}

// =============================================================================
// Config Tests
// =============================================================================

func TestStoreConfig_Validate(t *testing.T) {
	assert.NoError(t, InMemoryStoreConfig().Validate())
	assert.Error(t, StoreConfig{}.Validate(), "persistent store needs a path")
	assert.Error(t, StoreConfig{InMemory: true, GCDiscardRatio: 1.5}.Validate())

	cfg := DefaultStoreConfig()
	cfg.Path = t.TempDir()
	assert.NoError(t, cfg.Validate())
}
