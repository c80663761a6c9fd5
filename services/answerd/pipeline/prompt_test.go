// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
	"github.com/VidyaLabs/VidyaServe/services/answerd/retrieval"
)

func TestIsConversational(t *testing.T) {
	cases := []struct {
		question string
		want     bool
	}{
		{"hi", true},
		{"Hello!", true},
		{"HEY", true},
		{"good morning", true},
		{"Thanks!", true},
		{"thank u", true},
		{"What's up?", true},
		{"whats up", true},
		{"how are you", true},
		{"ok", true},
		{"bye", true},
		{"hi can you explain photosynthesis", false},
		{"what is photosynthesis", false},
		{"history", false},
		{"okra farming", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			assert.Equal(t, tc.want, IsConversational(tc.question))
		})
	}
}

func TestFixedTexts(t *testing.T) {
	assert.Contains(t, RefusalText, "couldn't find anything")
	assert.Contains(t, RefusalText, "syllabus")
	assert.Contains(t, FailureText, "try again later")
}

func TestBuildGroundedMessages(t *testing.T) {
	req := &datatypes.AskRequest{
		Question: "Why do leaves look green?",
		Grade:    "6",
		History: []datatypes.Message{
			{Role: "user", Content: "We started the plants chapter."},
		},
	}
	passages := []retrieval.Passage{
		{Content: "Chlorophyll reflects green light.", Subject: "Science", Grade: "6", Chapter: "3", Source: "sci-6-3", Relevance: 0.9},
	}

	messages := buildGroundedMessages(req, passages)
	require.Len(t, messages, 3)

	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "standard 6 student")
	assert.Contains(t, messages[0].Content, "ONLY the study material excerpts")
	assert.Contains(t, messages[0].Content, "say so explicitly")

	assert.Equal(t, req.History[0], messages[1])

	assert.Equal(t, "user", messages[2].Role)
	assert.Contains(t, messages[2].Content, "Question: Why do leaves look green?")
	assert.Contains(t, messages[2].Content, "[Std 6, Science, Ch 3]")
	assert.Contains(t, messages[2].Content, "Chlorophyll reflects green light.")
}

func TestBuildGroundedMessages_NoGrade(t *testing.T) {
	req := &datatypes.AskRequest{Question: "Why do leaves look green?"}
	messages := buildGroundedMessages(req, []retrieval.Passage{{Content: "x"}})
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0].Content, "helping a student")
}

func TestBuildConversationalMessages(t *testing.T) {
	req := &datatypes.AskRequest{Question: "hi", Grade: "8"}
	messages := buildConversationalMessages(req)
	require.Len(t, messages, 2)

	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "friendly study tutor")
	assert.Contains(t, messages[0].Content, "standard 8 student")
	assert.NotContains(t, messages[0].Content, "excerpts",
		"small talk carries no grounding instruction")

	assert.Equal(t, datatypes.Message{Role: "user", Content: "hi"}, messages[1])
}
