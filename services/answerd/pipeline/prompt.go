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
	"fmt"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
	"github.com/VidyaLabs/VidyaServe/services/answerd/fingerprint"
	"github.com/VidyaLabs/VidyaServe/services/answerd/retrieval"
)

// RefusalText is the fixed answer served when retrieval finds nothing
// usable. The wording never varies so students learn to recognize it.
const RefusalText = "I couldn't find anything about that in the study materials, so I can't give you a reliable answer. Try rephrasing the question or asking about a topic from your syllabus."

// FailureText is the fixed message surfaced when every generation provider
// is unavailable.
const FailureText = "Sorry, I'm having trouble generating a response right now. Please try again later."

// conversationalPhrases are greetings and courtesies that skip retrieval
// entirely. Matching is exact over the normalized question, never a prefix,
// so knowledge questions like "hi can you explain photosynthesis" still go
// through retrieval. Entries are stored in normalized form ("what's up"
// normalizes to "what s up").
var conversationalPhrases = map[string]struct{}{
	"hi":           {},
	"hello":        {},
	"hey":          {},
	"good morning": {},
	"good evening": {},
	"bye":          {},
	"goodbye":      {},
	"see you":      {},
	"thank you":    {},
	"thanks":       {},
	"thank u":      {},
	"how are you":  {},
	"whats up":     {},
	"what s up":    {},
	"yes":          {},
	"no":           {},
	"ok":           {},
	"okay":         {},
}

// IsConversational reports whether a question is pure small talk that needs
// no study-material grounding.
func IsConversational(question string) bool {
	_, ok := conversationalPhrases[fingerprint.Normalize(question)]
	return ok
}

// groundedSystem builds the system instruction for knowledge questions. The
// wording pins the model to the retrieved excerpts and requires an explicit
// statement when they are insufficient.
func groundedSystem(grade string) string {
	return fmt.Sprintf("You are an expert study tutor helping %s. "+
		"Answer the question using ONLY the study material excerpts provided with it. "+
		"Do not add facts that are not in the excerpts. "+
		"If the excerpts do not contain enough information to answer fully, say so explicitly instead of guessing. "+
		"Explain clearly and simply, at a level the student can follow.", describeStudent(grade))
}

// conversationalSystem builds the system instruction for small talk.
func conversationalSystem(grade string) string {
	return fmt.Sprintf("You are a friendly study tutor chatting with %s. "+
		"Reply warmly in one or two sentences and encourage them to ask about their study topics.", describeStudent(grade))
}

func describeStudent(grade string) string {
	if grade == "" {
		return "a student"
	}
	return fmt.Sprintf("a standard %s student", grade)
}

// buildGroundedMessages assembles the chat transcript for a grounded
// generation: system instruction, prior turns, then the question bundled
// with its labeled excerpts.
func buildGroundedMessages(req *datatypes.AskRequest, passages []retrieval.Passage) []datatypes.Message {
	messages := make([]datatypes.Message, 0, len(req.History)+2)
	messages = append(messages, datatypes.Message{Role: "system", Content: groundedSystem(req.Grade)})
	messages = append(messages, req.History...)
	messages = append(messages, datatypes.Message{
		Role:    "user",
		Content: fmt.Sprintf("Question: %s\n\nStudy material excerpts:\n%s", req.Question, retrieval.BuildContext(passages)),
	})
	return messages
}

// buildConversationalMessages assembles the chat transcript for small talk.
// The question goes through verbatim with no excerpt block.
func buildConversationalMessages(req *datatypes.AskRequest) []datatypes.Message {
	messages := make([]datatypes.Message, 0, len(req.History)+2)
	messages = append(messages, datatypes.Message{Role: "system", Content: conversationalSystem(req.Grade)})
	messages = append(messages, req.History...)
	messages = append(messages, datatypes.Message{Role: "user", Content: req.Question})
	return messages
}
