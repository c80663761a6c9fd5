// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fingerprint derives stable cache keys from natural-language
// questions.
//
// Two questions that differ only in casing, punctuation, or whitespace
// reduce to the same normalized form and therefore the same fingerprint.
// The fingerprint is the sole key for the shared answer cache; it must be
// identical across process restarts and across service instances.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
)

// Fingerprint is the hex digest of a normalized question.
type Fingerprint string

// ErrEmptyQuestion indicates input that is empty after normalization.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Normalize lower-cases the question, replaces every rune that is not a
// letter, digit, or underscore with a space, and collapses runs of
// whitespace to single spaces.
func Normalize(question string) string {
	lower := strings.ToLower(question)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// New normalizes the question and returns its fingerprint.
//
// Inputs that are empty, whitespace-only, or contain no letters or digits
// are rejected with ErrEmptyQuestion before any cache tier is consulted.
// The digest is MD5 over the normalized string; the key is a stable
// identifier, not a security boundary.
func New(question string) (Fingerprint, error) {
	normalized := Normalize(question)
	if normalized == "" {
		return "", ErrEmptyQuestion
	}

	sum := md5.Sum([]byte(normalized))
	return Fingerprint(hex.EncodeToString(sum[:])), nil
}

// String returns the digest as a plain string.
func (f Fingerprint) String() string {
	return string(f)
}
