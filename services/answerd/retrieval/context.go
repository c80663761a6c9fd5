// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"fmt"
	"strings"
)

// BuildContext assembles retrieved passages into the excerpt block handed to
// the generator. Each excerpt is labeled with its curriculum coordinates so
// the model can cite them back, for example:
//
//	[Std 7, Science, Ch 12]
//	Photosynthesis is the process by which green plants...
//
// Excerpts are separated by blank lines. Missing coordinates render as "?".
// Returns the empty string for an empty passage list.
func BuildContext(passages []Passage) string {
	if len(passages) == 0 {
		return ""
	}

	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		label := fmt.Sprintf("[Std %s, %s, Ch %s]",
			orUnknown(p.Grade), orUnknown(p.Subject), orUnknown(p.Chapter))
		parts = append(parts, label+"\n"+p.Content)
	}

	return strings.Join(parts, "\n\n")
}

func orUnknown(v string) string {
	if v == "" {
		return "?"
	}
	return v
}
