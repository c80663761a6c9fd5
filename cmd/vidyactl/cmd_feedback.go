// Copyright (C) 2025 Vidya Labs (oss@vidyalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	feedbackReporter string // Reporter identity for deduplication
	feedbackReason   string // Free-text reason for the report
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var feedbackCmd = &cobra.Command{
	Use:   "feedback [question]",
	Short: "Reports a cached answer as wrong",
	Long: `Reports the cached answer for a question. Repeat reports from the same
reporter count once; when enough distinct reporters agree, the entry is
invalidated and the next ask regenerates it.

Examples:
  vidyactl feedback what is photosynthesis --reporter student-42 --reason "wrong chapter"
  vidyactl feedback what is photosynthesis`,
	Args: cobra.MinimumNArgs(1),
	Run:  runFeedbackCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	feedbackCmd.Flags().StringVar(&feedbackReporter, "reporter", "",
		"Reporter ID for deduplication (anonymous when omitted)")
	feedbackCmd.Flags().StringVar(&feedbackReason, "reason", "",
		"Why the answer is wrong")
	rootCmd.AddCommand(feedbackCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runFeedbackCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")

	req := datatypes.FeedbackRequest{
		Question:   question,
		ReporterID: feedbackReporter,
		Reason:     feedbackReason,
	}
	var resp datatypes.FeedbackResponse
	if err := postJSON(resolveServerURL(serverFlag)+"/v1/feedback", req, &resp); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Recorded report %d for fingerprint %s\n", resp.FeedbackCount, resp.Fingerprint)
	if resp.Invalidated {
		fmt.Println("The cached answer has been invalidated and will be regenerated on the next ask.")
	} else {
		fmt.Println("The cached answer is still serving; more distinct reports are needed to invalidate it.")
	}
}
