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
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	memoryUser   string   // Owner of the remembered answers
	memoryAnswer string   // Answer text for remember
	memoryRefs   []string // Source references for remember
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage a student's remembered answers",
	Long: `Remembered answers are private to one student and never expire. They
are served ahead of the shared cache and are the only tier a student can
edit directly.`,
}

var memoryRememberCmd = &cobra.Command{
	Use:   "remember [question]",
	Short: "Pin an answer for a student",
	Long: `Stores an answer under the student's ID, keyed by the normalized
question.

Example:
  vidyactl memory remember what is the capital of france \
      --user student-42 --answer "Paris." --ref geo-8-1`,
	Args: cobra.MinimumNArgs(1),
	Run:  runMemoryRememberCommand,
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall [question]",
	Short: "Look up a student's remembered answer",
	Args:  cobra.MinimumNArgs(1),
	Run:   runMemoryRecallCommand,
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget [question]",
	Short: "Remove a remembered answer",
	Args:  cobra.MinimumNArgs(1),
	Run:   runMemoryForgetCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	memoryCmd.PersistentFlags().StringVarP(&memoryUser, "user", "u", "",
		"Student ID that owns the memory (required)")
	memoryRememberCmd.Flags().StringVar(&memoryAnswer, "answer", "",
		"Answer text to remember (required)")
	memoryRememberCmd.Flags().StringSliceVar(&memoryRefs, "ref", nil,
		"Source reference, repeatable")

	memoryCmd.AddCommand(memoryRememberCmd)
	memoryCmd.AddCommand(memoryRecallCmd)
	memoryCmd.AddCommand(memoryForgetCmd)
	rootCmd.AddCommand(memoryCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func requireMemoryUser() {
	if memoryUser == "" {
		log.Fatalf("Error: --user is required for memory commands")
	}
}

func runMemoryRememberCommand(cmd *cobra.Command, args []string) {
	requireMemoryUser()
	if memoryAnswer == "" {
		log.Fatalf("Error: --answer is required")
	}

	req := datatypes.SaveMemoryRequest{
		UserID:   memoryUser,
		Question: strings.Join(args, " "),
		Answer:   memoryAnswer,
		Refs:     memoryRefs,
	}
	var record datatypes.MemoryRecord
	if err := postJSON(resolveServerURL(serverFlag)+"/v1/memory", req, &record); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Remembered for %s (keyed as %q)\n", record.OwnerID, record.NormalizedQuestion)
}

func runMemoryRecallCommand(cmd *cobra.Command, args []string) {
	requireMemoryUser()
	question := strings.Join(args, " ")

	recallURL := fmt.Sprintf("%s/v1/memory?user_id=%s&q=%s",
		resolveServerURL(serverFlag), url.QueryEscape(memoryUser), url.QueryEscape(question))
	var record datatypes.MemoryRecord
	if err := getJSON(recallURL, &record); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Question: %s\n", record.Question)
	fmt.Printf("Answer:   %s\n", record.Answer)
	if len(record.GroundingRefs) > 0 {
		fmt.Printf("Sources:  %s\n", strings.Join(record.GroundingRefs, ", "))
	}
	fmt.Printf("Saved:    %s (recalled %d times)\n",
		record.CreatedAt.Format(time.RFC3339), record.AccessCount)
}

func runMemoryForgetCommand(cmd *cobra.Command, args []string) {
	requireMemoryUser()

	req := datatypes.ForgetMemoryRequest{
		UserID:   memoryUser,
		Question: strings.Join(args, " "),
	}
	var resp datatypes.ForgetMemoryResponse
	if err := deleteJSON(resolveServerURL(serverFlag)+"/v1/memory", req, &resp); err != nil {
		log.Fatalf("Error: %v", err)
	}

	if resp.Removed {
		fmt.Println("Forgotten.")
	} else {
		fmt.Println("Nothing to remove: no remembered answer matched that question.")
	}
}
