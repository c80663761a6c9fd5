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
	askGrade string // Grade filter for retrieval
	askUser  string // Student identity for the memory tier
	askTopK  int    // Retrieval result limit
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Asks a question and shows where the answer came from",
	Long: `Sends a question to answerd, which serves it from the student's own
remembered answers, the shared cache, or retrieval-grounded generation. A
question with no matching study material is refused rather than guessed.

Examples:
  vidyactl ask what is photosynthesis
  vidyactl ask --grade 7 --user student-42 why do leaves look green`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAskCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	askCmd.Flags().StringVarP(&askGrade, "grade", "g", "",
		"Restrict retrieval to one grade (e.g. 7)")
	askCmd.Flags().StringVarP(&askUser, "user", "u", "",
		"Student ID, enables the personal memory tier")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0,
		"Retrieval result limit (default 20)")
	rootCmd.AddCommand(askCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	req := datatypes.AskRequest{
		Question: question,
		UserID:   askUser,
		Grade:    askGrade,
		TopK:     askTopK,
	}
	var resp datatypes.AskResponse
	if err := postJSON(resolveServerURL(serverFlag)+"/v1/ask", req, &resp); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\nAnswer:\n%s\n", resp.Answer)
	if resp.Refused {
		fmt.Println("\n(No study material matched this question, so the service refused to guess.)")
		return
	}

	fmt.Printf("\nServed from: %s", resp.Source)
	if resp.QualityScore > 0 {
		fmt.Printf(" (quality %.2f)", resp.QualityScore)
	}
	fmt.Println()

	if len(resp.Sources) > 0 {
		fmt.Println("\nSources Used:")
		for i, source := range resp.Sources {
			coordinates := ""
			if source.Subject != "" || source.Grade != "" {
				coordinates = fmt.Sprintf(" [Std %s, %s, Ch %s]", source.Grade, source.Subject, source.Chapter)
			}
			scoreInfo := ""
			if source.Relevance != 0 {
				scoreInfo = fmt.Sprintf(" (Relevance: %.4f)", source.Relevance)
			}
			fmt.Printf("%d. %s%s%s\n", i+1, source.SourceID, coordinates, scoreInfo)
		}
	}
	fmt.Println("\n---")
}
