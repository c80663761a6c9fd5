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

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var purgeDryRun bool // Report what would be removed without removing it

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Administer the shared answer cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts",
	Run:   runCacheStatsCommand,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Sweep logically expired entries",
	Long: `Removes entries whose quality-tier lifetime has passed but which are
still inside the grace window Redis keeps them for. Use --dry-run to see
what a sweep would remove.`,
	Run: runCachePurgeCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	cachePurgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false,
		"Count purgeable entries without removing them")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runCacheStatsCommand(cmd *cobra.Command, args []string) {
	var stats struct {
		Entries int64 `json:"entries"`
		Expired int64 `json:"expired"`
	}
	if err := getJSON(resolveServerURL(serverFlag)+"/v1/cache/stats", &stats); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Cached answers: %d\n", stats.Entries)
	fmt.Printf("Logically expired (awaiting purge): %d\n", stats.Expired)
}

func runCachePurgeCommand(cmd *cobra.Command, args []string) {
	payload := map[string]bool{"dry_run": purgeDryRun}
	var result struct {
		Removed   int64 `json:"removed"`
		Remaining int64 `json:"remaining"`
		DryRun    bool  `json:"dry_run"`
	}
	if err := postJSON(resolveServerURL(serverFlag)+"/v1/cache/purge", payload, &result); err != nil {
		log.Fatalf("Error: %v", err)
	}

	if result.DryRun {
		fmt.Printf("Dry run: %d entries would be removed, %d would remain\n",
			result.Removed, result.Remaining)
		return
	}
	fmt.Printf("Removed %d expired entries, %d remain\n", result.Removed, result.Remaining)
}
