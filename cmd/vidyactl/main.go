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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the optional ~/.vidya/config.yaml file.
type Config struct {
	Server string `mapstructure:"server"`
}

var (
	rootCmd = &cobra.Command{
		Use:   "vidyactl",
		Short: "A CLI to manage the Vidya answer service",
		Long: `Vidyactl talks to a running answerd instance: ask questions, report
wrong answers, manage a student's remembered answers, and administer the
shared answer cache.`,
	}
	serverFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "",
		"Base URL of the answerd service (default http://localhost:8084)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveServerURL picks the answerd base URL: flag, then VIDYA_SERVER,
// then ~/.vidya/config.yaml, then the local default.
func resolveServerURL(flagValue string) string {
	if flagValue != "" {
		return strings.TrimRight(flagValue, "/")
	}
	if env := os.Getenv("VIDYA_SERVER"); env != "" {
		return strings.TrimRight(env, "/")
	}
	if cfg, err := loadConfig(); err == nil && cfg.Server != "" {
		return strings.TrimRight(cfg.Server, "/")
	}
	return "http://localhost:8084"
}

func loadConfig() (Config, error) {
	var cfg Config
	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}
	configFilePath := filepath.Join(home, ".vidya", "config.yaml")
	if _, err := os.Stat(configFilePath); err != nil {
		return cfg, err
	}
	v := viper.New()
	v.SetConfigFile(configFilePath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("error reading config file %s: %w", configFilePath, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config file %s: %w", configFilePath, err)
	}
	return cfg, nil
}

func postJSON(url string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to reach answerd: %w", err)
	}
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to reach answerd: %w", err)
	}
	return decodeResponse(resp, out)
}

func deleteJSON(url string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequest(http.MethodDelete, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach answerd: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Printf("Raw response from answerd: %s", string(body))
		return fmt.Errorf("failed to parse response from answerd: %w", err)
	}
	return nil
}
