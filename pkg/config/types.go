// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"
)

// NotCursorConfig is the on-disk configuration for the service and CLI.
type NotCursorConfig struct {
	// Repository the agent reads, rewrites and pushes.
	Repo RepoConfig `yaml:"repo"`

	// Server controls the HTTP surface.
	Server ServerConfig `yaml:"server"`

	// LLM selects the oracle backend.
	LLM LLMConfig `yaml:"llm"`

	// Stream controls the SSE reporter.
	Stream StreamConfig `yaml:"stream"`

	// Store is the run history database.
	Store StoreConfig `yaml:"store"`

	// Logging controls operator diagnostics.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry controls traces and otel metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type RepoConfig struct {
	Path               string   `yaml:"path" validate:"required"`
	Remote             string   `yaml:"remote" validate:"required"`
	CommitMessage      string   `yaml:"commit_message" validate:"required"`
	CommitHistory      int      `yaml:"commit_history" validate:"gte=0,lte=100"`
	EditableExtensions []string `yaml:"editable_extensions" validate:"dive,startswith=."`
	BranchPrefix       string   `yaml:"branch_prefix" validate:"required"`
}

type ServerConfig struct {
	Port        int      `yaml:"port" validate:"gt=0,lte=65535"`
	CORSOrigins []string `yaml:"cors_origins"`
	// Runs kept in the in-process registry for /stream lookups.
	RetainRuns int `yaml:"retain_runs" validate:"gte=1"`
}

type LLMConfig struct {
	// Backend can be "together", "openai", "ollama" or "anthropic".
	Backend     string  `yaml:"backend" validate:"oneof=together openai ollama anthropic"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=1"`
	// RequestsPerMinute of 0 disables throttling.
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout"`

	// APIKey is never written to disk; it is filled from the environment.
	APIKey string `yaml:"-"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" validate:"gt=0"`
}

type StoreConfig struct {
	Path     string `yaml:"path" validate:"required_unless=InMemory true"`
	InMemory bool   `yaml:"in_memory"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	// Exporter can be "none", "stdout" or "otlp".
	Exporter     string `yaml:"exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// DefaultEditableExtensions are the source types the rewriter may touch.
var DefaultEditableExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".py"}

func DefaultConfig() NotCursorConfig {
	repoPath := "."
	if wd, err := getwd(); err == nil {
		repoPath = wd
	}
	exts := make([]string, len(DefaultEditableExtensions))
	copy(exts, DefaultEditableExtensions)

	return NotCursorConfig{
		Repo: RepoConfig{
			Path:               repoPath,
			Remote:             "origin",
			CommitMessage:      "Auto-generated code changes from AI workflow",
			CommitHistory:      5,
			EditableExtensions: exts,
			BranchPrefix:       "feature--",
		},
		Server: ServerConfig{
			Port:        5000,
			CORSOrigins: []string{"*"},
			RetainRuns:  20,
		},
		LLM: LLMConfig{
			Backend:           "together",
			Model:             "mistralai/Mixtral-8x7B-Instruct-v0.1",
			Temperature:       0.7,
			MaxTokens:         4096,
			RequestsPerMinute: 0,
		},
		Stream: StreamConfig{
			HeartbeatInterval: time.Second,
		},
		Store: StoreConfig{
			Path: "~/.notcursor/runs",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.notcursor/logs",
		},
		Telemetry: TelemetryConfig{
			Exporter:    "none",
			ServiceName: "notcursor",
		},
	}
}
