// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the not-cursor YAML configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML file,
// environment variables, then command-line flags applied by the caller.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ishaan-arora-1/not-cursor/pkg/logging"
)

var getwd = os.Getwd

var configValidate = validator.New()

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// DefaultPath returns ~/.notcursor/notcursor.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".notcursor", "notcursor.yaml"), nil
}

// Load reads the config at path, creating it with defaults on first run,
// then applies environment overrides and validates the result. An empty
// path means DefaultPath.
func Load(path string) (NotCursorConfig, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment.
func LoadWithEnv(path string, lookup LookupFunc) (NotCursorConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return NotCursorConfig{}, err
		}
		path = p
	}
	path = logging.ExpandPath(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("First run detected, creating the config", "path", path)
		if err := createDefault(path); err != nil {
			return NotCursorConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return NotCursorConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return NotCursorConfig{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	if err := ApplyEnv(&cfg, lookup); err != nil {
		return NotCursorConfig{}, err
	}
	if err := ResolveRepoPath(&cfg); err != nil {
		return NotCursorConfig{}, err
	}
	if err := Validate(&cfg); err != nil {
		return NotCursorConfig{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
//
//   - NOTCURSOR_REPO_PATH, NOTCURSOR_PORT
//   - LLM_BACKEND_TYPE, LLM_MODEL, OLLAMA_BASE_URL
//   - TOGETHER_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY (by backend)
//   - OTEL_EXPORTER_OTLP_ENDPOINT (switches the exporter to otlp)
func ApplyEnv(cfg *NotCursorConfig, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup("NOTCURSOR_REPO_PATH"); ok && v != "" {
		cfg.Repo.Path = v
	}
	if v, ok := lookup("NOTCURSOR_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NOTCURSOR_PORT must be an integer: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("LLM_BACKEND_TYPE"); ok && v != "" {
		cfg.LLM.Backend = strings.ToLower(v)
	}
	if v, ok := lookup("LLM_MODEL"); ok && v != "" {
		cfg.LLM.Model = v
	}
	if v, ok := lookup("OLLAMA_BASE_URL"); ok && v != "" && cfg.LLM.Backend == "ollama" {
		cfg.LLM.BaseURL = v
	}

	keyVar := map[string]string{
		"together":  "TOGETHER_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
	}[cfg.LLM.Backend]
	if keyVar != "" {
		if v, ok := lookup(keyVar); ok {
			cfg.LLM.APIKey = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && v != "" {
		cfg.Telemetry.OTLPEndpoint = v
		if cfg.Telemetry.Exporter == "none" {
			cfg.Telemetry.Exporter = "otlp"
		}
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func Validate(cfg *NotCursorConfig) error {
	if err := configValidate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Telemetry.Exporter == "otlp" && cfg.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("invalid config: telemetry.otlp_endpoint is required for the otlp exporter")
	}
	return nil
}

// ResolveRepoPath points an empty repo.path at the current working
// directory.
func ResolveRepoPath(cfg *NotCursorConfig) error {
	if strings.TrimSpace(cfg.Repo.Path) != "" {
		return nil
	}
	wd, err := getwd()
	if err != nil {
		return fmt.Errorf("could not resolve the repository from the working directory: %w", err)
	}
	cfg.Repo.Path = wd
	return nil
}

// createDefault writes the defaults with repo.path left empty; it is
// resolved on every load.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	cfg := DefaultConfig()
	cfg.Repo.Path = ""
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
