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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".notcursor", "notcursor.yaml")

	require.NoError(t, createDefault(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var cfg NotCursorConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "together", cfg.LLM.Backend)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Stream.HeartbeatInterval)
	assert.Equal(t, []string{".ts", ".tsx", ".js", ".jsx", ".py"}, cfg.Repo.EditableExtensions)
	assert.NotContains(t, string(data), "api_key")
}

func TestLoadWithEnv_FirstRunCreatesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "notcursor.yaml")

	cfg, err := LoadWithEnv(configPath, envMap(nil))
	require.NoError(t, err)

	_, statErr := os.Stat(configPath)
	assert.NoError(t, statErr)
	assert.Equal(t, "origin", cfg.Repo.Remote)
	assert.Equal(t, 5, cfg.Repo.CommitHistory)
}

func stubGetwd(t *testing.T, dir *string) {
	t.Helper()
	orig := getwd
	getwd = func() (string, error) { return *dir, nil }
	t.Cleanup(func() { getwd = orig })
}

func TestLoadWithEnv_RepoPathFollowsWorkingDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "notcursor.yaml")
	wd := "/work/repoA"
	stubGetwd(t, &wd)

	first, err := LoadWithEnv(configPath, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "/work/repoA", first.Repo.Path)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	var onDisk NotCursorConfig
	require.NoError(t, yaml.Unmarshal(data, &onDisk))
	assert.Empty(t, onDisk.Repo.Path)

	wd = "/work/repoB"
	second, err := LoadWithEnv(configPath, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "/work/repoB", second.Repo.Path)
}

func TestLoadWithEnv_ExplicitRepoPathWins(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "notcursor.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("repo:\n  path: \"\"\n"), 0644))
	wd := "/work/cwd"
	stubGetwd(t, &wd)

	cfg, err := LoadWithEnv(configPath, envMap(map[string]string{"NOTCURSOR_REPO_PATH": "/work/env"}))
	require.NoError(t, err)
	assert.Equal(t, "/work/env", cfg.Repo.Path)

	cfg, err = LoadWithEnv(configPath, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "/work/cwd", cfg.Repo.Path)
}

func TestLoadWithEnv_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "notcursor.yaml")
	body := "repo:\n  path: /srv/app\nserver:\n  port: 8080\nstream:\n  heartbeat_interval: 250ms\n"
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))

	cfg, err := LoadWithEnv(configPath, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "/srv/app", cfg.Repo.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.HeartbeatInterval)
	assert.Equal(t, "origin", cfg.Repo.Remote)
	assert.Equal(t, "feature--", cfg.Repo.BranchPrefix)
}

func TestLoadWithEnv_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "notcursor.yaml")

	cfg, err := LoadWithEnv(configPath, envMap(map[string]string{
		"NOTCURSOR_REPO_PATH":         "/work/repo",
		"NOTCURSOR_PORT":              "7070",
		"LLM_BACKEND_TYPE":            "OpenAI",
		"OPENAI_API_KEY":              "  sk-test  ",
		"TOGETHER_API_KEY":            "ignored",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/work/repo", cfg.Repo.Path)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "otlp", cfg.Telemetry.Exporter)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
}

func TestLoadWithEnv_BadPort(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "notcursor.yaml")
	_, err := LoadWithEnv(configPath, envMap(map[string]string{"NOTCURSOR_PORT": "http"}))
	assert.Error(t, err)
}

func TestLoadWithEnv_MalformedYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "notcursor.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("repo: [unclosed"), 0644))

	_, err := LoadWithEnv(configPath, envMap(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NotCursorConfig)
		wantErr bool
	}{
		{"defaults", func(*NotCursorConfig) {}, false},
		{"unknown backend", func(c *NotCursorConfig) { c.LLM.Backend = "gpt-local" }, true},
		{"port out of range", func(c *NotCursorConfig) { c.Server.Port = 70000 }, true},
		{"extension without dot", func(c *NotCursorConfig) { c.Repo.EditableExtensions = []string{"go"} }, true},
		{"empty repo path", func(c *NotCursorConfig) { c.Repo.Path = "" }, true},
		{"zero heartbeat", func(c *NotCursorConfig) { c.Stream.HeartbeatInterval = 0 }, true},
		{"otlp without endpoint", func(c *NotCursorConfig) { c.Telemetry.Exporter = "otlp" }, true},
		{"in-memory store needs no path", func(c *NotCursorConfig) {
			c.Store.InMemory = true
			c.Store.Path = ""
		}, false},
		{"disk store needs path", func(c *NotCursorConfig) { c.Store.Path = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
