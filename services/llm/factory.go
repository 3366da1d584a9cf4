// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"

	"github.com/ishaan-arora-1/not-cursor/pkg/config"
)

// NewFromConfig builds the configured backend, wrapped with throttling
// (when requests_per_minute > 0) and instrumentation.
func NewFromConfig(cfg config.LLMConfig, meter metric.Meter) (LLMClient, error) {
	var httpClient *http.Client
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	secret := NewSecret(cfg.APIKey)

	var (
		client LLMClient
		err    error
	)
	switch cfg.Backend {
	case "together":
		client, err = NewTogetherClient(secret, cfg.Model, cfg.BaseURL, httpClient)
	case "openai":
		client, err = NewOpenAIClient(secret, cfg.Model, cfg.BaseURL, httpClient)
	case "anthropic":
		client, err = NewAnthropicClient(secret, cfg.Model, cfg.BaseURL, httpClient)
	case "ollama":
		client, err = NewOllamaClient(cfg.BaseURL, cfg.Model, httpClient)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerMinute > 0 {
		slog.Info("Throttling oracle calls", "requests_per_minute", cfg.RequestsPerMinute)
		client = NewRateLimitedClient(client, cfg.RequestsPerMinute)
	}
	instrumented, err := NewInstrumentedClient(client, cfg.Backend, meter)
	if err != nil {
		return nil, err
	}
	return instrumented, nil
}
