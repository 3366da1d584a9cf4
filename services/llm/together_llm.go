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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// TogetherBaseURL is Together AI's OpenAI-compatible endpoint.
const TogetherBaseURL = "https://api.together.xyz/v1"

// TogetherClient talks to Together AI through langchaingo's OpenAI-compatible
// model.
type TogetherClient struct {
	llm   *lcopenai.LLM
	model string
}

func NewTogetherClient(secret *Secret, model, baseURL string, httpClient *http.Client) (*TogetherClient, error) {
	if secret.Empty() {
		return nil, fmt.Errorf("TOGETHER_API_KEY environment variable not set")
	}
	if model == "" {
		model = "mistralai/Mixtral-8x7B-Instruct-v0.1"
	}
	if baseURL == "" {
		baseURL = TogetherBaseURL
	}

	// langchaingo rejects an empty token; the real key is set per request
	// by secretTransport.
	lm, err := lcopenai.New(
		lcopenai.WithToken("sealed"),
		lcopenai.WithModel(model),
		lcopenai.WithBaseURL(strings.TrimSuffix(baseURL, "/")),
		lcopenai.WithHTTPClient(bearerClient(secret, httpClient)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Together client: %w", err)
	}
	slog.Info("Initializing Together client", "model", model, "base_url", baseURL)
	return &TogetherClient{llm: lm, model: model}, nil
}

// Chat implements the LLMClient interface
func (t *TogetherClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(togetherRole(m.Role), m.Content))
	}

	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	slog.Debug("Generating text via Together", "model", t.model, "num_messages", len(messages))
	resp, err := t.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("Together API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("Together returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func togetherRole(role string) llms.ChatMessageType {
	switch strings.ToLower(role) {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
