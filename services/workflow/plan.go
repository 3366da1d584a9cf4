// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ishaan-arora-1/not-cursor/services/llm"
)

const replyPreviewLen = 200

// ExtractPlan returns the first well-formed JSON array of objects found in
// text. Surrounding prose and code fences are ignored.
func ExtractPlan(text string) ([]PlanEntry, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' || !nextNonSpaceIs(text[i+1:], '{') {
			continue
		}
		var entries []PlanEntry
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		if err := dec.Decode(&entries); err != nil {
			continue
		}
		return entries, nil
	}
	return nil, &PlanExtractionError{Reply: preview(text)}
}

func nextNonSpaceIs(s string, want byte) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return s[i] == want
	}
	return false
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= replyPreviewLen {
		return s
	}
	cut := replyPreviewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// PlanGenerator asks the oracle for an edit plan.
type PlanGenerator struct {
	oracle llm.LLMClient
	params llm.GenerationParams
	logger *slog.Logger
}

func NewPlanGenerator(oracle llm.LLMClient, params llm.GenerationParams, logger *slog.Logger) *PlanGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanGenerator{oracle: oracle, params: params, logger: logger}
}

// Generate performs exactly one oracle call and extracts the plan from it.
func (g *PlanGenerator) Generate(ctx context.Context, st *WorkflowState, prompt string) ([]PlanEntry, error) {
	ctx, span := tracer.Start(ctx, "workflow.PlanGenerator.Generate")
	defer span.End()

	messages := planningMessages(prompt, st.Files, st.FileList, st.Commits)
	reply, err := g.oracle.Chat(ctx, messages, g.params)
	if err != nil {
		return nil, &OracleCallError{Phase: PhasePlanning, Err: err}
	}

	plan, err := ExtractPlan(reply)
	if err != nil {
		g.logger.Warn("Planning reply had no JSON plan", "reply_chars", len(reply))
		return nil, err
	}
	g.logger.Debug("Plan extracted", "entries", len(plan))
	return plan, nil
}
