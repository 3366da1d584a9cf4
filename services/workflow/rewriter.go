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
	"log/slog"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ishaan-arora-1/not-cursor/services/llm"
	"github.com/ishaan-arora-1/not-cursor/services/validate"
)

// ContentChecker inspects rewritten content. Findings are reported as
// progress lines only; they never block the rewrite.
type ContentChecker interface {
	Check(ctx context.Context, path, content string) []validate.Warning
}

// FileRewriter executes one plan entry per Step.
type FileRewriter struct {
	oracle     llm.LLMClient
	params     llm.GenerationParams
	extensions []string
	checker    ContentChecker
	metrics    Metrics
	logger     *slog.Logger
}

// RewriterOption configures a FileRewriter.
type RewriterOption func(*FileRewriter)

// WithContentChecker reports checker findings after each modification.
func WithContentChecker(checker ContentChecker) RewriterOption {
	return func(r *FileRewriter) { r.checker = checker }
}

// WithRewriteMetrics counts rewrite outcomes.
func WithRewriteMetrics(m Metrics) RewriterOption {
	return func(r *FileRewriter) { r.metrics = m }
}

func NewFileRewriter(oracle llm.LLMClient, params llm.GenerationParams, extensions []string, logger *slog.Logger, opts ...RewriterOption) *FileRewriter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &FileRewriter{
		oracle:     oracle,
		params:     params,
		extensions: extensions,
		metrics:    noopMetrics{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Editable reports whether target passes the extension gate and stays
// inside the repository.
func (r *FileRewriter) Editable(target string) bool {
	if target == "" || !filepath.IsLocal(filepath.FromSlash(target)) {
		return false
	}
	for _, ext := range r.extensions {
		if strings.HasSuffix(target, ext) {
			return true
		}
	}
	return false
}

// Step processes st.Plan[st.CurrentIndex] and advances the cursor. Calling
// Step on an exhausted plan only sets NextAction to done.
func (r *FileRewriter) Step(ctx context.Context, st *WorkflowState, sink EventSink) error {
	if st.Exhausted() {
		st.NextAction = NextDone
		return nil
	}
	entry := st.Plan[st.CurrentIndex]

	if !r.Editable(entry.Target) {
		r.logger.Info("Plan entry not editable, skipping", "path", entry.Target)
		r.metrics.FileRewritten(OutcomeGated)
		st.advance()
		return nil
	}

	ctx, span := tracer.Start(ctx, "workflow.FileRewriter.Step")
	defer span.End()
	span.SetAttributes(
		attribute.String("plan.target", entry.Target),
		attribute.Int("plan.index", st.CurrentIndex),
	)

	before := st.Files[entry.Target]
	reply, err := r.oracle.Chat(ctx, rewriteMessages(entry, before), r.params)
	if err != nil {
		return &OracleCallError{Phase: PhaseRewriting, Target: entry.Target, Err: err}
	}

	content := strings.TrimSpace(reply)
	if content == "" || strings.EqualFold(content, NoChangeSentinel) {
		if content == "" {
			r.logger.Warn("Empty rewrite reply treated as no change", "path", entry.Target)
		}
		r.metrics.FileRewritten(OutcomeNoChange)
		emitf(sink, "⏭️ Skipped: %s", entry.Target)
		st.advance()
		return nil
	}

	st.setContent(entry.Target, content)
	r.metrics.FileRewritten(OutcomeModified)
	emitf(sink, "✅ Modified or created: %s", entry.Target)

	if r.checker != nil {
		for _, w := range r.checker.Check(ctx, entry.Target, content) {
			emitf(sink, "⚠️ %s", w.String())
		}
	}

	st.advance()
	return nil
}
