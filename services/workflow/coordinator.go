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
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ishaan-arora-1/not-cursor/services/runstore"
)

const (
	filesPreviewCount = 5
	recordSaveTimeout = 5 * time.Second
)

// ErrEmptyPrompt rejects a blank submission.
var ErrEmptyPrompt = errors.New("no prompt provided")

// RunRecorder persists run records. *runstore.Store satisfies it.
type RunRecorder interface {
	Save(ctx context.Context, rec *runstore.RunRecord) error
}

// Coordinator runs submissions on background workers, one phase at a time.
type Coordinator struct {
	repoPath  string
	loader    *RepoContextLoader
	planner   *PlanGenerator
	rewriter  *FileRewriter
	committer *GitCommitter

	registry *Registry
	recorder RunRecorder
	metrics  Metrics
	logger   *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

func WithRegistry(r *Registry) CoordinatorOption {
	return func(c *Coordinator) { c.registry = r }
}

func WithRecorder(r RunRecorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = r }
}

func WithMetrics(m Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

func NewCoordinator(repoPath string, loader *RepoContextLoader, planner *PlanGenerator,
	rewriter *FileRewriter, committer *GitCommitter, opts ...CoordinatorOption) *Coordinator {

	c := &Coordinator{
		repoPath:  repoPath,
		loader:    loader,
		planner:   planner,
		rewriter:  rewriter,
		committer: committer,
		metrics:   noopMetrics{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry(DefaultRetainRuns)
	}
	return c
}

// Registry exposes the run registry for lookups.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Submit starts a run and returns without waiting for it. The run keeps
// going after ctx is cancelled; ctx only contributes trace context.
func (c *Coordinator) Submit(ctx context.Context, prompt string) (*Run, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	run, err := c.registry.Begin(prompt)
	if err != nil {
		return nil, err
	}

	c.metrics.RunStarted()
	c.save(ctx, run)
	c.logger.Info("Workflow submitted", "run_id", run.ID, "repo", c.repoPath)

	go c.execute(context.WithoutCancel(ctx), run)
	return run, nil
}

type phaseAction func(ctx context.Context, st *WorkflowState, run *Run) (Phase, error)

// entryActions maps every non-terminal phase to the work done on entry.
func (c *Coordinator) entryActions() map[Phase]phaseAction {
	return map[Phase]phaseAction{
		PhaseLoading:    c.enterLoading,
		PhasePlanning:   c.enterPlanning,
		PhaseRewriting:  c.enterRewriting,
		PhaseCommitting: c.enterCommitting,
	}
}

func (c *Coordinator) execute(ctx context.Context, run *Run) {
	ctx, span := tracer.Start(ctx, "workflow.Run",
		trace.WithAttributes(attribute.String("run.id", run.ID)))
	logger := c.logger.With("run_id", run.ID)

	st := NewState(c.repoPath)
	actions := c.entryActions()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Workflow panicked", "panic", r, "stack", string(debug.Stack()))
			run.Emit(fmt.Sprintf("❌ Error: %v", r))
			run.fail(fmt.Sprint(r))
			span.SetStatus(codes.Error, "panic")
		}
		c.complete(ctx, run, logger)
		span.End()
	}()

	phase := PhaseLoading
	for !phase.Terminal() {
		run.setPhase(phase)
		c.metrics.PhaseEntered(phase)

		next, err := actions[phase](ctx, st, run)
		if err != nil {
			logger.Error("Workflow failed", "phase", phase, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.report(run, err)
			run.fail(err.Error())
			next = PhaseFailed
		}
		if !phase.CanTransition(next) {
			panic(fmt.Sprintf("illegal phase transition %s -> %s", phase, next))
		}
		phase = next
	}
	run.setPhase(phase)
	c.metrics.PhaseEntered(phase)
}

// complete releases the run: record saved, active slot freed, then the
// terminator queued so an observer that sees done can submit immediately.
func (c *Coordinator) complete(ctx context.Context, run *Run, logger *slog.Logger) {
	elapsed := run.finish()
	c.save(ctx, run)
	c.metrics.RunFinished(string(run.Status()), elapsed)
	c.registry.Release(run)
	run.queue.Close()
	close(run.done)
	logger.Info("Workflow finished", "status", run.Status(), "duration_ms", elapsed.Milliseconds())
}

func (c *Coordinator) save(ctx context.Context, run *Run) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordSaveTimeout)
	defer cancel()
	if err := c.recorder.Save(ctx, run.Record()); err != nil {
		c.logger.Warn("Failed to save run record", "run_id", run.ID, "error", err)
	}
}

func (c *Coordinator) report(sink EventSink, err error) {
	var planErr *PlanExtractionError
	if errors.As(err, &planErr) {
		emitf(sink, "❌ Failed to extract JSON plan: %v", err)
		return
	}
	emitf(sink, "❌ Error: %v", err)
}

func (c *Coordinator) enterLoading(ctx context.Context, st *WorkflowState, run *Run) (Phase, error) {
	snap, err := c.loader.Load(ctx, st.RepoPath)
	if err != nil {
		return PhaseFailed, err
	}
	st.Files = snap.Files
	st.Commits = snap.Commits
	st.FileList = snap.FileList

	preview := st.FileList
	if len(preview) > filesPreviewCount {
		preview = preview[:filesPreviewCount]
	}
	emitf(run, "Files loaded: [%s]", strings.Join(preview, ", "))
	emitf(run, "Commits: [%s]", strings.Join(st.Commits, ", "))
	return PhasePlanning, nil
}

func (c *Coordinator) enterPlanning(ctx context.Context, st *WorkflowState, run *Run) (Phase, error) {
	plan, err := c.planner.Generate(ctx, st, run.Prompt)
	if err != nil {
		return PhaseFailed, err
	}
	st.Plan = plan
	st.CurrentIndex = 0
	st.NextAction = NextRewrite
	if st.Exhausted() {
		st.NextAction = NextDone
	}
	run.setPlan(plan)
	c.metrics.PlanSize(len(plan))

	pretty, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return PhaseFailed, fmt.Errorf("render plan: %w", err)
	}
	emitf(run, "📋 Plan: %s", pretty)
	return PhaseRewriting, nil
}

func (c *Coordinator) enterRewriting(ctx context.Context, st *WorkflowState, run *Run) (Phase, error) {
	if err := c.rewriter.Step(ctx, st, run); err != nil {
		return PhaseFailed, err
	}
	run.setModified(st.ModifiedFiles)
	if st.NextAction == NextDone || st.Exhausted() {
		return PhaseCommitting, nil
	}
	return PhaseRewriting, nil
}

func (c *Coordinator) enterCommitting(ctx context.Context, st *WorkflowState, run *Run) (Phase, error) {
	result, err := c.committer.Commit(ctx, st, run)
	if err != nil {
		return PhaseFailed, err
	}
	run.Emit("🎉 Workflow completed successfully!")
	if result == nil {
		return PhaseDone, nil
	}
	run.setCommit(result)
	emitf(run, "Branch: %s", result.Branch)
	if result.TreeURL != "" {
		emitf(run, "GitHub: %s", result.TreeURL)
		emitf(run, "Pull Request: %s", result.PullRequestURL)
	}
	return PhaseDone, nil
}
