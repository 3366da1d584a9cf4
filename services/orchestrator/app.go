// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ishaan-arora-1/not-cursor/pkg/config"
	"github.com/ishaan-arora-1/not-cursor/pkg/logging"
	"github.com/ishaan-arora-1/not-cursor/pkg/telemetry"
	"github.com/ishaan-arora-1/not-cursor/services/git"
	"github.com/ishaan-arora-1/not-cursor/services/llm"
	"github.com/ishaan-arora-1/not-cursor/services/orchestrator/observability"
	"github.com/ishaan-arora-1/not-cursor/services/orchestrator/routes"
	"github.com/ishaan-arora-1/not-cursor/services/runstore"
	"github.com/ishaan-arora-1/not-cursor/services/validate"
	"github.com/ishaan-arora-1/not-cursor/services/workflow"
)

// AppOptions override components normally built from configuration.
type AppOptions struct {
	// Oracle replaces the configured LLM backend.
	Oracle llm.LLMClient

	// Executor replaces the git CLI executor.
	Executor git.Executor

	// Registry receives all Prometheus collectors. Nil creates a fresh one.
	Registry *prometheus.Registry

	Logger *slog.Logger
}

// App is the assembled agent: one coordinator, its history store and the
// metrics it reports into.
type App struct {
	Config      config.NotCursorConfig
	Coordinator *workflow.Coordinator
	Reporter    *workflow.StreamingReporter
	Store       *runstore.Store
	Metrics     *observability.WorkflowMetrics
	Registry    *prometheus.Registry

	telemetry *telemetry.Providers
	logger    *slog.Logger
}

// NewApp builds every component from cfg. Close releases them.
func NewApp(ctx context.Context, cfg config.NotCursorConfig, opts AppOptions) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	a := &App{Config: cfg, Registry: reg, logger: logger}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Registerer:   reg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = providers

	oracle := opts.Oracle
	if oracle == nil {
		oracle, err = llm.NewFromConfig(cfg.LLM, providers.Meter("notcursor.llm"))
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
	}
	logger.Info("Oracle ready", "backend", cfg.LLM.Backend, "model", cfg.LLM.Model)

	executor := opts.Executor
	if executor == nil {
		executor, err = git.NewCLIExecutor(git.ExecutorConfig{WorkDir: cfg.Repo.Path}, logger)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to initialize git executor: %w", err)
		}
	}

	storeCfg := runstore.DefaultConfig(logging.ExpandPath(cfg.Store.Path))
	if cfg.Store.InMemory {
		storeCfg = runstore.InMemoryConfig()
	}
	storeCfg.Logger = logger.With("component", "runstore")
	a.Store, err = runstore.Open(storeCfg)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}

	checker, err := validate.NewValidator(validate.DefaultConfig())
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize content checks: %w", err)
	}

	a.Metrics = observability.NewWorkflowMetrics(reg)

	params := llm.GenerationParams{
		Temperature: llm.Float32(cfg.LLM.Temperature),
		MaxTokens:   llm.Int(cfg.LLM.MaxTokens),
	}
	wfLogger := logger.With("component", "workflow")
	a.Coordinator = workflow.NewCoordinator(
		cfg.Repo.Path,
		workflow.NewRepoContextLoader(cfg.Repo.CommitHistory, wfLogger),
		workflow.NewPlanGenerator(oracle, params, wfLogger),
		workflow.NewFileRewriter(oracle, params, cfg.Repo.EditableExtensions, wfLogger,
			workflow.WithContentChecker(checker),
			workflow.WithRewriteMetrics(a.Metrics)),
		workflow.NewGitCommitter(executor, workflow.CommitterConfig{
			Remote:       cfg.Repo.Remote,
			Message:      cfg.Repo.CommitMessage,
			BranchPrefix: cfg.Repo.BranchPrefix,
		}, wfLogger),
		workflow.WithRegistry(workflow.NewRegistry(cfg.Server.RetainRuns)),
		workflow.WithRecorder(a.Store),
		workflow.WithMetrics(a.Metrics),
		workflow.WithLogger(wfLogger),
	)
	a.Reporter = workflow.NewStreamingReporter(cfg.Stream.HeartbeatInterval)
	return a, nil
}

// Server returns the HTTP surface for this app.
func (a *App) Server() Service {
	return New(Config{
		Port:        a.Config.Server.Port,
		CORSOrigins: a.Config.Server.CORSOrigins,
		ServiceName: a.Config.Telemetry.ServiceName,
	}, routes.Deps{
		Submitter: a.Coordinator,
		Runs:      a.Coordinator.Registry(),
		Reporter:  a.Reporter,
		History:   a.Store,
		Metrics:   a.Metrics,
		Gatherer:  a.Registry,
	}, a.logger)
}

// WaitIdle blocks until the active run, if any, finishes or ctx ends.
func (a *App) WaitIdle(ctx context.Context) error {
	run, ok := a.Coordinator.Registry().Active()
	if !ok {
		return nil
	}
	a.logger.Info("Waiting for the active run to finish", "run_id", run.ID)
	select {
	case <-run.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes telemetry and closes the history store. Call WaitIdle
// first to let the active run record its outcome.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close run history: %w", err))
		}
		a.Store = nil
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.telemetry = nil
	}
	return errors.Join(errs...)
}
