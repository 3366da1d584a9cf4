// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package git runs git commands against the target checkout.
//
// Commands go through the git binary so the user's credential helpers,
// hooks and signing configuration apply to commit and push exactly as they
// would from a shell.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Executor runs a git subcommand in a fixed working directory.
type Executor interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// Result is the outcome of one git invocation.
type Result struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CommandError is returned when git exits non-zero or cannot be started.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s failed (exit %d): %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecutorConfig configures a CLIExecutor.
type ExecutorConfig struct {
	// WorkDir is the repository root.
	WorkDir string

	// GitPath overrides the git binary looked up on PATH.
	GitPath string

	// Env is appended to the inherited environment.
	Env []string
}

// DefaultExecutorConfig returns a config that uses git from PATH.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{GitPath: "git"}
}

// CLIExecutor runs the git binary.
type CLIExecutor struct {
	config ExecutorConfig
	logger *slog.Logger
}

// NewCLIExecutor validates config and returns an executor bound to WorkDir.
func NewCLIExecutor(config ExecutorConfig, logger *slog.Logger) (*CLIExecutor, error) {
	if config.WorkDir == "" {
		return nil, errors.New("git executor requires a work dir")
	}
	if config.GitPath == "" {
		config.GitPath = "git"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIExecutor{config: config, logger: logger}, nil
}

// WorkDir returns the repository root the executor runs in.
func (e *CLIExecutor) WorkDir() string {
	return e.config.WorkDir
}

// Run executes git with args. A non-zero exit yields a *CommandError
// alongside the populated Result.
func (e *CLIExecutor) Run(ctx context.Context, args ...string) (Result, error) {
	kind := classifyCommand(args)
	ctx, span := startExecuteSpan(ctx, args, kind)
	defer span.End()

	cmd := exec.CommandContext(ctx, e.config.GitPath, args...)
	cmd.Dir = e.config.WorkDir
	if len(e.config.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.config.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result := Result{
		Args:     args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
	}

	setExecuteSpanResult(span, result.ExitCode, kind)
	recordExecuteMetrics(ctx, args, result.Duration, result.ExitCode, kind)

	e.logger.Debug("git command finished",
		"args", args,
		"exit_code", result.ExitCode,
		"kind", kind.String(),
		"duration_ms", result.Duration.Milliseconds(),
	)

	if runErr != nil {
		return result, &CommandError{
			Args:     args,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Err:      runErr,
		}
	}
	return result, nil
}

// RemoteURL returns the fetch URL of remote.
func RemoteURL(ctx context.Context, executor Executor, remote string) (string, error) {
	result, err := executor.Run(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}
