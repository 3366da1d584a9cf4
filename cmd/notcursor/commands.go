// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ishaan-arora-1/not-cursor/pkg/config"
	"github.com/ishaan-arora-1/not-cursor/pkg/logging"
	"github.com/ishaan-arora-1/not-cursor/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath       string
	repoPath         string
	port             int
	logLevel         string
	personalityLevel string // full/minimal/machine
	noHistory        bool
	runsLimit        int

	// Loaded by the root PersistentPreRunE.
	cfg    config.NotCursorConfig
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "notcursor",
		Short: "Plan, rewrite and push code changes from a natural-language prompt",
		Long: `notcursor reads a git repository, asks a language model for an edit
plan, rewrites the planned files one at a time, then commits the result to
a fresh feature branch and pushes it.

Run it as a server (notcursor serve) and drive it over HTTP, or run a
single prompt in-process (notcursor run "add a footer").`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadRuntime,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /execute and the /stream progress feed",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}

	runCmd = &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run one prompt in-process and print its progress",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPrompt, // Defined in cmd_run.go
	}

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}
	runsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runRunsList, // Defined in cmd_runs.go
	}
	runsShowCmd = &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run with its transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsShow, // Defined in cmd_runs.go
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.notcursor/notcursor.yaml)")
	pf.StringVar(&repoPath, "repo", "", "repository to modify (overrides repo.path)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides logging.level)")
	pf.StringVar(&personalityLevel, "output", "", "output style: full, minimal or machine")

	serveCmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	runCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this run")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(serveCmd, runCmd, runsCmd)
}

// loadRuntime loads configuration, applies flag overrides and installs the
// process logger.
func loadRuntime(cmd *cobra.Command, args []string) error {
	if personalityLevel != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
	} else {
		ux.InitPersonality()
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &loaded); err != nil {
		return err
	}
	cfg = loaded

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "notcursor",
		JSON:    cfg.Logging.JSON,
		// Progress owns the terminal during `run`; logs go to the file.
		Quiet:  cmd == runCmd,
		Writer: cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger.Slog())
	return nil
}

func applyFlags(cmd *cobra.Command, c *config.NotCursorConfig) error {
	if repoPath != "" {
		c.Repo.Path = logging.ExpandPath(repoPath)
	}
	if flag := cmd.Flags().Lookup("port"); flag != nil && flag.Changed {
		c.Server.Port = port
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if flag := cmd.Flags().Lookup("no-history"); flag != nil && flag.Changed && noHistory {
		c.Store.InMemory = true
	}
	return config.Validate(c)
}

// runFailedError marks a run that finished in the failed state. It maps to
// exit status 2 so scripts can tell it from usage errors.
type runFailedError struct {
	runID string
}

func (e *runFailedError) Error() string {
	return fmt.Sprintf("run %s failed", e.runID)
}

func exitCode(err error) int {
	var failed *runFailedError
	if errors.As(err, &failed) {
		return 2
	}
	return 1
}
