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
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ishaan-arora-1/not-cursor/pkg/ux"
	"github.com/ishaan-arora-1/not-cursor/services/orchestrator"
	"github.com/ishaan-arora-1/not-cursor/services/runstore"
	"github.com/ishaan-arora-1/not-cursor/services/workflow"
)

// appOverrides lets tests replace the oracle and git executor.
var appOverrides orchestrator.AppOptions

func runPrompt(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	// Ctrl-C stops rendering; the run itself is not interruptible once
	// submitted, so the process waits for it below.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := appOverrides
	opts.Logger = logger.Slog()
	app, err := orchestrator.NewApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.WaitIdle(context.Background())
		if err := app.Close(context.Background()); err != nil {
			logger.Warn("Shutdown was not clean", "error", err)
		}
	}()

	run, err := app.Coordinator.Submit(ctx, prompt)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ux.Title(out, "notcursor · "+cfg.Repo.Path)
	renderer := ux.NewEventRenderer(out)
	err = app.Reporter.Stream(ctx, run, func(ev workflow.Event) error {
		return renderer.Render(string(ev.Type), ev.Message)
	})
	if err != nil {
		ux.ErrorLine(cmd.ErrOrStderr(), "stopped following run "+run.ID+"; waiting for it to finish")
		<-run.Done()
	}

	if run.Status() == runstore.StatusFailed {
		return &runFailedError{runID: run.ID}
	}
	return nil
}
