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
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishaan-arora-1/not-cursor/services/orchestrator"
)

// drainTimeout bounds how long shutdown waits for the active run.
const drainTimeout = 2 * time.Minute

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := orchestrator.NewApp(ctx, cfg, orchestrator.AppOptions{Logger: logger.Slog()})
	if err != nil {
		return err
	}

	logger.Info("Serving repository", "repo", cfg.Repo.Path, "port", cfg.Server.Port)
	serveErr := app.Server().Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := app.WaitIdle(drainCtx); err != nil {
		logger.Warn("Active run did not finish before shutdown", "error", err)
	}
	if err := app.Close(context.Background()); err != nil {
		logger.Warn("Shutdown was not clean", "error", err)
	}
	return serveErr
}
