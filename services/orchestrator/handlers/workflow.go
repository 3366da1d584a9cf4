// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ishaan-arora-1/not-cursor/services/orchestrator/observability"
	"github.com/ishaan-arora-1/not-cursor/services/workflow"
)

// RunSubmitter starts workflow runs. *workflow.Coordinator satisfies it.
type RunSubmitter interface {
	Submit(ctx context.Context, prompt string) (*workflow.Run, error)
}

// RunLookup finds live runs. *workflow.Registry satisfies it.
type RunLookup interface {
	Get(id string) (*workflow.Run, error)
	Latest() (*workflow.Run, error)
	Active() (*workflow.Run, bool)
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// HandleExecute starts a run in the background.
//
//	200 {"success": true, "message": "Workflow started", "run_id": "..."}
//	400 {"error": "No prompt provided"}
//	409 {"error": "A workflow is already running", "run_id": "..."}
func HandleExecute(submitter RunSubmitter, metrics *observability.WorkflowMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond := func(status int, body gin.H) {
			metrics.RecordRequest(observability.EndpointExecute, status)
			c.JSON(status, body)
		}

		var req ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond(http.StatusBadRequest, gin.H{"error": "No prompt provided"})
			return
		}

		run, err := submitter.Submit(c.Request.Context(), req.Prompt)
		var active *workflow.RunActiveError
		switch {
		case errors.Is(err, workflow.ErrEmptyPrompt):
			respond(http.StatusBadRequest, gin.H{"error": "No prompt provided"})
			return
		case errors.As(err, &active):
			respond(http.StatusConflict, gin.H{"error": "A workflow is already running", "run_id": active.RunID})
			return
		case err != nil:
			slog.Error("Failed to start workflow", "error", err)
			respond(http.StatusInternalServerError, gin.H{"error": "Failed to start workflow"})
			return
		}

		respond(http.StatusOK, gin.H{
			"success": true,
			"message": "Workflow started",
			"run_id":  run.ID,
		})
	}
}

// HandleStream serves the progress feed of ?run_id=, or of the latest run
// when absent. Each run accepts one observer at a time.
func HandleStream(lookup RunLookup, reporter *workflow.StreamingReporter, metrics *observability.WorkflowMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			run *workflow.Run
			err error
		)
		if id := c.Query("run_id"); id != "" {
			run, err = lookup.Get(id)
		} else {
			run, err = lookup.Latest()
		}
		if err != nil {
			metrics.RecordRequest(observability.EndpointStream, http.StatusNotFound)
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}

		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			metrics.RecordRequest(observability.EndpointStream, http.StatusInternalServerError)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
			return
		}

		started := false
		emit := func(ev workflow.Event) error {
			if !started {
				started = true
				SetSSEHeaders(c.Writer)
				c.Status(http.StatusOK)
				metrics.RecordRequest(observability.EndpointStream, http.StatusOK)
				metrics.StreamStarted()
			}
			if ev.Type == workflow.EventHeartbeat {
				metrics.RecordHeartbeat()
			}
			return writer.WriteEvent(ev)
		}

		err = reporter.Stream(c.Request.Context(), run, emit)
		if started {
			metrics.StreamEnded()
		}
		switch {
		case err == nil:
		case errors.Is(err, workflow.ErrObserverAttached):
			metrics.RecordRequest(observability.EndpointStream, http.StatusConflict)
			c.JSON(http.StatusConflict, gin.H{"error": "Run already has an observer", "run_id": run.ID})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			metrics.RecordClientDisconnect()
			slog.Debug("Observer disconnected", "run_id", run.ID)
		default:
			slog.Warn("Stream ended with error", "run_id", run.ID, "error", err)
		}
	}
}
