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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ishaan-arora-1/not-cursor/services/orchestrator/observability"
	"github.com/ishaan-arora-1/not-cursor/services/runstore"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// RunHistory reads persisted runs. *runstore.Store satisfies it.
type RunHistory interface {
	Get(ctx context.Context, id string) (*runstore.RunRecord, error)
	List(ctx context.Context, limit int) ([]*runstore.RunRecord, error)
}

// HandleListRuns returns recorded runs, newest first. ?limit= caps the count.
func HandleListRuns(history RunHistory, metrics *observability.WorkflowMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultRunsLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxRunsLimit {
				metrics.RecordRequest(observability.EndpointRuns, http.StatusBadRequest)
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
				return
			}
			limit = n
		}

		records, err := history.List(c.Request.Context(), limit)
		if err != nil {
			slog.Error("Failed to list runs", "error", err)
			metrics.RecordRequest(observability.EndpointRuns, http.StatusInternalServerError)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
			return
		}
		if records == nil {
			records = []*runstore.RunRecord{}
		}
		metrics.RecordRequest(observability.EndpointRuns, http.StatusOK)
		c.JSON(http.StatusOK, gin.H{"runs": records})
	}
}

// HandleGetRun returns one run. A live run is served from memory so the
// transcript is current.
func HandleGetRun(lookup RunLookup, history RunHistory, metrics *observability.WorkflowMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if run, err := lookup.Get(id); err == nil {
			metrics.RecordRequest(observability.EndpointRuns, http.StatusOK)
			c.JSON(http.StatusOK, run.Record())
			return
		}

		rec, err := history.Get(c.Request.Context(), id)
		switch {
		case errors.Is(err, runstore.ErrNotFound):
			metrics.RecordRequest(observability.EndpointRuns, http.StatusNotFound)
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		case err != nil:
			slog.Error("Failed to load run", "run_id", id, "error", err)
			metrics.RecordRequest(observability.EndpointRuns, http.StatusInternalServerError)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
		default:
			metrics.RecordRequest(observability.EndpointRuns, http.StatusOK)
			c.JSON(http.StatusOK, rec)
		}
	}
}
