// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ishaan-arora-1/not-cursor/services/orchestrator/handlers"
	"github.com/ishaan-arora-1/not-cursor/services/orchestrator/observability"
	"github.com/ishaan-arora-1/not-cursor/services/workflow"
)

// Deps are the collaborators the handlers close over.
type Deps struct {
	Submitter handlers.RunSubmitter
	Runs      handlers.RunLookup
	Reporter  *workflow.StreamingReporter
	History   handlers.RunHistory
	Metrics   *observability.WorkflowMetrics

	// Gatherer backs /metrics. Nil means the default gatherer.
	Gatherer prometheus.Gatherer
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.GET("/", handlers.HandleIndex)
	router.GET("/health", handlers.HandleHealth(deps.Runs))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	router.POST("/execute", handlers.HandleExecute(deps.Submitter, deps.Metrics))
	router.GET("/stream", handlers.HandleStream(deps.Runs, deps.Reporter, deps.Metrics))

	runs := router.Group("/runs")
	{
		runs.GET("", handlers.HandleListRuns(deps.History, deps.Metrics))
		runs.GET("/:id", handlers.HandleGetRun(deps.Runs, deps.History, deps.Metrics))
	}
}
