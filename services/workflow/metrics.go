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
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("notcursor.workflow")

// Rewrite outcomes reported to Metrics.
const (
	OutcomeModified = "modified"
	OutcomeNoChange = "no_change"
	OutcomeGated    = "gated"
)

// Metrics receives run-level counters. The orchestrator backs it with
// Prometheus collectors.
type Metrics interface {
	RunStarted()
	RunFinished(status string, duration time.Duration)
	PhaseEntered(phase Phase)
	PlanSize(entries int)
	FileRewritten(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RunStarted() {}
func (noopMetrics) RunFinished(string, time.Duration) {}
func (noopMetrics) PhaseEntered(Phase) {}
func (noopMetrics) PlanSize(int) {}
func (noopMetrics) FileRewritten(string) {}
