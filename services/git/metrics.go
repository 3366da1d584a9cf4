// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package git

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for git operations.
var (
	tracer = otel.Tracer("notcursor.git")
	meter  = otel.Meter("notcursor.git")
)

var (
	executeLatency metric.Float64Histogram
	executeTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		executeLatency, err = meter.Float64Histogram(
			"git_execute_duration_seconds",
			metric.WithDescription("Duration of git command execution"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		executeTotal, err = meter.Int64Counter(
			"git_execute_total",
			metric.WithDescription("Total number of git commands executed"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func subcommand(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// startExecuteSpan creates a span for a git command execution.
func startExecuteSpan(ctx context.Context, args []string, kind CommandKind) (context.Context, trace.Span) {
	return tracer.Start(ctx, "git."+subcommand(args),
		trace.WithAttributes(
			attribute.String("git.command", subcommand(args)),
			attribute.String("git.kind", kind.String()),
			attribute.Int("git.paths", len(pathArgs(args))),
		),
	)
}

// setExecuteSpanResult sets the result attributes on an execution span.
func setExecuteSpanResult(span trace.Span, exitCode int, kind CommandKind) {
	span.SetAttributes(attribute.Int("git.exit_code", exitCode))
	if exitCode != 0 {
		span.SetStatus(codes.Error, "git "+kind.String()+" command failed")
	}
}

// recordExecuteMetrics records metrics for a git command execution.
func recordExecuteMetrics(ctx context.Context, args []string, duration time.Duration, exitCode int, kind CommandKind) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("command", subcommand(args)),
		attribute.String("kind", kind.String()),
		attribute.Bool("success", exitCode == 0),
	)

	executeLatency.Record(ctx, duration.Seconds(), attrs)
	executeTotal.Add(ctx, 1, attrs)
}
