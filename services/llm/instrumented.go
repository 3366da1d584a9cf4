// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("notcursor.llm")

// InstrumentedClient records a span and a latency histogram sample for
// every oracle call.
type InstrumentedClient struct {
	next     LLMClient
	backend  string
	duration metric.Float64Histogram
	calls    metric.Int64Counter
}

// NewInstrumentedClient wraps next. A nil meter uses the global provider.
func NewInstrumentedClient(next LLMClient, backend string, meter metric.Meter) (*InstrumentedClient, error) {
	if meter == nil {
		meter = otel.Meter("notcursor.llm")
	}
	duration, err := meter.Float64Histogram(
		"notcursor.llm.request.duration",
		metric.WithDescription("Oracle call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm duration histogram: %w", err)
	}
	calls, err := meter.Int64Counter(
		"notcursor.llm.requests",
		metric.WithDescription("Oracle calls by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm request counter: %w", err)
	}
	return &InstrumentedClient{next: next, backend: backend, duration: duration, calls: calls}, nil
}

// Chat implements the LLMClient interface
func (c *InstrumentedClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "LLM.Chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.backend", c.backend),
		attribute.Int("llm.num_messages", len(messages)),
	)

	start := time.Now()
	reply, err := c.next.Chat(ctx, messages, params)
	elapsed := time.Since(start).Seconds()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("llm.reply_chars", len(reply)))
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.backend", c.backend),
		attribute.String("outcome", outcome),
	)
	c.duration.Record(ctx, elapsed, attrs)
	c.calls.Add(ctx, 1, attrs)
	return reply, err
}

// RateLimitedClient spaces oracle calls to a fixed requests-per-minute budget.
type RateLimitedClient struct {
	next    LLMClient
	limiter *rate.Limiter
}

func NewRateLimitedClient(next LLMClient, requestsPerMinute int) *RateLimitedClient {
	every := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

// Chat implements the LLMClient interface
func (c *RateLimitedClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return c.next.Chat(ctx, messages, params)
}
