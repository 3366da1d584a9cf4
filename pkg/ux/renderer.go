// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Event types understood by EventRenderer. They mirror the wire values
// published on /stream.
const (
	EventOutput    = "output"
	EventHeartbeat = "heartbeat"
	EventDone      = "done"
)

const planPrefix = "📋 Plan:"

// EventRenderer writes run progress events to a terminal or, in machine
// mode, as JSON lines.
//
// Thread Safety: EventRenderer is safe for concurrent use.
type EventRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	level   PersonalityLevel
	enc     *json.Encoder
	outputs int
	failed  bool
	done    bool
}

// NewEventRenderer captures the current personality level.
func NewEventRenderer(w io.Writer) *EventRenderer {
	return NewEventRendererWithLevel(w, GetPersonality().Level)
}

func NewEventRendererWithLevel(w io.Writer, level PersonalityLevel) *EventRenderer {
	return &EventRenderer{w: w, level: level, enc: json.NewEncoder(w)}
}

// Render draws one event. Heartbeats are dropped outside machine mode.
func (r *EventRenderer) Render(eventType, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch eventType {
	case EventOutput:
		r.outputs++
		if strings.HasPrefix(message, "❌") {
			r.failed = true
		}
	case EventDone:
		r.done = true
	}

	if r.level == PersonalityMachine {
		if eventType == EventHeartbeat {
			return nil
		}
		return r.enc.Encode(struct {
			Type    string `json:"type"`
			Message string `json:"message,omitempty"`
		}{eventType, message})
	}

	switch eventType {
	case EventOutput:
		_, err := fmt.Fprintln(r.w, r.styleOutput(message))
		return err
	case EventDone:
		_, err := fmt.Fprintln(r.w, Styles.Muted.Render("run finished"))
		return err
	}
	return nil
}

func (r *EventRenderer) styleOutput(message string) string {
	if r.level == PersonalityMinimal {
		return message
	}
	switch {
	case strings.HasPrefix(message, planPrefix):
		body := strings.TrimSpace(strings.TrimPrefix(message, planPrefix))
		return Styles.Box.Width(72).Render(Styles.Title.Render("Plan") + "\n" + body)
	case strings.HasPrefix(message, "❌"):
		return Styles.Error.Render(message)
	case strings.HasPrefix(message, "⚠️"):
		return Styles.Warning.Render(message)
	case strings.HasPrefix(message, "✅"), strings.HasPrefix(message, "🎉"):
		return Styles.Success.Render(message)
	case strings.HasPrefix(message, "⏭️"), strings.HasPrefix(message, "📊"):
		return Styles.Muted.Render(message)
	default:
		return Styles.Muted.Render("│ ") + message
	}
}

// Failed reports whether an error line was rendered.
func (r *EventRenderer) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// Outputs is the number of output events seen.
func (r *EventRenderer) Outputs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputs
}

// Done reports whether the terminal event arrived.
func (r *EventRenderer) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
