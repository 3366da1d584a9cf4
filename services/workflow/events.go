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
	"context"
	"fmt"
	"sync"
	"time"
)

// EventType is the wire tag of a stream event.
type EventType string

const (
	EventOutput    EventType = "output"
	EventHeartbeat EventType = "heartbeat"
	EventDone      EventType = "done"
)

// Event is one item of the progress stream.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
}

// EventSink receives human-readable progress lines for one run.
type EventSink interface {
	Emit(message string)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(message string)

func (f SinkFunc) Emit(message string) { f(message) }

func emitf(sink EventSink, format string, args ...any) {
	sink.Emit(fmt.Sprintf(format, args...))
}

// Queue is the per-run FIFO between the worker (producer) and the stream
// reader (consumer). It is unbounded so the worker never blocks on a slow or
// absent reader. Close appends the terminator; messages emitted after Close
// are dropped.
type Queue struct {
	mu     sync.Mutex
	items  []string
	closed bool
	signal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Emit implements EventSink.
func (q *Queue) Emit(message string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, message)
	q.mu.Unlock()
	q.notify()
}

// Close marks the end of the stream. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Closed reports whether the terminator has been queued.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Next waits up to timeout for the next event. A pending message yields an
// output event; an empty closed queue yields done; a timeout yields a
// heartbeat. The only error is ctx's.
func (q *Queue) Next(ctx context.Context, timeout time.Duration) (Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			q.mu.Unlock()
			return Event{Type: EventOutput, Message: msg}, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{Type: EventDone}, nil
		}

		select {
		case <-q.signal:
		case <-timer.C:
			return Event{Type: EventHeartbeat}, nil
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
