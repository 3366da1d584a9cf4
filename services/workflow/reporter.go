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
	"time"
)

// DefaultHeartbeatInterval is the queue wait before a heartbeat is sent.
const DefaultHeartbeatInterval = time.Second

// StreamingReporter drains a run's queue for one observer. It never
// affects the run.
type StreamingReporter struct {
	interval time.Duration
}

func NewStreamingReporter(interval time.Duration) *StreamingReporter {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &StreamingReporter{interval: interval}
}

// Stream claims run's observer slot and passes every event to emit until
// the done event has been emitted. It returns early with ctx's error when
// the observer goes away, or with emit's error.
func (s *StreamingReporter) Stream(ctx context.Context, run *Run, emit func(Event) error) error {
	release, err := run.Attach()
	if err != nil {
		return err
	}
	defer release()

	for {
		ev, err := run.Events().Next(ctx, s.interval)
		if err != nil {
			return err
		}
		if err := emit(ev); err != nil {
			return err
		}
		if ev.Type == EventDone {
			return nil
		}
	}
}
