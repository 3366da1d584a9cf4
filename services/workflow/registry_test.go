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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishaan-arora-1/not-cursor/services/runstore"
)

func TestRegistry_BeginReleaseLookup(t *testing.T) {
	reg := NewRegistry(5)

	_, err := reg.Latest()
	assert.ErrorIs(t, err, ErrRunNotFound)

	run, err := reg.Begin("p1")
	require.NoError(t, err)
	active, ok := reg.Active()
	require.True(t, ok)
	assert.Same(t, run, active)

	_, err = reg.Begin("p2")
	assert.ErrorIs(t, err, ErrRunActive)

	reg.Release(run)
	_, ok = reg.Active()
	assert.False(t, ok)

	got, err := reg.Get(run.ID)
	require.NoError(t, err)
	assert.Same(t, run, got)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRegistry_Prunes(t *testing.T) {
	reg := NewRegistry(2)
	var ids []string
	for i := 0; i < 4; i++ {
		run, err := reg.Begin("p")
		require.NoError(t, err)
		ids = append(ids, run.ID)
		reg.Release(run)
	}

	_, err := reg.Get(ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = reg.Get(ids[1])
	assert.ErrorIs(t, err, ErrRunNotFound)
	latest, err := reg.Latest()
	require.NoError(t, err)
	assert.Equal(t, ids[3], latest.ID)
}

func TestRun_SingleObserver(t *testing.T) {
	run := newRun("r1", "p")

	release, err := run.Attach()
	require.NoError(t, err)
	_, err = run.Attach()
	assert.ErrorIs(t, err, ErrObserverAttached)

	release()
	release()
	again, err := run.Attach()
	require.NoError(t, err)
	again()
}

func TestRun_Record(t *testing.T) {
	run := newRun("r1", "prompt")
	run.Emit("hello")
	run.setPlan([]PlanEntry{{Target: "a.py", Action: "x"}})
	run.setModified([]string{"a.py"})
	run.setCommit(&CommitResult{Branch: "feature--000000", TreeURL: "t", PullRequestURL: "p"})

	rec := run.Record()
	assert.Equal(t, runstore.StatusRunning, rec.Status)
	assert.Equal(t, []runstore.PlanItem{{File: "a.py", Action: "x"}}, rec.Plan)
	assert.Equal(t, []string{"hello"}, rec.Transcript)
	assert.Equal(t, "feature--000000", rec.Branch)
	assert.Nil(t, rec.FinishedAt)

	run.finish()
	rec = run.Record()
	assert.Equal(t, runstore.StatusSucceeded, rec.Status)
	require.NotNil(t, rec.FinishedAt)

	failed := newRun("r2", "p")
	failed.fail("boom")
	failed.finish()
	assert.Equal(t, runstore.StatusFailed, failed.Status())
	assert.Equal(t, "boom", failed.Record().Error)
}

func TestStreamingReporter_OrderAndHeartbeats(t *testing.T) {
	run := newRun("r1", "p")
	go func() {
		run.Emit("first")
		time.Sleep(60 * time.Millisecond)
		run.Emit("second")
		run.queue.Close()
	}()

	var events []Event
	err := NewStreamingReporter(10*time.Millisecond).Stream(context.Background(), run, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)

	var outputs []string
	heartbeats := 0
	for _, ev := range events {
		switch ev.Type {
		case EventOutput:
			outputs = append(outputs, ev.Message)
		case EventHeartbeat:
			heartbeats++
			assert.Empty(t, ev.Message)
		}
	}
	assert.Equal(t, []string{"first", "second"}, outputs)
	assert.Greater(t, heartbeats, 0)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestStreamingReporter_SecondObserverRejected(t *testing.T) {
	run := newRun("r1", "p")
	release, err := run.Attach()
	require.NoError(t, err)
	defer release()

	err = NewStreamingReporter(0).Stream(context.Background(), run, func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrObserverAttached)
}

func TestStreamingReporter_EmitErrorStops(t *testing.T) {
	run := newRun("r1", "p")
	run.Emit("x")
	gone := errors.New("client went away")

	err := NewStreamingReporter(time.Second).Stream(context.Background(), run, func(Event) error { return gone })
	assert.ErrorIs(t, err, gone)

	// The slot is free again after the observer leaves.
	release, err := run.Attach()
	require.NoError(t, err)
	release()
}
