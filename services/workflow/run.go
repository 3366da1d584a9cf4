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
	"sync"
	"time"

	"github.com/ishaan-arora-1/not-cursor/services/runstore"
)

// Run is the handle of one submission. The worker writes to it; handlers
// read snapshots of it through Record.
type Run struct {
	ID        string
	Prompt    string
	StartedAt time.Time

	queue *Queue
	done  chan struct{}

	mu         sync.Mutex
	phase      Phase
	status     runstore.Status
	plan       []PlanEntry
	modified   []string
	commit     *CommitResult
	errMsg     string
	transcript []string
	finishedAt time.Time
	observed   bool
}

func newRun(id, prompt string) *Run {
	return &Run{
		ID:        id,
		Prompt:    prompt,
		StartedAt: time.Now().UTC(),
		queue:     NewQueue(),
		done:      make(chan struct{}),
		phase:     PhaseLoading,
		status:    runstore.StatusRunning,
	}
}

// Emit implements EventSink. Every line is queued for the observer and kept
// in the transcript.
func (r *Run) Emit(message string) {
	r.mu.Lock()
	r.transcript = append(r.transcript, message)
	r.mu.Unlock()
	r.queue.Emit(message)
}

// Events returns the run's queue.
func (r *Run) Events() *Queue { return r.queue }

// Done is closed after the terminator has been queued.
func (r *Run) Done() <-chan struct{} { return r.done }

// Phase returns the current phase.
func (r *Run) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Status returns the run outcome so far.
func (r *Run) Status() runstore.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Attach claims the single observer slot. The returned release func frees
// it and is safe to call more than once.
func (r *Run) Attach() (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.observed {
		return nil, ErrObserverAttached
	}
	r.observed = true
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.observed = false
			r.mu.Unlock()
		})
	}, nil
}

func (r *Run) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

func (r *Run) setPlan(plan []PlanEntry) {
	r.mu.Lock()
	r.plan = append([]PlanEntry(nil), plan...)
	r.mu.Unlock()
}

func (r *Run) setModified(paths []string) {
	r.mu.Lock()
	r.modified = append([]string(nil), paths...)
	r.mu.Unlock()
}

func (r *Run) setCommit(res *CommitResult) {
	r.mu.Lock()
	r.commit = res
	r.mu.Unlock()
}

func (r *Run) fail(msg string) {
	r.mu.Lock()
	r.phase = PhaseFailed
	r.status = runstore.StatusFailed
	r.errMsg = msg
	r.mu.Unlock()
}

func (r *Run) finish() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == runstore.StatusRunning {
		r.status = runstore.StatusSucceeded
	}
	r.finishedAt = time.Now().UTC()
	return r.finishedAt.Sub(r.StartedAt)
}

// Record returns a copy of the run suitable for storage or JSON.
func (r *Run) Record() *runstore.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &runstore.RunRecord{
		ID:            r.ID,
		Prompt:        r.Prompt,
		Status:        r.status,
		Phase:         string(r.phase),
		ModifiedFiles: append([]string(nil), r.modified...),
		Error:         r.errMsg,
		Transcript:    append([]string(nil), r.transcript...),
		StartedAt:     r.StartedAt,
	}
	for _, e := range r.plan {
		rec.Plan = append(rec.Plan, runstore.PlanItem{File: e.Target, Action: e.Action})
	}
	if r.commit != nil {
		rec.Branch = r.commit.Branch
		rec.TreeURL = r.commit.TreeURL
		rec.PullRequestURL = r.commit.PullRequestURL
	}
	if !r.finishedAt.IsZero() {
		finished := r.finishedAt
		rec.FinishedAt = &finished
	}
	return rec
}
