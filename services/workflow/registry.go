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

	"github.com/google/uuid"
)

// DefaultRetainRuns is how many runs the registry keeps in memory.
const DefaultRetainRuns = 20

// Registry tracks live and recent runs by ID and enforces one active run
// per process.
type Registry struct {
	mu     sync.Mutex
	runs   map[string]*Run
	order  []string
	active *Run
	retain int
}

func NewRegistry(retain int) *Registry {
	if retain <= 0 {
		retain = DefaultRetainRuns
	}
	return &Registry{runs: make(map[string]*Run), retain: retain}
}

// Begin registers a new run and makes it active. It fails with a
// *RunActiveError while another run is active.
func (g *Registry) Begin(prompt string) (*Run, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active != nil {
		return nil, &RunActiveError{RunID: g.active.ID}
	}
	run := newRun(uuid.NewString(), prompt)
	g.runs[run.ID] = run
	g.order = append(g.order, run.ID)
	g.active = run
	g.prune()
	return run, nil
}

// Release clears the active slot if run holds it.
func (g *Registry) Release(run *Run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == run {
		g.active = nil
	}
}

// Get looks a run up by ID.
func (g *Registry) Get(id string) (*Run, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	run, ok := g.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// Latest returns the most recently begun run.
func (g *Registry) Latest() (*Run, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.order) == 0 {
		return nil, ErrRunNotFound
	}
	return g.runs[g.order[len(g.order)-1]], nil
}

// Active returns the in-flight run, if any.
func (g *Registry) Active() (*Run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active, g.active != nil
}

// prune drops the oldest runs beyond the retention limit. The active run
// is never dropped. Caller holds g.mu.
func (g *Registry) prune() {
	for len(g.order) > g.retain {
		oldest := g.order[0]
		if g.active != nil && g.active.ID == oldest {
			return
		}
		delete(g.runs, oldest)
		g.order = g.order[1:]
	}
}
