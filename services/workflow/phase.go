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

// Phase is the run-level state.
//
//	loading ──▶ planning ──▶ rewriting ──▶ committing ──▶ done
//	   │           │          │   ▲            │
//	   │           │          └───┘            │
//	   └───────────┴──────────┴────────────────┴──▶ failed
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhasePlanning   Phase = "planning"
	PhaseRewriting  Phase = "rewriting"
	PhaseCommitting Phase = "committing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// transitions lists the allowed successors of each phase.
var transitions = map[Phase][]Phase{
	PhaseLoading:    {PhasePlanning, PhaseFailed},
	PhasePlanning:   {PhaseRewriting, PhaseFailed},
	PhaseRewriting:  {PhaseRewriting, PhaseCommitting, PhaseFailed},
	PhaseCommitting: {PhaseDone, PhaseFailed},
	PhaseDone:       nil,
	PhaseFailed:     nil,
}

// CanTransition reports whether to is a legal successor of p.
func (p Phase) CanTransition(to Phase) bool {
	for _, next := range transitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether p has no successors.
func (p Phase) Terminal() bool {
	next, known := transitions[p]
	return known && len(next) == 0
}

func (p Phase) String() string {
	return string(p)
}
