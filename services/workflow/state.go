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

// PlanEntry is one step of the edit plan: a repo-relative path and a
// free-text instruction for it.
type PlanEntry struct {
	Target string `json:"file"`
	Action string `json:"action"`
}

// NextAction drives the rewrite loop.
type NextAction string

const (
	NextRewrite NextAction = "rewrite"
	NextDone    NextAction = "done"
)

// WorkflowState is the mutable record of one run. It is owned by the run's
// worker goroutine and must not be shared.
//
// Invariants:
//   - every path in ModifiedFiles has a non-empty entry in Files
//   - CurrentIndex only increases
type WorkflowState struct {
	RepoPath string

	// Files maps repo-relative path to full text content. It holds the
	// before content after load and the after content once rewritten.
	Files map[string]string

	// Commits are "<short-hash>: <first line>", newest first.
	Commits []string

	// FileList is the loaded paths in index order.
	FileList []string

	Plan          []PlanEntry
	CurrentIndex  int
	ModifiedFiles []string
	NextAction    NextAction
}

// NewState returns an empty state for repoPath.
func NewState(repoPath string) *WorkflowState {
	return &WorkflowState{
		RepoPath:   repoPath,
		Files:      make(map[string]string),
		NextAction: NextRewrite,
	}
}

// Exhausted reports whether every plan entry has been stepped over.
func (s *WorkflowState) Exhausted() bool {
	return s.CurrentIndex >= len(s.Plan)
}

// setContent stores content for path and records path as modified once.
func (s *WorkflowState) setContent(path, content string) {
	s.Files[path] = content
	for _, p := range s.ModifiedFiles {
		if p == path {
			return
		}
	}
	s.ModifiedFiles = append(s.ModifiedFiles, path)
}

// advance moves the cursor forward one entry.
func (s *WorkflowState) advance() {
	s.CurrentIndex++
	if s.Exhausted() {
		s.NextAction = NextDone
	} else {
		s.NextAction = NextRewrite
	}
}
