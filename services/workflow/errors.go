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
	"errors"
	"fmt"
)

var (
	// ErrRunActive is matched by RunActiveError.
	ErrRunActive = errors.New("a workflow is already running")

	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")

	// ErrObserverAttached is returned when a run already has a stream reader.
	ErrObserverAttached = errors.New("run already has an observer")
)

// RunActiveError rejects a submission while another run is in flight.
type RunActiveError struct {
	RunID string
}

func (e *RunActiveError) Error() string {
	return fmt.Sprintf("a workflow is already running (run %s)", e.RunID)
}

func (e *RunActiveError) Is(target error) bool {
	return target == ErrRunActive
}

// RepositoryAccessError means the repository path could not be opened or read.
type RepositoryAccessError struct {
	Path string
	Err  error
}

func (e *RepositoryAccessError) Error() string {
	return fmt.Sprintf("cannot access repository %s: %v", e.Path, e.Err)
}

func (e *RepositoryAccessError) Unwrap() error { return e.Err }

// PlanExtractionError means the planning reply held no JSON array of objects.
type PlanExtractionError struct {
	// Reply is the head of the oracle text, for diagnostics.
	Reply string
}

func (e *PlanExtractionError) Error() string {
	return "no JSON array of {file, action} objects found in model response"
}

// OracleCallError wraps a failed language model call.
type OracleCallError struct {
	Phase Phase
	// Target is set when the call was for a plan entry.
	Target string
	Err    error
}

func (e *OracleCallError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("oracle call failed while %s %s: %v", e.Phase, e.Target, e.Err)
	}
	return fmt.Sprintf("oracle call failed while %s: %v", e.Phase, e.Err)
}

func (e *OracleCallError) Unwrap() error { return e.Err }

// SourceControlCommandError wraps a git command that exited non-zero.
type SourceControlCommandError struct {
	Err error
}

func (e *SourceControlCommandError) Error() string {
	return e.Err.Error()
}

func (e *SourceControlCommandError) Unwrap() error { return e.Err }
