// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// FileStat is the line delta of one file in a unified diff.
type FileStat struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Created bool   `json:"created,omitempty"`
}

func (s FileStat) String() string {
	if s.Created {
		return fmt.Sprintf("%s (new) +%d -%d", s.Path, s.Added, s.Removed)
	}
	return fmt.Sprintf("%s +%d -%d", s.Path, s.Added, s.Removed)
}

// DiffStats parses the output of `git diff --cached` into per-file stats,
// in diff order.
func DiffStats(unified string) ([]FileStat, error) {
	if strings.TrimSpace(unified) == "" {
		return nil, nil
	}
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(unified)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	stats := make([]FileStat, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		stat := FileStat{
			Path:    diffPath(fd),
			Created: fd.OrigName == "/dev/null",
		}
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
					stat.Added++
				} else if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
					stat.Removed++
				}
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func diffPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	return strings.TrimPrefix(strings.TrimPrefix(name, "b/"), "a/")
}
