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
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ishaan-arora-1/not-cursor/services/llm"
)

// NoChangeSentinel is the reply that leaves a file untouched.
const NoChangeSentinel = "NO_CHANGE"

const rewriteInstruction = "Return the full file content. If no changes are needed, just say '" + NoChangeSentinel + "'."

// planningMessages builds the single planning request.
func planningMessages(prompt string, files map[string]string, fileList []string, commits []string) []llm.Message {
	var summary strings.Builder
	for i, path := range fileList {
		if i > 0 {
			summary.WriteByte('\n')
		}
		fmt.Fprintf(&summary, "%s: %d chars", path, utf8.RuneCountInString(files[path]))
	}

	system := fmt.Sprintf(`You are an AI software engineer. A user gave you this task: "%s"

Based on the current repo files and recent commits, list which files you'll need to modify or create and what you will do.
Only include tracked or to-be-created editable files (.py, .js, .ts, etc).
If you need to create new files, list them in the plan too.

Summarize your plan and give step-by-step actions.

Recent Commits:
%s

Files in repo:
%s

Please provide the plan as a JSON list of objects with "file" and "action" keys, for example:

[
  {"file": "src/components/NavBar.tsx", "action": "Add login/logout button"},
  {"file": "src/components/ui/dialog.tsx", "action": "Create login modal dialog"}
]
`, prompt, strings.Join(commits, "\n"), summary.String())

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: prompt},
	}
}

// rewriteMessages builds the create variant when before is blank and the
// modify variant otherwise.
func rewriteMessages(entry PlanEntry, before string) []llm.Message {
	var system string
	if strings.TrimSpace(before) == "" {
		system = fmt.Sprintf(`You are creating a **new file** for this project based on the following plan.

--- PLAN ITEM ---
File: %s
Action: %s

Generate the full file content.
`, entry.Target, entry.Action)
	} else {
		system = fmt.Sprintf(`You are modifying the following file in response to the given plan item.

Do not change anything unrelated. Do not reformat the whole file. Only implement the action needed.

--- PLAN ITEM ---
File: %s
Action: %s

--- FILE CONTENT BEFORE ---
%s
`, entry.Target, entry.Action, before)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: rewriteInstruction},
	}
}
