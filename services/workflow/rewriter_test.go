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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishaan-arora-1/not-cursor/pkg/config"
	"github.com/ishaan-arora-1/not-cursor/services/validate"
)

func newTestRewriter(oracle *fakeOracle, opts ...RewriterOption) *FileRewriter {
	return NewFileRewriter(oracle, llmParams(), config.DefaultEditableExtensions, nil, opts...)
}

func stateWithPlan(plan ...PlanEntry) *WorkflowState {
	st := NewState("/repo")
	st.Plan = plan
	return st
}

// runToEnd steps until the plan is exhausted and returns the cursor after
// every step.
func runToEnd(t *testing.T, r *FileRewriter, st *WorkflowState, sink EventSink) []int {
	t.Helper()
	var cursors []int
	for st.NextAction != NextDone {
		require.NoError(t, r.Step(context.Background(), st, sink))
		cursors = append(cursors, st.CurrentIndex)
		require.LessOrEqual(t, len(cursors), len(st.Plan)+1, "rewriter did not terminate")
	}
	return cursors
}

func TestFileRewriter_CreateNewFile(t *testing.T) {
	oracle := &fakeOracle{rewrites: map[string]string{
		"src/Footer.tsx": "\n\nexport const Footer = () => <footer/>;\n  ",
	}}
	r := newTestRewriter(oracle)
	sink := &recordingSink{}
	st := stateWithPlan(PlanEntry{Target: "src/Footer.tsx", Action: "Create footer"})

	runToEnd(t, r, st, sink)

	assert.Equal(t, "export const Footer = () => <footer/>;", st.Files["src/Footer.tsx"])
	assert.Equal(t, []string{"src/Footer.tsx"}, st.ModifiedFiles)
	assert.Equal(t, []string{"✅ Modified or created: src/Footer.tsx"}, sink.all())

	system := oracle.lastCall().Messages[0].Content
	assert.Contains(t, system, "creating a **new file**")
	assert.NotContains(t, system, "FILE CONTENT BEFORE")
}

func TestFileRewriter_ModifyExistingIncludesBefore(t *testing.T) {
	oracle := &fakeOracle{rewrites: map[string]string{"app.py": "print('new')"}}
	r := newTestRewriter(oracle)
	st := stateWithPlan(PlanEntry{Target: "app.py", Action: "update greeting"})
	st.Files["app.py"] = "print('old')\n"

	runToEnd(t, r, st, &recordingSink{})

	system := oracle.lastCall().Messages[0].Content
	assert.Contains(t, system, "Do not change anything unrelated")
	assert.Contains(t, system, "--- FILE CONTENT BEFORE ---\nprint('old')\n")
	assert.Equal(t, "print('new')", st.Files["app.py"])
}

func TestFileRewriter_BlankExistingUsesCreateVariant(t *testing.T) {
	oracle := &fakeOracle{rewrites: map[string]string{"empty.js": "x()"}}
	r := newTestRewriter(oracle)
	st := stateWithPlan(PlanEntry{Target: "empty.js", Action: "fill"})
	st.Files["empty.js"] = "   \n"

	runToEnd(t, r, st, &recordingSink{})
	assert.Contains(t, oracle.lastCall().Messages[0].Content, "new file")
}

func TestFileRewriter_ExtensionGateIsPure(t *testing.T) {
	oracle := &fakeOracle{}
	r := newTestRewriter(oracle)
	sink := &recordingSink{}
	st := stateWithPlan(
		PlanEntry{Target: "docs/readme.md", Action: "document"},
		PlanEntry{Target: "../outside.py", Action: "escape"},
		PlanEntry{Target: "", Action: "nothing"},
	)
	st.Files["docs/readme.md"] = "# Docs\n"

	cursors := runToEnd(t, r, st, sink)

	assert.Equal(t, []int{1, 2, 3}, cursors)
	assert.Zero(t, oracle.callCount())
	assert.Empty(t, st.ModifiedFiles)
	assert.Equal(t, "# Docs\n", st.Files["docs/readme.md"])
	assert.Empty(t, sink.all())
}

func TestFileRewriter_NoChangeIsIdempotent(t *testing.T) {
	for _, reply := range []string{"NO_CHANGE", "  no_change\n", "No_Change", ""} {
		t.Run(reply, func(t *testing.T) {
			oracle := &fakeOracle{rewrites: map[string]string{"a.ts": reply}}
			r := newTestRewriter(oracle)
			sink := &recordingSink{}
			st := stateWithPlan(PlanEntry{Target: "a.ts", Action: "maybe"})
			st.Files["a.ts"] = "const a = 1;"

			runToEnd(t, r, st, sink)

			assert.Equal(t, "const a = 1;", st.Files["a.ts"])
			assert.Empty(t, st.ModifiedFiles)
			assert.Equal(t, []string{"⏭️ Skipped: a.ts"}, sink.all())
		})
	}
}

func TestFileRewriter_DuplicateTargetsRecordedOnce(t *testing.T) {
	oracle := &fakeOracle{rewrites: map[string]string{"a.jsx": "v2"}}
	r := newTestRewriter(oracle)
	st := stateWithPlan(
		PlanEntry{Target: "a.jsx", Action: "first"},
		PlanEntry{Target: "b.jsx", Action: "untouched"},
		PlanEntry{Target: "a.jsx", Action: "second"},
	)

	cursors := runToEnd(t, r, st, &recordingSink{})

	assert.Equal(t, []int{1, 2, 3}, cursors, "cursor is monotonic")
	assert.Equal(t, []string{"a.jsx"}, st.ModifiedFiles)
	assert.Equal(t, 3, oracle.callCount())
	for _, p := range st.ModifiedFiles {
		assert.NotEmpty(t, st.Files[p])
	}
}

func TestFileRewriter_OracleFailureIsFatal(t *testing.T) {
	boom := errors.New("connection reset")
	oracle := &fakeOracle{errFor: map[string]error{"a.py": boom}}
	r := newTestRewriter(oracle)
	st := stateWithPlan(PlanEntry{Target: "a.py", Action: "x"})

	err := r.Step(context.Background(), st, &recordingSink{})

	var oracleErr *OracleCallError
	require.ErrorAs(t, err, &oracleErr)
	assert.Equal(t, "a.py", oracleErr.Target)
	assert.Equal(t, PhaseRewriting, oracleErr.Phase)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, st.ModifiedFiles)
}

func TestFileRewriter_ExhaustedPlan(t *testing.T) {
	r := newTestRewriter(&fakeOracle{})
	st := stateWithPlan()
	require.NoError(t, r.Step(context.Background(), st, &recordingSink{}))
	assert.Equal(t, NextDone, st.NextAction)
	assert.Equal(t, 0, st.CurrentIndex)
}

type stubChecker struct{ warnings []validate.Warning }

func (s stubChecker) Check(ctx context.Context, path, content string) []validate.Warning {
	return s.warnings
}

func TestFileRewriter_ReportsCheckerFindings(t *testing.T) {
	oracle := &fakeOracle{rewrites: map[string]string{"a.py": "def broken(:"}}
	checker := stubChecker{warnings: []validate.Warning{{
		Type: validate.WarnTypeSyntax, File: "a.py", Line: 1, Message: "syntax error",
	}}}
	r := newTestRewriter(oracle, WithContentChecker(checker))
	sink := &recordingSink{}
	st := stateWithPlan(PlanEntry{Target: "a.py", Action: "x"})

	runToEnd(t, r, st, sink)

	assert.Equal(t, "def broken(:", st.Files["a.py"], "findings never block the rewrite")
	assert.Equal(t, []string{
		"✅ Modified or created: a.py",
		"⚠️ a.py:1: syntax error",
	}, sink.all())
}

func TestFileRewriter_Editable(t *testing.T) {
	r := newTestRewriter(&fakeOracle{})
	assert.True(t, r.Editable("src/Footer.tsx"))
	assert.True(t, r.Editable("main.py"))
	assert.False(t, r.Editable("README.md"))
	assert.False(t, r.Editable("main.PY"))
	assert.False(t, r.Editable("/etc/passwd.py"))
	assert.False(t, r.Editable("a/../../b.py"))
}
