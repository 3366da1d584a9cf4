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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/ishaan-arora-1/not-cursor/services/git"
	"github.com/ishaan-arora-1/not-cursor/services/llm"
)

// =============================================================================
// Fake oracle
// =============================================================================

type oracleCall struct {
	Messages []llm.Message
}

// fakeOracle answers planning calls with plan and rewrite calls from
// rewrites keyed by target path. Unknown targets get NO_CHANGE.
type fakeOracle struct {
	mu       sync.Mutex
	plan     string
	planErr  error
	rewrites map[string]string
	errFor   map[string]error
	panicFor string
	calls    []oracleCall
}

func (f *fakeOracle) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, oracleCall{Messages: messages})

	if len(messages) < 2 || messages[1].Content != rewriteInstruction {
		return f.plan, f.planErr
	}
	target := targetOf(messages[0].Content)
	if target == f.panicFor && target != "" {
		panic("oracle exploded")
	}
	if err := f.errFor[target]; err != nil {
		return "", err
	}
	if reply, ok := f.rewrites[target]; ok {
		return reply, nil
	}
	return NoChangeSentinel, nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeOracle) lastCall() oracleCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func targetOf(system string) string {
	for _, line := range strings.Split(system, "\n") {
		if strings.HasPrefix(line, "File: ") {
			return strings.TrimPrefix(line, "File: ")
		}
	}
	return ""
}

// =============================================================================
// Fake git executor
// =============================================================================

type fakeExecutor struct {
	mu        sync.Mutex
	calls     [][]string
	failOn    string
	remoteURL string
	diff      string
}

func (f *fakeExecutor) Run(ctx context.Context, args ...string) (git.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), args...))

	if len(args) > 0 && args[0] == f.failOn {
		return git.Result{Args: args, ExitCode: 128}, &git.CommandError{
			Args:     args,
			ExitCode: 128,
			Stderr:   "fatal: " + f.failOn + " rejected",
		}
	}
	switch args[0] {
	case "remote":
		if f.remoteURL == "" {
			return git.Result{Args: args, ExitCode: 2}, &git.CommandError{Args: args, ExitCode: 2, Stderr: "error: No such remote"}
		}
		return git.Result{Args: args, Stdout: f.remoteURL + "\n"}, nil
	case "diff":
		return git.Result{Args: args, Stdout: f.diff}, nil
	}
	return git.Result{Args: args}, nil
}

func (f *fakeExecutor) subcommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c[0])
	}
	return out
}

// =============================================================================
// Fixtures
// =============================================================================

// initFixtureRepo creates a repository with files tracked and one commit per
// message, oldest first.
func initFixtureRepo(t *testing.T, files map[string][]byte, messages ...string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, data := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, data, 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}

	sig := &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()}
	for _, msg := range messages {
		_, err := wt.Commit(msg, &gogit.CommitOptions{Author: sig, AllowEmptyCommits: true})
		require.NoError(t, err)
	}
	return dir
}

// recordingSink collects emitted lines.
type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Emit(message string) {
	s.mu.Lock()
	s.lines = append(s.lines, message)
	s.mu.Unlock()
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

const footerDiff = `diff --git a/src/Footer.tsx b/src/Footer.tsx
new file mode 100644
index 0000000..3b18e51
--- /dev/null
+++ b/src/Footer.tsx
@@ -0,0 +1,2 @@
+export const Footer = () => <footer>hello</footer>;
+export default Footer;
`

func llmParams() llm.GenerationParams {
	return llm.GenerationParams{Temperature: llm.Float32(0.7), MaxTokens: llm.Int(512)}
}
