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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishaan-arora-1/not-cursor/pkg/config"
	"github.com/ishaan-arora-1/not-cursor/services/llm"
	"github.com/ishaan-arora-1/not-cursor/services/runstore"
)

type memRecorder struct {
	mu      sync.Mutex
	records map[string]*runstore.RunRecord
	saves   int
}

func (m *memRecorder) Save(ctx context.Context, rec *runstore.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]*runstore.RunRecord)
	}
	m.records[rec.ID] = rec
	m.saves++
	return nil
}

func (m *memRecorder) get(id string) *runstore.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

type countingMetrics struct {
	mu       sync.Mutex
	started  int
	finished map[string]int
	phases   []Phase
	outcomes map[string]int
	planSize int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{finished: map[string]int{}, outcomes: map[string]int{}}
}

func (m *countingMetrics) RunStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *countingMetrics) RunFinished(status string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[status]++
}

func (m *countingMetrics) PhaseEntered(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases = append(m.phases, p)
}

func (m *countingMetrics) PlanSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.planSize = n
}

func (m *countingMetrics) FileRewritten(o string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[o]++
}

type harness struct {
	repo     string
	oracle   *fakeOracle
	exec     *fakeExecutor
	recorder *memRecorder
	metrics  *countingMetrics
	coord    *Coordinator
}

func newHarness(t *testing.T, oracle *fakeOracle) *harness {
	t.Helper()
	repo := initFixtureRepo(t, map[string][]byte{
		"src/App.tsx":    []byte("export default function App() { return null; }\n"),
		"docs/readme.md": []byte("# Site\n"),
	}, "Initial commit", "Add docs")

	h := &harness{
		repo:     repo,
		oracle:   oracle,
		exec:     &fakeExecutor{remoteURL: "https://github.com/acme/site.git", diff: footerDiff},
		recorder: &memRecorder{},
		metrics:  newCountingMetrics(),
	}
	committer := NewGitCommitter(h.exec, CommitterConfig{}, nil)
	committer.newSuffix = func() string { return "abc123" }

	h.coord = NewCoordinator(repo,
		NewRepoContextLoader(5, nil),
		NewPlanGenerator(oracle, llmParams(), nil),
		NewFileRewriter(oracle, llmParams(), config.DefaultEditableExtensions, nil, WithRewriteMetrics(h.metrics)),
		committer,
		WithRecorder(h.recorder),
		WithMetrics(h.metrics),
	)
	return h
}

// drain reads run's events until done.
func drain(t *testing.T, run *Run) []string {
	t.Helper()
	var out []string
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := NewStreamingReporter(20*time.Millisecond).Stream(ctx, run, func(ev Event) error {
		if ev.Type == EventOutput {
			out = append(out, ev.Message)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestCoordinator_CreatesFileAndSkipsDocs(t *testing.T) {
	oracle := &fakeOracle{
		plan: `Plan:
[
  {"file": "src/Footer.tsx", "action": "Create a footer component"},
  {"file": "docs/readme.md", "action": "Mention the footer"}
]`,
		rewrites: map[string]string{"src/Footer.tsx": "export const Footer = () => <footer>hello</footer>;"},
	}
	h := newHarness(t, oracle)

	run, err := h.coord.Submit(context.Background(), "Add a footer")
	require.NoError(t, err)
	lines := drain(t, run)
	<-run.Done()

	require.GreaterOrEqual(t, len(lines), 6)
	assert.True(t, strings.HasPrefix(lines[0], "Files loaded: ["))
	assert.True(t, strings.HasPrefix(lines[1], "Commits: ["))
	assert.Contains(t, lines[1], ": Add docs")
	assert.True(t, strings.HasPrefix(lines[2], "📋 Plan: ["))
	assert.Contains(t, lines[2], `"file": "src/Footer.tsx"`)
	assert.Contains(t, lines, "✅ Modified or created: src/Footer.tsx")
	assert.Contains(t, lines, "✅ Changes committed and pushed to branch: feature--abc123")
	assert.Contains(t, lines, "🎉 Workflow completed successfully!")
	assert.Contains(t, lines, "Branch: feature--abc123")
	assert.Contains(t, lines, "GitHub: https://github.com/acme/site/tree/feature--abc123")
	assert.Equal(t, "Pull Request: https://github.com/acme/site/pull/new/feature--abc123", lines[len(lines)-1])

	// Only the footer hit the oracle; the markdown entry was gated.
	assert.Equal(t, 2, oracle.callCount())

	data, err := os.ReadFile(filepath.Join(h.repo, "src", "Footer.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "export const Footer = () => <footer>hello</footer>;", string(data))
	docs, err := os.ReadFile(filepath.Join(h.repo, "docs", "readme.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Site\n", string(docs))

	assert.Equal(t, PhaseDone, run.Phase())
	rec := h.recorder.get(run.ID)
	require.NotNil(t, rec)
	assert.Equal(t, runstore.StatusSucceeded, rec.Status)
	assert.Equal(t, "done", rec.Phase)
	assert.Equal(t, "feature--abc123", rec.Branch)
	assert.Equal(t, []string{"src/Footer.tsx"}, rec.ModifiedFiles)
	assert.Len(t, rec.Plan, 2)
	assert.Equal(t, lines, rec.Transcript)
	require.NotNil(t, rec.FinishedAt)

	assert.Equal(t, 1, h.metrics.started)
	assert.Equal(t, 2, h.metrics.planSize)
	assert.Equal(t, 1, h.metrics.finished["succeeded"])
	assert.Equal(t, 1, h.metrics.outcomes[OutcomeModified])
	assert.Equal(t, 1, h.metrics.outcomes[OutcomeGated])
	assert.Equal(t, []Phase{PhaseLoading, PhasePlanning, PhaseRewriting, PhaseRewriting, PhaseCommitting, PhaseDone}, h.metrics.phases)
}

func TestCoordinator_NoPlanReportsAndCompletes(t *testing.T) {
	h := newHarness(t, &fakeOracle{plan: "I would rather not."})

	run, err := h.coord.Submit(context.Background(), "do something")
	require.NoError(t, err)
	lines := drain(t, run)

	last := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(last, "❌ Failed to extract JSON plan: "), last)
	assert.Empty(t, h.exec.calls, "nothing is committed")
	assert.Equal(t, PhaseFailed, run.Phase())
	assert.Equal(t, runstore.StatusFailed, h.recorder.get(run.ID).Status)
}

func TestCoordinator_AllNoChangeStillCompletes(t *testing.T) {
	h := newHarness(t, &fakeOracle{plan: `[{"file":"src/App.tsx","action":"tweak"}]`})

	run, err := h.coord.Submit(context.Background(), "tweak app")
	require.NoError(t, err)
	lines := drain(t, run)

	assert.Contains(t, lines, "⏭️ Skipped: src/App.tsx")
	assert.Contains(t, lines, "No modified files to commit.")
	assert.Equal(t, "🎉 Workflow completed successfully!", lines[len(lines)-1])
	assert.Empty(t, h.exec.calls)
	assert.Equal(t, runstore.StatusSucceeded, run.Status())
}

func TestCoordinator_RewriteFailureCommitsNothing(t *testing.T) {
	h := newHarness(t, &fakeOracle{
		plan:     `[{"file":"a.py","action":"one"},{"file":"b.py","action":"two"}]`,
		rewrites: map[string]string{"a.py": "print(1)"},
		errFor:   map[string]error{"b.py": errors.New("rate limited")},
	})

	run, err := h.coord.Submit(context.Background(), "two files")
	require.NoError(t, err)
	lines := drain(t, run)

	assert.Contains(t, lines, "✅ Modified or created: a.py")
	assert.Contains(t, lines[len(lines)-1], "❌ Error: ")
	assert.Contains(t, lines[len(lines)-1], "rate limited")
	assert.Empty(t, h.exec.calls)
	_, statErr := os.Stat(filepath.Join(h.repo, "a.py"))
	assert.True(t, os.IsNotExist(statErr), "all-or-nothing: no file written")
}

func TestCoordinator_PushFailureReported(t *testing.T) {
	h := newHarness(t, &fakeOracle{
		plan:     `[{"file":"a.py","action":"one"}]`,
		rewrites: map[string]string{"a.py": "print(1)"},
	})
	h.exec.failOn = "push"

	run, err := h.coord.Submit(context.Background(), "push it")
	require.NoError(t, err)
	lines := drain(t, run)

	last := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(last, "❌ Error: git push"), last)
	assert.Equal(t, runstore.StatusFailed, run.Status())
}

func TestCoordinator_BadRepository(t *testing.T) {
	h := newHarness(t, &fakeOracle{})
	h.coord.repoPath = t.TempDir()

	run, err := h.coord.Submit(context.Background(), "anything")
	require.NoError(t, err)
	lines := drain(t, run)

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "❌ Error: cannot access repository")
	assert.Zero(t, h.oracle.callCount())
}

func TestCoordinator_PanicStillTerminates(t *testing.T) {
	h := newHarness(t, &fakeOracle{
		plan:     `[{"file":"a.py","action":"one"}]`,
		panicFor: "a.py",
	})

	run, err := h.coord.Submit(context.Background(), "explode")
	require.NoError(t, err)
	lines := drain(t, run)

	assert.Equal(t, "❌ Error: oracle exploded", lines[len(lines)-1])
	assert.Equal(t, PhaseFailed, run.Phase())
	_, active := h.coord.Registry().Active()
	assert.False(t, active)
}

func TestCoordinator_OneActiveRun(t *testing.T) {
	release := make(chan struct{})
	oracle := &fakeOracle{plan: `[{"file":"a.py","action":"one"}]`}
	h := newHarness(t, oracle)
	h.coord.planner = NewPlanGenerator(blockingOracle{next: oracle, release: release}, llmParams(), nil)

	first, err := h.coord.Submit(context.Background(), "first")
	require.NoError(t, err)

	_, err = h.coord.Submit(context.Background(), "second")
	require.ErrorIs(t, err, ErrRunActive)
	var activeErr *RunActiveError
	require.ErrorAs(t, err, &activeErr)
	assert.Equal(t, first.ID, activeErr.RunID)

	close(release)
	drain(t, first)

	second, err := h.coord.Submit(context.Background(), "second")
	require.NoError(t, err)
	drain(t, second)

	latest, err := h.coord.Registry().Latest()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestCoordinator_EmptyPrompt(t *testing.T) {
	h := newHarness(t, &fakeOracle{})
	_, err := h.coord.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestCoordinator_SubmitOutlivesRequestContext(t *testing.T) {
	h := newHarness(t, &fakeOracle{plan: `[{"file":"src/App.tsx","action":"tweak"}]`})
	ctx, cancel := context.WithCancel(context.Background())

	run, err := h.coord.Submit(ctx, "tweak")
	require.NoError(t, err)
	cancel()

	lines := drain(t, run)
	assert.Equal(t, "🎉 Workflow completed successfully!", lines[len(lines)-1])
}

type blockingOracle struct {
	next    *fakeOracle
	release chan struct{}
}

func (b blockingOracle) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	<-b.release
	return b.next.Chat(ctx, messages, params)
}
