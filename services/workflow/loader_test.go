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
	"regexp"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var commitLine = regexp.MustCompile(`^[0-9a-f]{7}: `)

func TestRepoContextLoader_Load(t *testing.T) {
	dir := initFixtureRepo(t, map[string][]byte{
		"src/App.tsx": []byte("export default function App() {}\n"),
		"main.py":     []byte("print('hi')\n"),
		"logo.png":    {0x89, 'P', 'N', 'G', 0xff, 0xfe, 0x00},
	}, "Initial commit", "Add app\n\nLonger body text", "Third change")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.py"), []byte("x = 1\n"), 0o644))

	snap, err := NewRepoContextLoader(5, nil).Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "print('hi')\n", snap.Files["main.py"])
	assert.Contains(t, snap.Files, "src/App.tsx")
	assert.NotContains(t, snap.Files, "logo.png", "non-UTF-8 file is skipped")
	assert.NotContains(t, snap.Files, "untracked.py", "untracked file is excluded")
	assert.ElementsMatch(t, []string{"main.py", "src/App.tsx"}, snap.FileList)

	require.Len(t, snap.Commits, 3)
	for _, c := range snap.Commits {
		assert.Regexp(t, commitLine, c)
	}
	assert.Contains(t, snap.Commits[0], ": Third change")
	assert.Contains(t, snap.Commits[1], ": Add app")
	assert.NotContains(t, snap.Commits[1], "Longer body")
}

func TestRepoContextLoader_CommitLimit(t *testing.T) {
	dir := initFixtureRepo(t, map[string][]byte{"a.py": []byte("a")},
		"c1", "c2", "c3", "c4", "c5", "c6", "c7")

	snap, err := NewRepoContextLoader(5, nil).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, snap.Commits, 5)
	assert.Contains(t, snap.Commits[0], ": c7")
	assert.Contains(t, snap.Commits[4], ": c3")

	snap, err = NewRepoContextLoader(0, nil).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, snap.Commits)
}

func TestRepoContextLoader_DeletedFromWorktree(t *testing.T) {
	dir := initFixtureRepo(t, map[string][]byte{
		"keep.js": []byte("1"),
		"gone.js": []byte("2"),
	}, "init")
	require.NoError(t, os.Remove(filepath.Join(dir, "gone.js")))

	snap, err := NewRepoContextLoader(5, nil).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.js"}, snap.FileList)
}

func TestRepoContextLoader_FollowsTrackedSymlinks(t *testing.T) {
	dir := initFixtureRepo(t, map[string][]byte{"real.py": []byte("x = 1\n")}, "init")
	require.NoError(t, os.Symlink("real.py", filepath.Join(dir, "alias.py")))
	require.NoError(t, os.Symlink("missing.py", filepath.Join(dir, "dangling.py")))

	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for _, name := range []string{"alias.py", "dangling.py"} {
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("links", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	})
	require.NoError(t, err)

	snap, err := NewRepoContextLoader(5, nil).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", snap.Files["alias.py"])
	assert.NotContains(t, snap.Files, "dangling.py")
	assert.ElementsMatch(t, []string{"alias.py", "real.py"}, snap.FileList)
}

func TestRepoContextLoader_EmptyRepository(t *testing.T) {
	dir := initFixtureRepo(t, nil)

	snap, err := NewRepoContextLoader(5, nil).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, snap.Files)
	assert.Empty(t, snap.Commits)
}

func TestRepoContextLoader_NotARepository(t *testing.T) {
	_, err := NewRepoContextLoader(5, nil).Load(context.Background(), t.TempDir())
	var accessErr *RepositoryAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Contains(t, err.Error(), "cannot access repository")
}

func TestFormatCommit(t *testing.T) {
	assert.Equal(t, "0123456: subject", formatCommit("0123456789abcdef", "  subject  \nbody\n"))
	assert.Equal(t, "abc: x", formatCommit("abc", "x"))
}
