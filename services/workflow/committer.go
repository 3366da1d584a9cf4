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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ishaan-arora-1/not-cursor/services/git"
	"github.com/ishaan-arora-1/not-cursor/services/validate"
)

const (
	DefaultBranchPrefix  = "feature--"
	DefaultCommitMessage = "Auto-generated code changes from AI workflow"
	DefaultRemote        = "origin"
	branchSuffixLen      = 6
)

// CommitterConfig holds the fixed parts of every commit.
type CommitterConfig struct {
	Remote       string
	Message      string
	BranchPrefix string
}

// CommitResult describes a pushed branch.
type CommitResult struct {
	Branch string
	Stats  []validate.FileStat
	// TreeURL and PullRequestURL are set for github.com remotes.
	TreeURL        string
	PullRequestURL string
}

// GitCommitter persists the modified files as one commit on a new branch.
type GitCommitter struct {
	executor  git.Executor
	config    CommitterConfig
	newSuffix func() string
	logger    *slog.Logger
}

func NewGitCommitter(executor git.Executor, config CommitterConfig, logger *slog.Logger) *GitCommitter {
	if config.Remote == "" {
		config.Remote = DefaultRemote
	}
	if config.Message == "" {
		config.Message = DefaultCommitMessage
	}
	if config.BranchPrefix == "" {
		config.BranchPrefix = DefaultBranchPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitCommitter{executor: executor, config: config, newSuffix: randomSuffix, logger: logger}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:branchSuffixLen]
}

// Commit writes st.ModifiedFiles under st.RepoPath, commits them on a fresh
// branch and pushes it. It returns nil, nil when nothing was modified.
// Nothing is rolled back on failure.
func (c *GitCommitter) Commit(ctx context.Context, st *WorkflowState, sink EventSink) (*CommitResult, error) {
	if len(st.ModifiedFiles) == 0 {
		sink.Emit("No modified files to commit.")
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "workflow.GitCommitter.Commit")
	defer span.End()

	branch := c.config.BranchPrefix + c.newSuffix()
	if err := c.run(ctx, "checkout", "-b", branch); err != nil {
		return nil, err
	}

	for _, path := range st.ModifiedFiles {
		if err := writeRepoFile(st.RepoPath, path, st.Files[path]); err != nil {
			return nil, err
		}
	}

	if err := c.run(ctx, append([]string{"add", "--"}, st.ModifiedFiles...)...); err != nil {
		return nil, err
	}

	result := &CommitResult{Branch: branch}
	diff, err := c.executor.Run(ctx, "diff", "--cached", "--no-color")
	if err != nil {
		return nil, &SourceControlCommandError{Err: err}
	}
	if stats, err := validate.DiffStats(diff.Stdout); err != nil {
		c.logger.Warn("Could not parse staged diff", "error", err)
	} else {
		result.Stats = stats
		for _, s := range stats {
			emitf(sink, "📊 %s", s.String())
		}
	}

	if err := c.run(ctx, "commit", "-m", c.config.Message); err != nil {
		return nil, err
	}
	if err := c.run(ctx, "push", "-u", c.config.Remote, branch); err != nil {
		return nil, err
	}
	emitf(sink, "✅ Changes committed and pushed to branch: %s", branch)

	if remoteURL, err := git.RemoteURL(ctx, c.executor, c.config.Remote); err != nil {
		c.logger.Debug("No remote URL for links", "remote", c.config.Remote, "error", err)
	} else if gh, ok := git.ParseGitHubRemote(remoteURL); ok {
		result.TreeURL = gh.TreeURL(branch)
		result.PullRequestURL = gh.PullRequestURL(branch)
	}
	return result, nil
}

func (c *GitCommitter) run(ctx context.Context, args ...string) error {
	if _, err := c.executor.Run(ctx, args...); err != nil {
		return &SourceControlCommandError{Err: err}
	}
	return nil
}

// writeRepoFile writes content to the repo-relative path, creating parent
// directories and keeping the mode of an existing file.
func writeRepoFile(root, path, content string) error {
	if !filepath.IsLocal(filepath.FromSlash(path)) {
		return fmt.Errorf("refusing to write %s: path escapes repository", path)
	}
	full := filepath.Join(root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}
	perm := os.FileMode(0o644)
	if info, err := os.Stat(full); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.WriteFile(full, []byte(content), perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
