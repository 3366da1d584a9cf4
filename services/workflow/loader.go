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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCommitLimit = 5
	defaultReadWorkers = 8
	shortHashLen       = 7
)

// Snapshot is the read-only view of a repository taken before planning.
type Snapshot struct {
	Files    map[string]string
	Commits  []string
	FileList []string
}

// RepoContextLoader reads tracked file contents and recent history.
type RepoContextLoader struct {
	commitLimit int
	workers     int
	logger      *slog.Logger
}

func NewRepoContextLoader(commitLimit int, logger *slog.Logger) *RepoContextLoader {
	if commitLimit < 0 {
		commitLimit = DefaultCommitLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoContextLoader{commitLimit: commitLimit, workers: defaultReadWorkers, logger: logger}
}

// Load opens repoPath and returns its snapshot. Tracked symlinks are read
// through to their target. Submodules, dangling links and paths whose bytes
// are not valid UTF-8 are skipped.
func (l *RepoContextLoader) Load(ctx context.Context, repoPath string) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "workflow.RepoContextLoader.Load")
	defer span.End()

	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return nil, &RepositoryAccessError{Path: repoPath, Err: err}
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, &RepositoryAccessError{Path: repoPath, Err: fmt.Errorf("read index: %w", err)}
	}

	tracked := make([]string, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		switch e.Mode {
		case filemode.Regular, filemode.Executable, filemode.Symlink:
			tracked = append(tracked, e.Name)
		}
	}

	contents := make([]*string, len(tracked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, name := range tracked {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(repoPath, filepath.FromSlash(name)))
			if err != nil {
				l.logger.Debug("Skipping unreadable tracked file", "path", name, "error", err)
				return nil
			}
			if !utf8.Valid(data) {
				l.logger.Debug("Skipping non-text tracked file", "path", name)
				return nil
			}
			text := string(data)
			contents[i] = &text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{Files: make(map[string]string, len(tracked))}
	for i, name := range tracked {
		if contents[i] == nil {
			continue
		}
		snap.Files[name] = *contents[i]
		snap.FileList = append(snap.FileList, name)
	}

	snap.Commits, err = l.recentCommits(repo)
	if err != nil {
		return nil, &RepositoryAccessError{Path: repoPath, Err: err}
	}

	span.SetAttributes(
		attribute.Int("repo.tracked", len(tracked)),
		attribute.Int("repo.loaded", len(snap.FileList)),
		attribute.Int("repo.commits", len(snap.Commits)),
	)
	return snap, nil
}

func (l *RepoContextLoader) recentCommits(repo *gogit.Repository) ([]string, error) {
	if l.commitLimit == 0 {
		return nil, nil
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []string
	err = iter.ForEach(func(c *object.Commit) error {
		if len(commits) >= l.commitLimit {
			return storer.ErrStop
		}
		commits = append(commits, formatCommit(c.Hash.String(), c.Message))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return commits, nil
}

func formatCommit(hash, message string) string {
	if len(hash) > shortHashLen {
		hash = hash[:shortHashLen]
	}
	subject, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return hash + ": " + strings.TrimSpace(subject)
}
