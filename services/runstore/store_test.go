// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Millisecond)

	rec := &RunRecord{
		ID:        "run-1",
		Prompt:    "add a footer",
		Status:    StatusRunning,
		Phase:     "loading",
		StartedAt: started,
	}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "add a footer", got.Prompt)
	assert.Equal(t, StatusRunning, got.Status)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Nil(t, got.FinishedAt)

	// Saving again replaces the record without duplicating the index.
	finished := started.Add(time.Second)
	rec.Status = StatusSucceeded
	rec.Branch = "feature--abc123"
	rec.Plan = []PlanItem{{File: "src/Footer.tsx", Action: "create"}}
	rec.FinishedAt = &finished
	require.NoError(t, s.Save(ctx, rec))

	got, err = s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Equal(t, "feature--abc123", got.Branch)
	require.Len(t, got.Plan, 1)
	require.NotNil(t, got.FinishedAt)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, &RunRecord{
			ID:        id,
			Status:    StatusSucceeded,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, "a", all[2].ID)

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "c", limited[0].ID)
}

func TestStore_SaveRequiresID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Save(context.Background(), &RunRecord{}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestStore_CancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Save(ctx, &RunRecord{ID: "x"}))
	_, err := s.Get(ctx, "x")
	assert.Error(t, err)
	_, err = s.List(ctx, 0)
	assert.Error(t, err)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), &RunRecord{ID: "keep", StartedAt: time.Now()}))
	require.NoError(t, s.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(context.Background(), "keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}
