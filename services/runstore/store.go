// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runstore persists the history of workflow runs in BadgerDB.
//
// Layout:
//
//	run/<id>                      → JSON RunRecord
//	idx/<started-unix-nanos>/<id> → empty, for newest-first listing
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("run record not found")

// PlanItem mirrors one plan entry.
type PlanItem struct {
	File   string `json:"file"`
	Action string `json:"action"`
}

// RunRecord is everything kept about one run.
type RunRecord struct {
	ID             string     `json:"id"`
	Prompt         string     `json:"prompt"`
	Status         Status     `json:"status"`
	Phase          string     `json:"phase"`
	Plan           []PlanItem `json:"plan,omitempty"`
	ModifiedFiles  []string   `json:"modified_files,omitempty"`
	Branch         string     `json:"branch,omitempty"`
	TreeURL        string     `json:"tree_url,omitempty"`
	PullRequestURL string     `json:"pull_request_url,omitempty"`
	Error          string     `json:"error,omitempty"`
	Transcript     []string   `json:"transcript,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Store is a BadgerDB-backed run history. Safe for concurrent use.
type Store struct {
	db *badger.DB
	gc *gcRunner
}

// Open opens or creates the store described by cfg.
func Open(cfg Config) (*Store, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
		s.gc = nil
	}
	return s.db.Close()
}

func runKey(id string) []byte {
	return []byte("run/" + id)
}

func indexKey(started time.Time, id string) []byte {
	return []byte(fmt.Sprintf("idx/%020d/%s", started.UnixNano(), id))
}

var indexPrefix = []byte("idx/")

// Save inserts or replaces rec.
func (s *Store) Save(ctx context.Context, rec *RunRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("run record needs an id")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rec.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(runKey(rec.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(rec.StartedAt, rec.ID), nil)
	})
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, id string) (*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var rec RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var records []*RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		opts.Prefix = indexPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, indexPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(indexPrefix); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			key := string(it.Item().Key())
			id := key[strings.LastIndexByte(key, '/')+1:]

			item, err := txn.Get(runKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var rec RunRecord
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return fmt.Errorf("decode run %s: %w", id, err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
