// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishaan-arora-1/not-cursor/pkg/logging"
	"github.com/ishaan-arora-1/not-cursor/pkg/ux"
	"github.com/ishaan-arora-1/not-cursor/services/runstore"
)

func openHistory() (*runstore.Store, error) {
	if cfg.Store.InMemory {
		return nil, errors.New("run history is disabled (store.in_memory is set)")
	}
	store, err := runstore.Open(runstore.DefaultConfig(logging.ExpandPath(cfg.Store.Path)))
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return store, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		if ux.GetPersonality().Level != ux.PersonalityMachine {
			fmt.Fprintln(out, ux.Styles.Muted.Render("No runs recorded yet."))
		}
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ID,
			string(rec.Status),
			rec.StartedAt.Local().Format(time.DateTime),
			truncate(rec.Prompt, 48),
		})
	}
	ux.Table(out, []string{"ID", "STATUS", "STARTED", "PROMPT"}, rows)
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(cmd.Context(), args[0])
	if errors.Is(err, runstore.ErrNotFound) {
		return fmt.Errorf("no run with id %s", args[0])
	}
	if err != nil {
		return err
	}
	return showRecord(cmd.OutOrStdout(), rec)
}

func showRecord(w io.Writer, rec *runstore.RunRecord) error {
	if ux.GetPersonality().Level == ux.PersonalityMachine {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	ux.Title(w, "Run "+rec.ID)
	details := []string{
		"Prompt:  " + rec.Prompt,
		"Status:  " + string(rec.Status) + " (" + rec.Phase + ")",
		"Started: " + rec.StartedAt.Local().Format(time.DateTime),
	}
	if rec.FinishedAt != nil {
		details = append(details, "Took:    "+rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String())
	}
	if rec.Branch != "" {
		details = append(details, "Branch:  "+rec.Branch)
	}
	if rec.TreeURL != "" {
		details = append(details, "Tree:    "+rec.TreeURL)
	}
	if rec.PullRequestURL != "" {
		details = append(details, "PR:      "+rec.PullRequestURL)
	}
	if rec.Error != "" {
		details = append(details, "Error:   "+rec.Error)
	}
	ux.Box(w, "Summary", strings.Join(details, "\n"))

	if len(rec.Plan) > 0 {
		rows := make([][]string, 0, len(rec.Plan))
		for _, item := range rec.Plan {
			rows = append(rows, []string{item.File, item.Action})
		}
		ux.Table(w, []string{"FILE", "ACTION"}, rows)
	}

	renderer := ux.NewEventRenderer(w)
	for _, line := range rec.Transcript {
		if err := renderer.Render(ux.EventOutput, line); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
