// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package git

import (
	"strings"
)

// CommandKind describes what a git invocation touches.
type CommandKind int

const (
	// KindReadOnly commands only inspect the repository.
	KindReadOnly CommandKind = iota

	// KindWorkTree commands change the index, refs or working tree.
	KindWorkTree

	// KindRemote commands talk to a remote.
	KindRemote
)

func (k CommandKind) String() string {
	switch k {
	case KindReadOnly:
		return "read_only"
	case KindWorkTree:
		return "work_tree"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

var remoteCommands = map[string]bool{
	"push":      true,
	"fetch":     true,
	"pull":      true,
	"clone":     true,
	"ls-remote": true,
}

var readOnlyCommands = map[string]bool{
	"status":    true,
	"diff":      true,
	"log":       true,
	"show":      true,
	"remote":    true, // get-url, -v
	"describe":  true,
	"rev-parse": true,
	"ls-files":  true,
	"ls-tree":   true,
	"cat-file":  true,
	"blame":     true,
	"shortlog":  true,
	"reflog":    true,
	"version":   true,
}

// classifyCommand maps git args to a CommandKind. Unrecognized subcommands
// are treated as work-tree mutations.
//
// # Examples
//
//   - ["push", "-u", "origin", "b"] -> KindRemote
//   - ["checkout", "-b", "b"] -> KindWorkTree
//   - ["diff", "--cached"] -> KindReadOnly
//   - ["branch"] -> KindReadOnly, ["branch", "-D", "x"] -> KindWorkTree
func classifyCommand(args []string) CommandKind {
	if len(args) == 0 {
		return KindReadOnly
	}
	subcmd := args[0]

	if remoteCommands[subcmd] {
		return KindRemote
	}
	if readOnlyCommands[subcmd] {
		if subcmd == "remote" && len(args) > 1 && (args[1] == "add" || args[1] == "remove" || args[1] == "set-url") {
			return KindWorkTree
		}
		return KindReadOnly
	}
	if subcmd == "branch" || subcmd == "tag" || subcmd == "config" {
		if len(getFileArgs(args[1:])) == 0 || hasFlag(args, "--list") || hasFlag(args, "--get") {
			return KindReadOnly
		}
	}
	return KindWorkTree
}

// pathArgs returns the paths after "--" for commands like
// `git add -- a.ts b.py`.
func pathArgs(args []string) []string {
	if idx := findDoubleDash(args); idx != -1 {
		return getFileArgs(args[idx+1:])
	}
	return nil
}

// getFileArgs extracts non-flag arguments.
func getFileArgs(args []string) []string {
	var files []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && arg != "--" {
			files = append(files, arg)
		}
	}
	return files
}

// hasFlag checks if args contain a specific flag.
func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

// findDoubleDash returns the index of "--" or -1 if not found.
func findDoubleDash(args []string) int {
	for i, arg := range args {
		if arg == "--" {
			return i
		}
	}
	return -1
}
