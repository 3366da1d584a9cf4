// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate inspects rewritten files and staged change sets.
//
// Nothing here blocks a run. Findings are reported as progress lines so the
// operator can review them before merging the pushed branch.
package validate

import "fmt"

// WarnType categorizes a Warning.
type WarnType string

const (
	// WarnTypeSyntax means the parser found ERROR or MISSING nodes.
	WarnTypeSyntax WarnType = "syntax"

	// WarnTypeSecret means a line looks like a hardcoded credential.
	WarnTypeSecret WarnType = "secret"
)

// Warning is one finding in one file.
type Warning struct {
	Type    WarnType `json:"type"`
	File    string   `json:"file"`
	Line    int      `json:"line"`
	Pattern string   `json:"pattern,omitempty"`
	Message string   `json:"message"`
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", w.File, w.Line, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.File, w.Message)
}

// SecretPattern defines a pattern for detecting secrets.
type SecretPattern struct {
	// Name is the pattern identifier.
	Name string

	// Pattern is the regex pattern.
	Pattern string

	// MinEntropy overrides the default minimum entropy.
	MinEntropy float64

	// Message describes the finding.
	Message string
}

// SecretPatterns returns the built-in credential patterns.
func SecretPatterns() []SecretPattern {
	return []SecretPattern{
		{
			Name:    "aws_access_key",
			Pattern: `AKIA[0-9A-Z]{16}`,
			Message: "Possible AWS access key ID",
		},
		{
			Name:    "github_token",
			Pattern: `gh[pousr]_[A-Za-z0-9]{36,}`,
			Message: "Possible GitHub token",
		},
		{
			Name:    "openai_key",
			Pattern: `sk-[A-Za-z0-9_-]{20,}`,
			Message: "Possible OpenAI-style API key",
		},
		{
			Name:    "private_key",
			Pattern: `-----BEGIN (RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`,
			Message: "Private key material",
		},
		{
			Name:       "generic_assignment",
			Pattern:    `(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*["'][^"'\s]{12,}["']`,
			MinEntropy: 3.5,
			Message:    "Possible hardcoded credential",
		},
	}
}

// Config tunes the checks.
type Config struct {
	// MinSecretEntropy applies to patterns without their own threshold.
	MinSecretEntropy float64

	// AllowlistPaths are globs exempt from secret scanning.
	AllowlistPaths []string

	// SkipSecrets disables the secret scanner entirely.
	SkipSecrets bool
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{MinSecretEntropy: 0}
}
