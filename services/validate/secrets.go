// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"math"
	"regexp"
	"strings"
)

// SecretScanner scans code for hardcoded secrets.
type SecretScanner struct {
	patterns    []compiledSecretPattern
	minEntropy  float64
	allowlistRe []*regexp.Regexp
}

type compiledSecretPattern struct {
	SecretPattern
	regex *regexp.Regexp
}

// NewSecretScanner compiles the built-in patterns and the allowlist.
func NewSecretScanner(config Config) (*SecretScanner, error) {
	s := &SecretScanner{
		minEntropy: config.MinSecretEntropy,
	}

	for _, p := range SecretPatterns() {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, compiledSecretPattern{
			SecretPattern: p,
			regex:         re,
		})
	}

	for _, pattern := range config.AllowlistPaths {
		re, err := regexp.Compile(globToRegex(pattern))
		if err != nil {
			continue
		}
		s.allowlistRe = append(s.allowlistRe, re)
	}

	return s, nil
}

// Scan checks content line by line. Matches below the entropy threshold
// are dropped to cut placeholder noise like "your-api-key-here".
func (s *SecretScanner) Scan(content string, filePath string) []Warning {
	if s.isAllowlisted(filePath) {
		return nil
	}

	var warnings []Warning
	for lineNum, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(trimmed) {
			continue
		}

		for _, pattern := range s.patterns {
			for _, match := range pattern.regex.FindAllStringIndex(line, -1) {
				matchedStr := line[match[0]:match[1]]

				minEntropy := pattern.MinEntropy
				if minEntropy == 0 {
					minEntropy = s.minEntropy
				}
				if minEntropy > 0 && calculateEntropy(extractSecretValue(matchedStr)) < minEntropy {
					continue
				}

				warnings = append(warnings, Warning{
					Type:    WarnTypeSecret,
					Pattern: pattern.Name,
					File:    filePath,
					Line:    lineNum + 1,
					Message: pattern.Message,
				})
			}
		}
	}
	return warnings
}

func (s *SecretScanner) isAllowlisted(filePath string) bool {
	for _, re := range s.allowlistRe {
		if re.MatchString(filePath) {
			return true
		}
	}

	lower := strings.ToLower(filePath)
	return strings.Contains(lower, "fixture") ||
		strings.Contains(lower, "__tests__") ||
		strings.HasSuffix(lower, ".test.ts") ||
		strings.HasSuffix(lower, ".test.js") ||
		strings.HasSuffix(lower, ".spec.ts") ||
		strings.HasSuffix(lower, ".spec.js")
}

// calculateEntropy calculates Shannon entropy of a string.
func calculateEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// extractSecretValue extracts the likely secret value from a match.
// Handles formats like: key="value", key: value, key = 'value'
func extractSecretValue(match string) string {
	for _, sep := range []string{"=", ":"} {
		if idx := strings.Index(match, sep); idx > 0 {
			return strings.Trim(strings.TrimSpace(match[idx+1:]), `"'`)
		}
	}
	return match
}

func isCommentLine(line string) bool {
	return strings.HasPrefix(line, "//") ||
		strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "/*") ||
		strings.HasPrefix(line, "*")
}

// globToRegex converts a glob pattern to a regex pattern.
func globToRegex(glob string) string {
	special := []string{"\\", ".", "+", "^", "$", "(", ")", "[", "]", "{", "}", "|"}
	result := glob
	for _, s := range special {
		result = strings.ReplaceAll(result, s, "\\"+s)
	}

	result = strings.ReplaceAll(result, "**", "\x00")
	result = strings.ReplaceAll(result, "*", "[^/]*")
	result = strings.ReplaceAll(result, "\x00", ".*")
	result = strings.ReplaceAll(result, "?", ".")

	return "^" + result + "$"
}
