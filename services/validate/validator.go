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
	"context"
	"log/slog"
)

// Validator runs the syntax and secret checks on rewritten content.
//
// Validator maintains no state between calls and is safe for concurrent use.
type Validator struct {
	secrets *SecretScanner
}

func NewValidator(config Config) (*Validator, error) {
	v := &Validator{}
	if !config.SkipSecrets {
		scanner, err := NewSecretScanner(config)
		if err != nil {
			return nil, err
		}
		v.secrets = scanner
	}
	return v, nil
}

// Check returns all findings for content at path. Parser failures are
// logged and skipped.
func (v *Validator) Check(ctx context.Context, path, content string) []Warning {
	var warnings []Warning

	syntax, err := CheckSyntax(ctx, path, content)
	if err != nil {
		slog.Warn("Syntax check skipped", "path", path, "error", err)
	} else if syntax != nil {
		warnings = append(warnings, *syntax)
	}

	if v.secrets != nil {
		warnings = append(warnings, v.secrets.Scan(content, path)...)
	}
	return warnings
}
