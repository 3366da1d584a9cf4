// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed static/index.html
var indexHTML []byte

// HandleIndex serves the landing page.
func HandleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// HandleHealth reports liveness and the active run, if any.
func HandleHealth(lookup RunLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		var active any
		if run, ok := lookup.Active(); ok {
			active = run.ID
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "active_run": active})
	}
}
