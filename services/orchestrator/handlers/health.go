// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orgflow-ai/orgflow/services/orchestrator/audit"
)

// HealthCheck handles GET /health.
//
// The service degrades rather than fails when the audit backend is
// unavailable: entries buffer locally and retry. That discrepancy is
// surfaced here so operators see it before the buffer grows unbounded.
func HealthCheck(auditLog *audit.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auditLog.Healthy() {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":          "degraded",
			"audit_buffered":  auditLog.Buffered(),
			"degraded_reason": "audit entries buffered awaiting durable write",
		})
	}
}
