// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orgflow-ai/orgflow/services/orchestrator/actions"
	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// QueryAuditTrail handles GET /v1/audit.
//
// Query parameters: start and end (RFC 3339), intervention_id, action,
// limit. All optional; entries come back ordered by timestamp.
func QueryAuditTrail(orch *actions.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := datatypes.AuditQuery{
			InterventionID: c.Query("intervention_id"),
			Action:         datatypes.AuditAction(c.Query("action")),
		}

		if raw := c.Query("start"); raw != "" {
			start, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC 3339"})
				return
			}
			q.Start = start
		}
		if raw := c.Query("end"); raw != "" {
			end, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC 3339"})
				return
			}
			q.End = end
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			q.Limit = limit
		}

		entries, err := orch.QueryAudit(c.Request.Context(), q)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
	}
}
