// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orgflow-ai/orgflow/services/orchestrator/actions"
	"github.com/orgflow-ai/orgflow/services/orchestrator/observability"
)

// ProposeIntervention handles POST /v1/interventions.
//
// Auto-approved interventions execute synchronously, so the response
// already reflects the execution outcome; callers inspect the returned
// status instead of polling.
func ProposeIntervention(orch *actions.Orchestrator, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actions.ProposalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}

		iv, err := orch.Propose(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		metrics.RecordProposal(iv.Type, string(iv.ImpactLevel))
		metrics.RecordTransition(string(iv.Status))
		c.JSON(http.StatusCreated, iv)
	}
}

// GetIntervention handles GET /v1/interventions/:id.
func GetIntervention(orch *actions.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		iv, err := orch.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, iv)
	}
}

// ListPendingInterventions handles GET /v1/interventions, which lists
// the records awaiting approval.
func ListPendingInterventions(orch *actions.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending, err := orch.ListPending(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"interventions": pending, "count": len(pending)})
	}
}

// ApproveIntervention handles POST /v1/interventions/:id/approve.
func ApproveIntervention(orch *actions.Orchestrator, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("approval requested", "intervention_id", id)

		iv, err := orch.Approve(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		metrics.RecordTransition(string(iv.Status))
		c.JSON(http.StatusOK, iv)
	}
}

// RejectIntervention handles POST /v1/interventions/:id/reject.
func RejectIntervention(orch *actions.Orchestrator, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("rejection requested", "intervention_id", id)

		iv, err := orch.Reject(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		metrics.RecordTransition(string(iv.Status))
		c.JSON(http.StatusOK, iv)
	}
}

// RollbackIntervention handles POST /v1/interventions/:id/rollback.
func RollbackIntervention(orch *actions.Orchestrator, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("manual rollback requested", "intervention_id", id)

		iv, err := orch.Rollback(c.Request.Context(), id)
		if err != nil {
			// A failed restore still transitioned the record; report
			// the terminal state alongside the error.
			if iv != nil {
				metrics.RecordTransition(string(iv.Status))
			}
			writeError(c, err)
			return
		}
		metrics.RecordTransition(string(iv.Status))
		c.JSON(http.StatusOK, iv)
	}
}

// ExpireApprovals handles POST /v1/approvals/expire. Normally driven
// by the service's background ticker; exposed for operators to force a
// sweep.
func ExpireApprovals(orch *actions.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		expired, err := orch.ExpireStaleApprovals(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"expired": expired})
	}
}
