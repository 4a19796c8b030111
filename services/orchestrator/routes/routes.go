// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/orgflow-ai/orgflow/services/orchestrator/actions"
	"github.com/orgflow-ai/orgflow/services/orchestrator/audit"
	"github.com/orgflow-ai/orgflow/services/orchestrator/handlers"
	"github.com/orgflow-ai/orgflow/services/orchestrator/middleware"
	"github.com/orgflow-ai/orgflow/services/orchestrator/observability"
)

// SetupRoutes registers the orchestrator's HTTP surface.
//
// /health and /metrics are unauthenticated; everything under /v1
// passes through the API-key middleware (a no-op when no key is
// configured).
func SetupRoutes(router *gin.Engine, orch *actions.Orchestrator, auditLog *audit.Log,
	metrics *observability.Metrics, apiKey string) {

	router.GET("/health", handlers.HealthCheck(auditLog))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyAuth(apiKey))
	{
		interventions := v1.Group("/interventions")
		{
			interventions.POST("", handlers.ProposeIntervention(orch, metrics))
			// GET on the collection lists pending approvals; a static
			// "/pending" segment would conflict with ":id" in gin's tree.
			interventions.GET("", handlers.ListPendingInterventions(orch))
			interventions.GET("/:id", handlers.GetIntervention(orch))
			interventions.POST("/:id/approve", handlers.ApproveIntervention(orch, metrics))
			interventions.POST("/:id/reject", handlers.RejectIntervention(orch, metrics))
			interventions.POST("/:id/rollback", handlers.RollbackIntervention(orch, metrics))
		}
		v1.POST("/approvals/expire", handlers.ExpireApprovals(orch))
		v1.GET("/audit", handlers.QueryAuditTrail(orch))
	}
}
