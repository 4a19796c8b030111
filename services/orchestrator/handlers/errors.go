// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the orchestrator's
// intervention API. Handlers are thin adapters: they decode the
// request, delegate to the actions.Orchestrator, and translate its
// typed errors to HTTP status codes.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// writeError maps the orchestrator's typed errors onto HTTP responses.
//
// ValidationError -> 400, NotFoundError -> 404,
// InvalidStateTransitionError -> 409, CircuitBreakerOpenError -> 503.
// Anything else is a 500 with the detail kept out of the response.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, datatypes.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, datatypes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, datatypes.ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, datatypes.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
