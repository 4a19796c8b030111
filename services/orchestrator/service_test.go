// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	cfg.GinMode = "test"
	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.closeDB() })
	return svc
}

func doJSON(t *testing.T, svc *Service, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestService_AutoApprovedProposalExecutes(t *testing.T) {
	svc := newTestService(t, Config{})

	rec, body := doJSON(t, svc, http.MethodPost, "/v1/interventions", map[string]any{
		"type":      "reduce_meetings",
		"target_id": "emp_42",
		"params":    map[string]any{"max_per_day": 3},
		"reason":    "reduce load",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, string(datatypes.StatusExecuted), body["status"])
	assert.Equal(t, string(datatypes.ImpactMedium), body["impact_level"])
	assert.NotNil(t, body["rollback_data"])
}

func TestService_ApprovalFlowOverHTTP(t *testing.T) {
	svc := newTestService(t, Config{})

	rec, body := doJSON(t, svc, http.MethodPost, "/v1/interventions", map[string]any{
		"type":      "reassign_manager",
		"target_id": "emp_7",
		"reason":    "org change",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, string(datatypes.StatusPendingApproval), body["status"])
	id := body["id"].(string)

	rec, body = doJSON(t, svc, http.MethodGet, "/v1/interventions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, body = doJSON(t, svc, http.MethodPost, "/v1/interventions/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(datatypes.StatusExecuted), body["status"])

	// Approving again conflicts.
	rec, _ = doJSON(t, svc, http.MethodPost, "/v1/interventions/"+id+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The audit trail shows the full history.
	rec, body = doJSON(t, svc, http.MethodGet, "/v1/audit?intervention_id="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), body["count"], "proposed, approved, executing, executed")
}

func TestService_RejectAndErrorMapping(t *testing.T) {
	svc := newTestService(t, Config{})

	rec, _ := doJSON(t, svc, http.MethodPost, "/v1/interventions", map[string]any{
		"type": "reassign_manager",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "validation error maps to 400")

	rec, _ = doJSON(t, svc, http.MethodGet, "/v1/interventions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := doJSON(t, svc, http.MethodPost, "/v1/interventions", map[string]any{
		"type":      "reassign_manager",
		"target_id": "emp_7",
		"reason":    "org change",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["id"].(string)

	rec, body = doJSON(t, svc, http.MethodPost, "/v1/interventions/"+id+"/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(datatypes.StatusRejected), body["status"])

	rec, _ = doJSON(t, svc, http.MethodPost, "/v1/interventions/"+id+"/rollback", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "rollback of a rejected intervention conflicts")
}

func TestService_ManualRollbackOverHTTP(t *testing.T) {
	svc := newTestService(t, Config{})

	rec, body := doJSON(t, svc, http.MethodPost, "/v1/interventions", map[string]any{
		"type":      "reduce_meetings",
		"target_id": "emp_42",
		"reason":    "reduce load",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["id"].(string)

	rec, body = doJSON(t, svc, http.MethodPost, "/v1/interventions/"+id+"/rollback", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(datatypes.StatusRolledBack), body["status"])
}

func TestService_HealthAndMetricsEndpoints(t *testing.T) {
	svc := newTestService(t, Config{})

	rec, body := doJSON(t, svc, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	svc.Router().ServeHTTP(metricsRec, req)
	assert.Equal(t, http.StatusOK, metricsRec.Code)
}

func TestService_APIKeyProtectsV1Only(t *testing.T) {
	svc := newTestService(t, Config{APIKey: "secret"})

	rec, _ := doJSON(t, svc, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")

	rec, _ = doJSON(t, svc, http.MethodGet, "/v1/interventions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/interventions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	authed := httptest.NewRecorder()
	svc.Router().ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)
}
