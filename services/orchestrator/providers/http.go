// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// maxErrorBodyBytes bounds how much of a downstream error response is
// echoed into error messages.
const maxErrorBodyBytes = 4 << 10

// HTTPActionExecutor applies interventions by calling the downstream
// action service (the component that talks to calendar and HR
// systems).
//
// Network failures and 5xx responses are transient; 4xx responses mean
// the action service rejected the intervention and retrying is
// pointless.
type HTTPActionExecutor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPActionExecutor targets the action service at baseURL.
func NewHTTPActionExecutor(baseURL string) *HTTPActionExecutor {
	return &HTTPActionExecutor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Execute posts the intervention to the action service and returns its
// result payload.
func (e *HTTPActionExecutor) Execute(ctx context.Context, iv *datatypes.Intervention) (map[string]any, error) {
	body := map[string]any{
		"intervention_id": iv.ID,
		"type":            iv.Type,
		"target_id":       iv.TargetID,
		"params":          iv.Params,
	}
	var result map[string]any
	if err := postJSON(ctx, e.client, e.baseURL+"/v1/actions/execute", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// HTTPSnapshotProvider captures and restores target state through the
// graph service that owns the organizational model.
type HTTPSnapshotProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSnapshotProvider targets the graph service at baseURL.
func NewHTTPSnapshotProvider(baseURL string) *HTTPSnapshotProvider {
	return &HTTPSnapshotProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Capture fetches the target's current state and baseline metrics.
func (p *HTTPSnapshotProvider) Capture(ctx context.Context, targetID string) (*datatypes.Snapshot, error) {
	var snap datatypes.Snapshot
	body := map[string]any{"target_id": targetID}
	if err := postJSON(ctx, p.client, p.baseURL+"/v1/snapshots/capture", body, &snap); err != nil {
		return nil, err
	}
	snap.TargetID = targetID
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	return &snap, nil
}

// Restore re-applies a previously captured snapshot.
func (p *HTTPSnapshotProvider) Restore(ctx context.Context, snap *datatypes.Snapshot) error {
	return postJSON(ctx, p.client, p.baseURL+"/v1/snapshots/restore", snap, nil)
}

// postJSON sends body as JSON and decodes the response into out when
// out is non-nil. Transport errors and 5xx responses come back wrapped
// with datatypes.Transient.
func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return datatypes.Transient(fmt.Errorf("call %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return datatypes.Transient(fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, detail))
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%s rejected request with %d: %s", url, resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
