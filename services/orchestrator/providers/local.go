// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// Local providers back the lightweight deployment mode: no downstream
// action service, no graph service, no InfluxDB. Interventions are
// applied to an in-memory model only. Useful for development and for
// exercising the full orchestration path end to end.

// LocalActionExecutor records applied interventions in memory.
type LocalActionExecutor struct {
	mu      sync.Mutex
	applied map[string]map[string]any
	logger  *slog.Logger
}

// NewLocalActionExecutor returns an executor applying interventions to
// an in-memory model.
func NewLocalActionExecutor(logger *slog.Logger) *LocalActionExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalActionExecutor{
		applied: make(map[string]map[string]any),
		logger:  logger,
	}
}

// Execute records the intervention's params as the target's state.
func (e *LocalActionExecutor) Execute(ctx context.Context, iv *datatypes.Intervention) (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applied[iv.TargetID] = iv.Params
	e.logger.Info("applied intervention locally",
		"intervention_id", iv.ID, "type", iv.Type, "target_id", iv.TargetID)
	return map[string]any{
		"applied_at": time.Now().UTC().Format(time.RFC3339),
		"mode":       "local",
	}, nil
}

// LocalSnapshotProvider keeps target state in memory.
type LocalSnapshotProvider struct {
	mu       sync.Mutex
	states   map[string]map[string]any
	baseline datatypes.Metrics
}

// NewLocalSnapshotProvider returns a provider with the given baseline
// metrics for every target.
func NewLocalSnapshotProvider(baseline datatypes.Metrics) *LocalSnapshotProvider {
	return &LocalSnapshotProvider{
		states:   make(map[string]map[string]any),
		baseline: baseline,
	}
}

// Capture snapshots the target's current in-memory state.
func (p *LocalSnapshotProvider) Capture(ctx context.Context, targetID string) (*datatypes.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := make(map[string]any, len(p.states[targetID]))
	for k, v := range p.states[targetID] {
		state[k] = v
	}
	return &datatypes.Snapshot{
		TargetID:   targetID,
		CapturedAt: time.Now().UTC(),
		State:      state,
		Baseline:   p.baseline,
	}, nil
}

// Restore puts the captured state back.
func (p *LocalSnapshotProvider) Restore(ctx context.Context, snap *datatypes.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[snap.TargetID] = snap.State
	return nil
}

// StaticMetricsProvider returns the same reading for every target.
// Outcome checks against it always pass when the reading matches the
// snapshot baseline.
type StaticMetricsProvider struct {
	Reading datatypes.Metrics
}

// Current returns the configured reading.
func (p *StaticMetricsProvider) Current(ctx context.Context, targetID string) (datatypes.Metrics, error) {
	return p.Reading, nil
}
