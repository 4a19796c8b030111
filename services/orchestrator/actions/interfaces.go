// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package actions drives the safe action orchestration state machine:
// proposal, approval, execution, rollback, and post-execution outcome
// monitoring for organizational interventions.
//
// # Description
//
// The Orchestrator is the single writer of intervention state. Every
// transition goes through the store's conditional-update primitive, so
// concurrent callers race safely: exactly one wins, the rest receive
// InvalidStateTransitionError. External side effects (the action
// executor, snapshot capture and restore, metrics reads) are invoked
// only through the circuit breaker registry, and every decision is
// recorded in the audit trail.
package actions

import (
	"context"
	"time"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// =============================================================================
// External Collaborators
// =============================================================================

// ActionExecutor performs the real-world side effect of an
// intervention (calendar changes, HR system updates).
//
// Implementations wrap recoverable failures with datatypes.Transient
// so the circuit breaker retries them; permanent failures are returned
// unwrapped and fail the intervention immediately.
type ActionExecutor interface {
	Execute(ctx context.Context, iv *datatypes.Intervention) (map[string]any, error)
}

// SnapshotProvider captures the target's pre-intervention state and
// restores it on rollback. Capture runs before any side effect is
// applied; the returned snapshot carries the baseline metrics the
// outcome monitor compares against.
type SnapshotProvider interface {
	Capture(ctx context.Context, targetID string) (*datatypes.Snapshot, error)
	Restore(ctx context.Context, snap *datatypes.Snapshot) error
}

// MetricsProvider reads the target's current organizational health
// signals. Used only by the outcome monitor.
type MetricsProvider interface {
	Current(ctx context.Context, targetID string) (datatypes.Metrics, error)
}

// Scheduler runs a callback once, no earlier than delay from now.
// Delivery is at-least-once; callbacks must be idempotent.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func())
	Stop()
}
