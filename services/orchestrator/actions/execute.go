// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"context"
	"time"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// Execute runs an APPROVED intervention through the action executor.
//
// # Description
//
// The APPROVED to EXECUTING transition is the exclusivity guard:
// exactly one caller wins it, so concurrent Execute calls for the same
// id invoke the executor at most once. The pre-intervention snapshot
// is captured and persisted before the executor is called, so an
// EXECUTED record always carries rollback data.
//
// On success the intervention becomes EXECUTED and an outcome check is
// scheduled. On any failure (snapshot capture, open breaker, retries
// exhausted) it becomes FAILED; no side effect occurred in the
// capture-failure and open-breaker cases, and the executor's own
// failure contract covers the rest, so no rollback is attempted.
//
// # Outputs
//
// Nil on success. InvalidStateTransitionError when the intervention is
// not APPROVED (including a lost race), ExecutionError for execution
// failures.
func (o *Orchestrator) Execute(ctx context.Context, id string) error {
	iv, err := o.store.UpdateIf(ctx, id, datatypes.StatusApproved, "execute",
		func(iv *datatypes.Intervention) {
			iv.Status = datatypes.StatusExecuting
		})
	if err != nil {
		return err
	}
	o.audit.Record(ctx, datatypes.AuditExecuting, id, nil)

	var snap *datatypes.Snapshot
	err = o.breakers.Call(ctx, depSnapshotProvider, func(ctx context.Context) error {
		var captureErr error
		snap, captureErr = o.snapshots.Capture(ctx, iv.TargetID)
		return captureErr
	})
	if err != nil {
		return o.failExecution(ctx, id, "snapshot capture failed", err)
	}

	// Persist the snapshot before the side effect is applied.
	if _, err := o.store.UpdateIf(ctx, id, datatypes.StatusExecuting, "record snapshot",
		func(iv *datatypes.Intervention) {
			iv.RollbackData = snap
		}); err != nil {
		return err
	}

	var result map[string]any
	err = o.breakers.Call(ctx, depActionExecutor, func(ctx context.Context) error {
		var execErr error
		result, execErr = o.executor.Execute(ctx, iv)
		return execErr
	})
	if err != nil {
		return o.failExecution(ctx, id, "action executor failed", err)
	}

	now := time.Now().UTC()
	if _, err := o.store.UpdateIf(ctx, id, datatypes.StatusExecuting, "complete execution",
		func(iv *datatypes.Intervention) {
			iv.Status = datatypes.StatusExecuted
			iv.Result = result
			iv.ExecutedAt = &now
		}); err != nil {
		return err
	}

	o.audit.Record(ctx, datatypes.AuditExecuted, id, map[string]any{
		"executed_at": now,
	})
	o.logger.Info("intervention executed", "intervention_id", id)

	o.scheduler.ScheduleOnce(o.config.OutcomeCheckDelay, func() {
		o.CheckOutcome(context.Background(), id)
	})
	return nil
}

// failExecution moves an EXECUTING intervention to FAILED and records
// the error. The store update cannot lose a race: only this goroutine
// holds the EXECUTING claim.
func (o *Orchestrator) failExecution(ctx context.Context, id, stage string, cause error) error {
	execErr := &datatypes.ExecutionError{InterventionID: id, Err: cause}

	if _, err := o.store.UpdateIf(ctx, id, datatypes.StatusExecuting, "fail execution",
		func(iv *datatypes.Intervention) {
			iv.Status = datatypes.StatusFailed
			iv.Error = cause.Error()
		}); err != nil {
		return err
	}

	o.audit.Record(ctx, datatypes.AuditFailed, id, map[string]any{
		"stage": stage,
		"error": cause.Error(),
	})
	o.logger.Error("intervention execution failed",
		"intervention_id", id, "stage", stage, "error", cause)
	return execErr
}
