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

// Rollback restores the target's pre-intervention state from the
// snapshot captured at execution time.
//
// # Description
//
// Only an EXECUTED intervention can be rolled back; the EXECUTED to
// ROLLING_BACK transition is the exclusivity guard, so a manual
// rollback racing the outcome monitor resolves to exactly one restore.
// Claiming the record also sets the outcome-check flag, cancelling a
// pending scheduled check.
//
// A restore failure leaves the intervention in ROLLBACK_FAILED, a
// terminal state requiring manual operator remediation. The
// orchestrator never retries a failed rollback on its own.
func (o *Orchestrator) Rollback(ctx context.Context, id string) (*datatypes.Intervention, error) {
	now := time.Now().UTC()
	iv, err := o.store.UpdateIf(ctx, id, datatypes.StatusExecuted, "rollback",
		func(iv *datatypes.Intervention) {
			iv.Status = datatypes.StatusRollingBack
			if iv.OutcomeCheckedAt == nil {
				iv.OutcomeCheckedAt = &now
			}
		})
	if err != nil {
		return nil, err
	}

	err = o.breakers.Call(ctx, depSnapshotProvider, func(ctx context.Context) error {
		return o.snapshots.Restore(ctx, iv.RollbackData)
	})
	if err != nil {
		failed, updateErr := o.store.UpdateIf(ctx, id, datatypes.StatusRollingBack, "fail rollback",
			func(iv *datatypes.Intervention) {
				iv.Status = datatypes.StatusRollbackFailed
				iv.Error = err.Error()
			})
		if updateErr != nil {
			return nil, updateErr
		}
		o.audit.Record(ctx, datatypes.AuditRollbackFailed, id, map[string]any{
			"error": err.Error(),
		})
		o.logger.Error("rollback failed, manual remediation required",
			"intervention_id", id, "target_id", iv.TargetID, "error", err)
		return failed, &datatypes.RollbackError{InterventionID: id, Err: err}
	}

	rolledBackAt := time.Now().UTC()
	updated, err := o.store.UpdateIf(ctx, id, datatypes.StatusRollingBack, "complete rollback",
		func(iv *datatypes.Intervention) {
			iv.Status = datatypes.StatusRolledBack
			iv.RolledBackAt = &rolledBackAt
		})
	if err != nil {
		return nil, err
	}
	o.audit.Record(ctx, datatypes.AuditRolledBack, id, nil)
	o.logger.Info("intervention rolled back", "intervention_id", id)
	return updated, nil
}
