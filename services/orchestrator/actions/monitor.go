// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"context"
	"errors"
	"time"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// CheckOutcome re-evaluates an executed intervention's effect on its
// target and triggers an automatic rollback when harm is detected.
//
// # Description
//
// The check fires at most once per intervention. Claiming the
// outcome-check flag through a conditional update is the idempotency
// guard: scheduler redelivery, a concurrent manual rollback, or any
// other transition away from EXECUTED makes the claim fail and the
// check no-op. Current metrics are compared against the baseline in
// the execution-time snapshot; a connectivity drop or wellbeing-risk
// rise beyond the configured thresholds counts as a negative outcome.
func (o *Orchestrator) CheckOutcome(ctx context.Context, id string) {
	now := time.Now().UTC()
	iv, err := o.store.UpdateIf(ctx, id, datatypes.StatusExecuted, "outcome check",
		func(iv *datatypes.Intervention) {
			if iv.OutcomeCheckedAt != nil {
				return
			}
			iv.OutcomeCheckedAt = &now
		})
	if errors.Is(err, datatypes.ErrInvalidStateTransition) || errors.Is(err, datatypes.ErrNotFound) {
		return
	}
	if err != nil {
		o.logger.Error("outcome check could not claim intervention",
			"intervention_id", id, "error", err)
		return
	}
	if iv.OutcomeCheckedAt != nil && !iv.OutcomeCheckedAt.Equal(now) {
		// Already checked (or cancelled by a manual rollback).
		return
	}
	if iv.RollbackData == nil {
		o.logger.Error("executed intervention has no baseline snapshot",
			"intervention_id", id)
		return
	}

	var current datatypes.Metrics
	err = o.breakers.Call(ctx, depMetricsProvider, func(ctx context.Context) error {
		var readErr error
		current, readErr = o.metrics.Current(ctx, iv.TargetID)
		return readErr
	})
	if err != nil {
		o.logger.Error("outcome check could not read metrics",
			"intervention_id", id, "target_id", iv.TargetID, "error", err)
		return
	}

	baseline := iv.RollbackData.Baseline
	negative, detail := o.compareOutcome(baseline, current)
	if !negative {
		o.logger.Info("outcome check passed", "intervention_id", id)
		return
	}

	o.audit.Record(ctx, datatypes.AuditNegativeOutcomeDetected, id, detail)
	o.logger.Warn("negative outcome detected, rolling back",
		"intervention_id", id,
		"target_id", iv.TargetID,
		"baseline_connectivity", baseline.Connectivity,
		"current_connectivity", current.Connectivity,
		"baseline_wellbeing_risk", baseline.WellbeingRisk,
		"current_wellbeing_risk", current.WellbeingRisk)

	if _, err := o.Rollback(ctx, id); err != nil {
		o.logger.Error("automatic rollback failed", "intervention_id", id, "error", err)
	}
}

// compareOutcome applies the regression thresholds. Fractions are
// relative to the baseline; a zero baseline falls back to the absolute
// change so a signal appearing from nothing still registers.
func (o *Orchestrator) compareOutcome(baseline, current datatypes.Metrics) (bool, map[string]any) {
	connectivityDrop := baseline.Connectivity - current.Connectivity
	if baseline.Connectivity > 0 {
		connectivityDrop /= baseline.Connectivity
	}

	wellbeingRise := current.WellbeingRisk - baseline.WellbeingRisk
	if baseline.WellbeingRisk > 0 {
		wellbeingRise /= baseline.WellbeingRisk
	}

	negative := connectivityDrop >= o.config.ConnectivityDropThreshold ||
		wellbeingRise >= o.config.WellbeingRiseThreshold

	detail := map[string]any{
		"baseline_connectivity":       baseline.Connectivity,
		"current_connectivity":        current.Connectivity,
		"connectivity_drop":           connectivityDrop,
		"connectivity_drop_threshold": o.config.ConnectivityDropThreshold,
		"baseline_wellbeing_risk":     baseline.WellbeingRisk,
		"current_wellbeing_risk":      current.WellbeingRisk,
		"wellbeing_rise":              wellbeingRise,
		"wellbeing_rise_threshold":    o.config.WellbeingRiseThreshold,
	}
	return negative, detail
}

// RearmOutcomeChecks re-schedules pending outcome checks after a
// restart. Timers are process-local, so every EXECUTED intervention
// whose check has not fired yet gets a fresh timer for the remainder
// of its delay; overdue checks fire immediately.
func (o *Orchestrator) RearmOutcomeChecks(ctx context.Context) (int, error) {
	executed, err := o.store.ListByStatus(ctx, datatypes.StatusExecuted)
	if err != nil {
		return 0, err
	}

	rearmed := 0
	now := time.Now().UTC()
	for _, iv := range executed {
		if iv.OutcomeCheckedAt != nil || iv.ExecutedAt == nil {
			continue
		}
		id := iv.ID
		delay := iv.ExecutedAt.Add(o.config.OutcomeCheckDelay).Sub(now)
		o.scheduler.ScheduleOnce(delay, func() {
			o.CheckOutcome(context.Background(), id)
		})
		rearmed++
	}
	if rearmed > 0 {
		o.logger.Info("re-armed pending outcome checks", "count", rearmed)
	}
	return rearmed, nil
}
