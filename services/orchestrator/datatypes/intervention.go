// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the shared data model for the safe action
// orchestration service: interventions, audit entries, organizational
// metrics snapshots, and the typed errors exchanged between components.
package datatypes

import (
	"time"
)

// =============================================================================
// Impact Levels
// =============================================================================

// ImpactLevel is the risk tier assigned to an intervention type.
//
// The level is assigned exactly once at proposal time and is immutable
// afterwards. HIGH-impact interventions require human approval before
// execution; LOW and MEDIUM are auto-approved.
type ImpactLevel string

const (
	// ImpactLow is the default tier. Unknown intervention types classify
	// as LOW.
	ImpactLow ImpactLevel = "LOW"

	// ImpactMedium covers interventions with noticeable but reversible
	// effects (e.g. calendar restructuring).
	ImpactMedium ImpactLevel = "MEDIUM"

	// ImpactHigh covers interventions with significant people impact
	// (e.g. reassigning a manager). Always gated behind human approval.
	ImpactHigh ImpactLevel = "HIGH"
)

// Valid reports whether l is one of the defined tiers.
func (l ImpactLevel) Valid() bool {
	switch l {
	case ImpactLow, ImpactMedium, ImpactHigh:
		return true
	}
	return false
}

// =============================================================================
// Intervention Status
// =============================================================================

// Status is the lifecycle state of an intervention.
//
// Transitions are driven exclusively by the orchestrator through
// compare-and-swap updates on the backing store; no component mutates
// status directly.
type Status string

const (
	StatusProposed        Status = "PROPOSED"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusTimedOut        Status = "TIMED_OUT"
	StatusExecuting       Status = "EXECUTING"
	StatusExecuted        Status = "EXECUTED"
	StatusFailed          Status = "FAILED"
	StatusRollingBack     Status = "ROLLING_BACK"
	StatusRolledBack      Status = "ROLLED_BACK"
	StatusRollbackFailed  Status = "ROLLBACK_FAILED"
)

// Terminal reports whether no further transition is possible from s.
//
// EXECUTED is not terminal: an explicit rollback may still move it to
// ROLLED_BACK or ROLLBACK_FAILED. FAILED is terminal because no side
// effect was applied and the caller may simply re-propose.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusTimedOut, StatusFailed, StatusRolledBack, StatusRollbackFailed:
		return true
	}
	return false
}

// =============================================================================
// Intervention
// =============================================================================

// Intervention is the unit of work flowing through the orchestrator.
//
// # Invariants
//
//   - ImpactLevel is set once at proposal time and never changes.
//   - A HIGH-impact intervention passes through PENDING_APPROVAL before
//     it can ever reach APPROVED.
//   - RollbackData is captured and persisted before any execution side
//     effect is applied, so status EXECUTED implies RollbackData != nil.
//   - Each timestamp field is set exactly once.
type Intervention struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	TargetID string         `json:"target_id"`
	Params   map[string]any `json:"params,omitempty"`
	Reason   string         `json:"reason"`

	ImpactLevel ImpactLevel `json:"impact_level"`
	Status      Status      `json:"status"`

	ProposedAt   time.Time  `json:"proposed_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
	RolledBackAt *time.Time `json:"rolled_back_at,omitempty"`

	// Result is the opaque payload returned by the action executor on
	// success. Nil until status reaches EXECUTED.
	Result map[string]any `json:"result,omitempty"`

	// RollbackData is the pre-intervention snapshot sufficient to
	// restore the target's prior state.
	RollbackData *Snapshot `json:"rollback_data,omitempty"`

	// Error holds the failure description for FAILED and
	// ROLLBACK_FAILED records.
	Error string `json:"error,omitempty"`

	// OutcomeCheckedAt is the idempotency flag for the outcome monitor:
	// non-nil means the scheduled post-execution check already fired
	// (or was cancelled by a manual rollback).
	OutcomeCheckedAt *time.Time `json:"outcome_checked_at,omitempty"`
}

// Clone returns a deep-enough copy for safe hand-off across goroutines.
// Maps are copied one level deep; nested values are treated as
// immutable payloads.
func (iv *Intervention) Clone() *Intervention {
	cp := *iv
	if iv.Params != nil {
		cp.Params = make(map[string]any, len(iv.Params))
		for k, v := range iv.Params {
			cp.Params[k] = v
		}
	}
	if iv.Result != nil {
		cp.Result = make(map[string]any, len(iv.Result))
		for k, v := range iv.Result {
			cp.Result[k] = v
		}
	}
	if iv.RollbackData != nil {
		snap := *iv.RollbackData
		cp.RollbackData = &snap
	}
	if iv.ApprovedAt != nil {
		t := *iv.ApprovedAt
		cp.ApprovedAt = &t
	}
	if iv.ExecutedAt != nil {
		t := *iv.ExecutedAt
		cp.ExecutedAt = &t
	}
	if iv.RolledBackAt != nil {
		t := *iv.RolledBackAt
		cp.RolledBackAt = &t
	}
	if iv.OutcomeCheckedAt != nil {
		t := *iv.OutcomeCheckedAt
		cp.OutcomeCheckedAt = &t
	}
	return &cp
}

// =============================================================================
// Snapshots and Metrics
// =============================================================================

// Metrics is the pair of organizational health signals the outcome
// monitor compares before and after an intervention.
//
// Connectivity is a 0..1 score of how well the target is connected in
// the collaboration graph (drops indicate isolation). WellbeingRisk is
// a 0..1 burnout-risk score (increases indicate harm).
type Metrics struct {
	Connectivity  float64 `json:"connectivity"`
	WellbeingRisk float64 `json:"wellbeing_risk"`
}

// Snapshot is the pre-intervention state captured by the snapshot
// provider. State is the opaque payload the provider needs to restore
// the target; Baseline is the metric reading at capture time, used by
// the outcome monitor as the comparison baseline.
type Snapshot struct {
	TargetID   string         `json:"target_id"`
	CapturedAt time.Time      `json:"captured_at"`
	State      map[string]any `json:"state,omitempty"`
	Baseline   Metrics        `json:"baseline"`
}
