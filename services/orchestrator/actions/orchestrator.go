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
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/orgflow-ai/orgflow/services/orchestrator/audit"
	"github.com/orgflow-ai/orgflow/services/orchestrator/breaker"
	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
	"github.com/orgflow-ai/orgflow/services/orchestrator/impact"
	"github.com/orgflow-ai/orgflow/services/orchestrator/store"
)

// =============================================================================
// Breaker Dependency Names
// =============================================================================

// Each external collaborator gets its own breaker so a failing action
// executor does not block snapshot restores during rollback.
const (
	depActionExecutor   = "action-executor"
	depSnapshotProvider = "snapshot-provider"
	depMetricsProvider  = "metrics-provider"
)

// =============================================================================
// Configuration
// =============================================================================

// Config carries the orchestrator's tunable parameters.
type Config struct {
	// ApprovalTimeout is how long a PENDING_APPROVAL intervention may
	// wait before ExpireStaleApprovals transitions it to TIMED_OUT.
	ApprovalTimeout time.Duration

	// OutcomeCheckDelay is how long after execution the outcome
	// monitor re-evaluates the target's metrics.
	OutcomeCheckDelay time.Duration

	// ConnectivityDropThreshold is the fractional drop in the target's
	// connectivity score (relative to the execution-time baseline)
	// that signals harm. 0.30 means a 30% drop triggers rollback.
	ConnectivityDropThreshold float64

	// WellbeingRiseThreshold is the fractional increase in the
	// target's wellbeing-risk score that signals harm.
	WellbeingRiseThreshold float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ApprovalTimeout:           24 * time.Hour,
		OutcomeCheckDelay:         7 * 24 * time.Hour,
		ConnectivityDropThreshold: 0.30,
		WellbeingRiseThreshold:    0.20,
	}
}

// =============================================================================
// Orchestrator
// =============================================================================

// Deps bundles the orchestrator's injected collaborators. Nothing here
// is a package-level singleton; independent orchestrator instances
// carry fully isolated state.
type Deps struct {
	Store      store.InterventionStore
	Audit      *audit.Log
	Breakers   *breaker.Registry
	Classifier *impact.Classifier
	Executor   ActionExecutor
	Snapshots  SnapshotProvider
	Metrics    MetricsProvider
	Scheduler  Scheduler
	Logger     *slog.Logger
}

// Orchestrator owns every intervention state transition.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Conflicting transitions on
// the same intervention are serialized by the store's conditional
// update; losers receive InvalidStateTransitionError.
type Orchestrator struct {
	config   Config
	store    store.InterventionStore
	audit    *audit.Log
	breakers *breaker.Registry

	classifier *impact.Classifier
	executor   ActionExecutor
	snapshots  SnapshotProvider
	metrics    MetricsProvider
	scheduler  Scheduler

	logger   *slog.Logger
	validate *validator.Validate
}

// New wires an orchestrator from its collaborators.
func New(config Config, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		config:     config,
		store:      deps.Store,
		audit:      deps.Audit,
		breakers:   deps.Breakers,
		classifier: deps.Classifier,
		executor:   deps.Executor,
		snapshots:  deps.Snapshots,
		metrics:    deps.Metrics,
		scheduler:  deps.Scheduler,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// Proposal
// =============================================================================

// ProposalRequest is the validated input to Propose.
type ProposalRequest struct {
	Type     string         `json:"type" validate:"required"`
	TargetID string         `json:"target_id" validate:"required"`
	Params   map[string]any `json:"params"`
	Reason   string         `json:"reason" validate:"required"`
}

// Propose validates the request, classifies its impact, persists the
// new intervention, and records the proposal in the audit trail.
//
// # Description
//
// HIGH-impact interventions land in PENDING_APPROVAL and wait for a
// human decision. LOW and MEDIUM are auto-approved and executed
// synchronously before Propose returns; an execution failure is
// recorded on the intervention (status FAILED) but does not fail the
// proposal itself, so the returned record must be inspected for the
// outcome.
//
// # Outputs
//
// The intervention in its post-proposal state, or ValidationError when
// the input is malformed (no record created, no audit entry).
func (o *Orchestrator) Propose(ctx context.Context, req ProposalRequest) (*datatypes.Intervention, error) {
	if err := o.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &datatypes.ValidationError{
				Field:  verrs[0].Field(),
				Reason: "failed on the '" + verrs[0].Tag() + "' rule",
			}
		}
		return nil, &datatypes.ValidationError{Reason: err.Error()}
	}

	level := o.classifier.Classify(req.Type)
	status := datatypes.StatusApproved
	if level == datatypes.ImpactHigh {
		status = datatypes.StatusPendingApproval
	}

	iv := &datatypes.Intervention{
		ID:          uuid.NewString(),
		Type:        req.Type,
		TargetID:    req.TargetID,
		Params:      req.Params,
		Reason:      req.Reason,
		ImpactLevel: level,
		Status:      status,
		ProposedAt:  time.Now().UTC(),
	}
	if err := o.store.Create(ctx, iv); err != nil {
		return nil, err
	}

	o.audit.Record(ctx, datatypes.AuditProposed, iv.ID, map[string]any{
		"type":         iv.Type,
		"target_id":    iv.TargetID,
		"impact_level": string(level),
		"status":       string(status),
	})
	o.logger.Info("intervention proposed",
		"intervention_id", iv.ID,
		"type", iv.Type,
		"impact_level", string(level),
		"status", string(status))

	if status == datatypes.StatusApproved {
		if err := o.Execute(ctx, iv.ID); err != nil {
			o.logger.Warn("auto-approved execution failed",
				"intervention_id", iv.ID, "error", err)
		}
		return o.store.Get(ctx, iv.ID)
	}
	return iv, nil
}

// =============================================================================
// Approval Decisions
// =============================================================================

// Approve moves a PENDING_APPROVAL intervention to APPROVED and
// executes it synchronously. The returned record reflects the
// execution outcome (EXECUTED or FAILED); the error reports only
// approval-phase failures (unknown id, wrong status, lost race).
func (o *Orchestrator) Approve(ctx context.Context, id string) (*datatypes.Intervention, error) {
	now := time.Now().UTC()
	_, err := o.store.UpdateIf(ctx, id, datatypes.StatusPendingApproval, "approve",
		func(iv *datatypes.Intervention) {
			iv.Status = datatypes.StatusApproved
			iv.ApprovedAt = &now
		})
	if err != nil {
		return nil, err
	}
	o.audit.Record(ctx, datatypes.AuditApproved, id, nil)
	o.logger.Info("intervention approved", "intervention_id", id)

	if err := o.Execute(ctx, id); err != nil {
		o.logger.Warn("execution after approval failed", "intervention_id", id, "error", err)
	}
	return o.store.Get(ctx, id)
}

// Reject moves a PENDING_APPROVAL intervention to REJECTED. The action
// executor is never invoked for a rejected intervention.
func (o *Orchestrator) Reject(ctx context.Context, id string) (*datatypes.Intervention, error) {
	updated, err := o.store.UpdateIf(ctx, id, datatypes.StatusPendingApproval, "reject",
		func(iv *datatypes.Intervention) {
			iv.Status = datatypes.StatusRejected
		})
	if err != nil {
		return nil, err
	}
	o.audit.Record(ctx, datatypes.AuditRejected, id, nil)
	o.logger.Info("intervention rejected", "intervention_id", id)
	return updated, nil
}

// ExpireStaleApprovals transitions every PENDING_APPROVAL intervention
// older than the approval timeout to TIMED_OUT and returns how many it
// expired. This is the only path out of PENDING_APPROVAL without a
// human decision; it is invoked periodically by the service loop.
func (o *Orchestrator) ExpireStaleApprovals(ctx context.Context) (int, error) {
	pending, err := o.store.ListByStatus(ctx, datatypes.StatusPendingApproval)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-o.config.ApprovalTimeout)
	expired := 0
	for _, iv := range pending {
		if !iv.ProposedAt.Before(cutoff) {
			continue
		}
		_, err := o.store.UpdateIf(ctx, iv.ID, datatypes.StatusPendingApproval, "timeout",
			func(iv *datatypes.Intervention) {
				iv.Status = datatypes.StatusTimedOut
			})
		if errors.Is(err, datatypes.ErrInvalidStateTransition) {
			// A human decision won the race; nothing to expire.
			continue
		}
		if err != nil {
			return expired, err
		}
		o.audit.Record(ctx, datatypes.AuditTimedOut, iv.ID, map[string]any{
			"proposed_at": iv.ProposedAt,
			"age":         time.Since(iv.ProposedAt).String(),
		})
		o.logger.Info("approval timed out", "intervention_id", iv.ID)
		expired++
	}
	return expired, nil
}

// =============================================================================
// Reads
// =============================================================================

// Get returns the intervention with the given id.
func (o *Orchestrator) Get(ctx context.Context, id string) (*datatypes.Intervention, error) {
	return o.store.Get(ctx, id)
}

// ListPending returns interventions awaiting approval, oldest first.
func (o *Orchestrator) ListPending(ctx context.Context) ([]*datatypes.Intervention, error) {
	return o.store.ListByStatus(ctx, datatypes.StatusPendingApproval)
}

// QueryAudit returns audit entries matching the filter, ordered by
// timestamp.
func (o *Orchestrator) QueryAudit(ctx context.Context, q datatypes.AuditQuery) ([]datatypes.AuditLogEntry, error) {
	return o.audit.Query(ctx, q)
}
