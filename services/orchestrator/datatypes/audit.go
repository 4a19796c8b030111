// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// =============================================================================
// Audit Actions
// =============================================================================

// AuditAction identifies the decision or transition an audit entry
// records.
type AuditAction string

const (
	AuditProposed                AuditAction = "proposed"
	AuditApproved                AuditAction = "approved"
	AuditRejected                AuditAction = "rejected"
	AuditTimedOut                AuditAction = "timed_out"
	AuditExecuting               AuditAction = "executing"
	AuditExecuted                AuditAction = "executed"
	AuditFailed                  AuditAction = "failed"
	AuditNegativeOutcomeDetected AuditAction = "negative_outcome_detected"
	AuditRolledBack              AuditAction = "rolled_back"
	AuditRollbackFailed          AuditAction = "rollback_failed"
)

// =============================================================================
// Audit Entries
// =============================================================================

// AuditLogEntry is an immutable fact in the append-only audit trail.
//
// Entries are never updated or deleted; corrections are new entries.
// The trail is the system of record for reconstructing the history of
// any intervention.
type AuditLogEntry struct {
	// Sequence is assigned by the audit store on append and orders
	// entries with identical timestamps.
	Sequence uint64 `json:"sequence"`

	Timestamp      time.Time      `json:"timestamp"`
	Action         AuditAction    `json:"action"`
	InterventionID string         `json:"intervention_id"`
	Details        map[string]any `json:"details,omitempty"`
}

// AuditQuery selects a slice of the audit trail.
//
// Zero-valued fields are ignored: a zero Start means "from the
// beginning", a zero End means "until now", empty InterventionID and
// Action match everything, and Limit <= 0 means no cap.
type AuditQuery struct {
	Start          time.Time
	End            time.Time
	InterventionID string
	Action         AuditAction
	Limit          int
}

// Matches reports whether entry satisfies the query's filters.
// Range bounds are inclusive.
func (q AuditQuery) Matches(entry AuditLogEntry) bool {
	if !q.Start.IsZero() && entry.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && entry.Timestamp.After(q.End) {
		return false
	}
	if q.InterventionID != "" && entry.InterventionID != q.InterventionID {
		return false
	}
	if q.Action != "" && entry.Action != q.Action {
		return false
	}
	return true
}
