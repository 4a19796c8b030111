// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit maintains the append-only audit trail: the system of
// record for every decision and state transition the orchestrator
// makes.
//
// # Description
//
// Two layers: AuditStore is the raw append/query backend (in-memory or
// BadgerDB); Log wraps a store and guarantees that entries are never
// silently dropped — when the backend is unavailable, entries queue in
// a local buffer and a background loop retries until they are durable.
// The buffered state is surfaced through Healthy() so operators see
// the discrepancy instead of losing history.
//
// Entries are immutable. There is no update or delete path anywhere in
// this package; corrections are new entries.
package audit

import (
	"context"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// AuditStore is the append-only persistence contract for audit
// entries.
//
// Implementations assign Sequence on append and must return entries
// from Query ordered by timestamp, then sequence.
type AuditStore interface {
	Append(ctx context.Context, entry *datatypes.AuditLogEntry) error
	Query(ctx context.Context, q datatypes.AuditQuery) ([]datatypes.AuditLogEntry, error)
	Close() error
}
