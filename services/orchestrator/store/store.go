// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists intervention records and provides the atomic
// conditional-update primitive the orchestrator's state machine is
// built on.
//
// # Concurrency Model
//
// Every mutating transition goes through UpdateIf, which re-reads the
// record and applies the update only if the current status matches the
// expected prior status. When two callers race (e.g. Execute invoked
// twice for the same id), exactly one wins; the loser receives
// *datatypes.InvalidStateTransitionError and the record is untouched.
//
// Two implementations exist: an in-memory store (tests, lightweight
// mode) and a BadgerDB-backed store (production). Both are safe for
// concurrent use.
package store

import (
	"context"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// InterventionStore is the persistence contract for intervention
// records.
type InterventionStore interface {
	// Create persists a new record. The id must be unique.
	Create(ctx context.Context, iv *datatypes.Intervention) error

	// Get returns the record with the given id, or
	// *datatypes.NotFoundError.
	Get(ctx context.Context, id string) (*datatypes.Intervention, error)

	// ListByStatus returns all records currently in the given status,
	// ordered by ProposedAt ascending.
	ListByStatus(ctx context.Context, status datatypes.Status) ([]*datatypes.Intervention, error)

	// UpdateIf atomically applies the mutation to the record iff its
	// current status equals expect.
	//
	// Outputs:
	//   - *datatypes.Intervention: the updated record on success.
	//   - error: *datatypes.NotFoundError for unknown ids;
	//     *datatypes.InvalidStateTransitionError (with Op = op) when
	//     the status check fails, including lost races.
	UpdateIf(ctx context.Context, id string, expect datatypes.Status, op string,
		apply func(*datatypes.Intervention)) (*datatypes.Intervention, error)

	// Close releases the store's resources.
	Close() error
}
