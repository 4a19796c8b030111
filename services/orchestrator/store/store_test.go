// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
	"github.com/orgflow-ai/orgflow/services/orchestrator/storage/badgerdb"
)

// stores returns both implementations so every behavior is verified
// against the in-memory store and the BadgerDB store.
func stores(t *testing.T) map[string]InterventionStore {
	t.Helper()

	db, err := badgerdb.Open(badgerdb.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]InterventionStore{
		"memory": NewMemoryStore(),
		"badger": NewBadgerStore(db),
	}
}

func sampleIntervention(id string, status datatypes.Status) *datatypes.Intervention {
	return &datatypes.Intervention{
		ID:          id,
		Type:        "reduce_meetings",
		TargetID:    "emp_42",
		Params:      map[string]any{"max_per_day": 3.0},
		Reason:      "reduce load",
		ImpactLevel: datatypes.ImpactMedium,
		Status:      status,
		ProposedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			iv := sampleIntervention("iv-1", datatypes.StatusProposed)
			require.NoError(t, s.Create(ctx, iv))

			got, err := s.Get(ctx, "iv-1")
			require.NoError(t, err)
			assert.Equal(t, "reduce_meetings", got.Type)
			assert.Equal(t, "emp_42", got.TargetID)
			assert.Equal(t, datatypes.StatusProposed, got.Status)
			assert.Equal(t, datatypes.ImpactMedium, got.ImpactLevel)
		})
	}
}

func TestStore_CreateDuplicateFails(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, sampleIntervention("iv-1", datatypes.StatusProposed)))
			assert.Error(t, s.Create(ctx, sampleIntervention("iv-1", datatypes.StatusProposed)))
		})
	}
}

func TestStore_GetUnknownID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, datatypes.ErrNotFound)

			var nf *datatypes.NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, "missing", nf.ID)
		})
	}
}

func TestStore_ListByStatus(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			older := sampleIntervention("iv-old", datatypes.StatusPendingApproval)
			older.ProposedAt = time.Now().UTC().Add(-2 * time.Hour)
			newer := sampleIntervention("iv-new", datatypes.StatusPendingApproval)
			executed := sampleIntervention("iv-done", datatypes.StatusExecuted)

			require.NoError(t, s.Create(ctx, newer))
			require.NoError(t, s.Create(ctx, older))
			require.NoError(t, s.Create(ctx, executed))

			pending, err := s.ListByStatus(ctx, datatypes.StatusPendingApproval)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, "iv-old", pending[0].ID, "ordered by ProposedAt ascending")
			assert.Equal(t, "iv-new", pending[1].ID)

			done, err := s.ListByStatus(ctx, datatypes.StatusExecuted)
			require.NoError(t, err)
			require.Len(t, done, 1)
			assert.Equal(t, "iv-done", done[0].ID)
		})
	}
}

func TestStore_UpdateIf_Succeeds(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, sampleIntervention("iv-1", datatypes.StatusApproved)))

			updated, err := s.UpdateIf(ctx, "iv-1", datatypes.StatusApproved, "execute",
				func(iv *datatypes.Intervention) {
					iv.Status = datatypes.StatusExecuting
				})
			require.NoError(t, err)
			assert.Equal(t, datatypes.StatusExecuting, updated.Status)

			got, err := s.Get(ctx, "iv-1")
			require.NoError(t, err)
			assert.Equal(t, datatypes.StatusExecuting, got.Status)
		})
	}
}

func TestStore_UpdateIf_WrongStatus(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, sampleIntervention("iv-1", datatypes.StatusRejected)))

			_, err := s.UpdateIf(ctx, "iv-1", datatypes.StatusApproved, "execute",
				func(iv *datatypes.Intervention) {
					iv.Status = datatypes.StatusExecuting
				})
			assert.ErrorIs(t, err, datatypes.ErrInvalidStateTransition)

			var iste *datatypes.InvalidStateTransitionError
			require.ErrorAs(t, err, &iste)
			assert.Equal(t, datatypes.StatusRejected, iste.Current)
			assert.Equal(t, datatypes.StatusApproved, iste.Expected)
			assert.Equal(t, "execute", iste.Op)

			// The record is untouched.
			got, err := s.Get(ctx, "iv-1")
			require.NoError(t, err)
			assert.Equal(t, datatypes.StatusRejected, got.Status)
		})
	}
}

func TestStore_UpdateIf_UnknownID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.UpdateIf(context.Background(), "missing", datatypes.StatusApproved, "execute",
				func(iv *datatypes.Intervention) {})
			assert.ErrorIs(t, err, datatypes.ErrNotFound)
		})
	}
}

// TestStore_UpdateIf_RaceHasOneWinner drives concurrent conditional
// updates for the same transition and verifies exactly one caller
// wins; everyone else loses with InvalidStateTransitionError.
func TestStore_UpdateIf_RaceHasOneWinner(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, sampleIntervention("iv-1", datatypes.StatusApproved)))

			const racers = 16
			var wg sync.WaitGroup
			var winners, losers int
			var mu sync.Mutex
			wg.Add(racers)

			for i := 0; i < racers; i++ {
				go func() {
					defer wg.Done()
					_, err := s.UpdateIf(ctx, "iv-1", datatypes.StatusApproved, "execute",
						func(iv *datatypes.Intervention) {
							iv.Status = datatypes.StatusExecuting
						})
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						winners++
					} else if errors.Is(err, datatypes.ErrInvalidStateTransition) {
						losers++
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, winners, "exactly one racer must win")
			assert.Equal(t, racers-1, losers)
		})
	}
}

func TestStore_CallerCannotMutateStoredRecord(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			iv := sampleIntervention("iv-1", datatypes.StatusProposed)
			require.NoError(t, s.Create(ctx, iv))

			// Mutating the original after Create must not leak through.
			iv.Status = datatypes.StatusExecuted

			got, err := s.Get(ctx, "iv-1")
			require.NoError(t, err)
			assert.Equal(t, datatypes.StatusProposed, got.Status)

			// Mutating a fetched copy must not leak either.
			got.Params["max_per_day"] = 99.0
			again, err := s.Get(ctx, "iv-1")
			require.NoError(t, err)
			assert.Equal(t, 3.0, again.Params["max_per_day"])
		})
	}
}
