// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// MemoryStore is the in-memory InterventionStore. A single mutex
// serializes all access, which makes the conditional update trivially
// atomic. Records are cloned on the way in and out so callers can
// never mutate stored state directly.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*datatypes.Intervention
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*datatypes.Intervention),
	}
}

// Create persists a new record.
func (s *MemoryStore) Create(ctx context.Context, iv *datatypes.Intervention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[iv.ID]; exists {
		return fmt.Errorf("intervention %s already exists", iv.ID)
	}
	s.records[iv.ID] = iv.Clone()
	return nil
}

// Get returns a copy of the record with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*datatypes.Intervention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.records[id]
	if !ok {
		return nil, &datatypes.NotFoundError{ID: id}
	}
	return iv.Clone(), nil
}

// ListByStatus returns copies of all records in the given status,
// ordered by ProposedAt ascending.
func (s *MemoryStore) ListByStatus(ctx context.Context, status datatypes.Status) ([]*datatypes.Intervention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*datatypes.Intervention
	for _, iv := range s.records {
		if iv.Status == status {
			out = append(out, iv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProposedAt.Before(out[j].ProposedAt)
	})
	return out, nil
}

// UpdateIf applies the mutation iff the current status equals expect.
func (s *MemoryStore) UpdateIf(ctx context.Context, id string, expect datatypes.Status, op string,
	apply func(*datatypes.Intervention)) (*datatypes.Intervention, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	iv, ok := s.records[id]
	if !ok {
		return nil, &datatypes.NotFoundError{ID: id}
	}
	if iv.Status != expect {
		return nil, &datatypes.InvalidStateTransitionError{
			ID:       id,
			Current:  iv.Status,
			Expected: expect,
			Op:       op,
		}
	}

	updated := iv.Clone()
	apply(updated)
	s.records[id] = updated
	return updated.Clone(), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ InterventionStore = (*MemoryStore)(nil)
