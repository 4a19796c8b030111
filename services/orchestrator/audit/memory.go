// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"sync"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// MemoryStore is the in-memory AuditStore used by tests and
// lightweight mode.
type MemoryStore struct {
	mu      sync.Mutex
	entries []datatypes.AuditLogEntry
	seq     uint64
}

// NewMemoryStore returns an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of the entry and assigns its sequence number.
func (s *MemoryStore) Append(ctx context.Context, entry *datatypes.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.Sequence = s.seq
	s.entries = append(s.entries, *entry)
	return nil
}

// Query returns matching entries in append order (timestamps are
// monotonic within one process, so append order is timestamp order).
func (s *MemoryStore) Query(ctx context.Context, q datatypes.AuditQuery) ([]datatypes.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datatypes.AuditLogEntry
	for _, entry := range s.entries {
		if !q.Matches(entry) {
			continue
		}
		out = append(out, entry)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ AuditStore = (*MemoryStore)(nil)
