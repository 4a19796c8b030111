// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// auditPrefix namespaces audit keys inside the shared database.
const auditPrefix = "audit/"

// BadgerStore is the BadgerDB-backed AuditStore.
//
// Keys are audit/<unix-nanos, zero-padded>/<sequence, zero-padded> so
// BadgerDB's lexicographic iteration yields entries in timestamp order
// without a secondary index. SyncWrites on the shared database makes
// each append durable before it returns.
type BadgerStore struct {
	db  *badger.DB
	seq atomic.Uint64
}

// NewBadgerStore wraps an opened database handle and recovers the
// sequence counter from the highest existing key.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	s := &BadgerStore{db: db}

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(auditPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var last uint64
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			var ts, seq uint64
			if _, err := fmt.Sscanf(key, auditPrefix+"%020d/%012d", &ts, &seq); err == nil {
				if seq > last {
					last = seq
				}
			}
		}
		s.seq.Store(last)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recover audit sequence: %w", err)
	}
	return s, nil
}

// Append stores the entry under a timestamp-ordered key and assigns
// its sequence number.
func (s *BadgerStore) Append(ctx context.Context, entry *datatypes.AuditLogEntry) error {
	entry.Sequence = s.seq.Add(1)
	key := fmt.Sprintf(auditPrefix+"%020d/%012d", entry.Timestamp.UnixNano(), entry.Sequence)

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

// Query iterates the keyspace in timestamp order and returns matching
// entries.
func (s *BadgerStore) Query(ctx context.Context, q datatypes.AuditQuery) ([]datatypes.AuditLogEntry, error) {
	var out []datatypes.AuditLogEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(auditPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		start := []byte(auditPrefix)
		if !q.Start.IsZero() {
			start = []byte(fmt.Sprintf(auditPrefix+"%020d", q.Start.UnixNano()))
		}

		for it.Seek(start); it.Valid(); it.Next() {
			var entry datatypes.AuditLogEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			if !q.End.IsZero() && entry.Timestamp.After(q.End) {
				break
			}
			if !q.Matches(entry) {
				continue
			}
			out = append(out, entry)
			if q.Limit > 0 && len(out) >= q.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error { return s.db.Close() }

var _ AuditStore = (*BadgerStore)(nil)
