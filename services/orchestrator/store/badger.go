// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// interventionPrefix namespaces intervention keys inside the shared
// database.
const interventionPrefix = "iv/"

// maxTxnRetries bounds optimistic-transaction retries on write
// conflicts. The status check inside the transaction decides the
// logical race; ErrConflict only means the engine wants a re-read.
const maxTxnRetries = 5

// BadgerStore is the BadgerDB-backed InterventionStore.
//
// Records are stored as JSON under iv/<id>. UpdateIf runs as a
// serializable read-check-write transaction: BadgerDB aborts one of
// two conflicting transactions, and the retry re-reads the record so
// the status check fails cleanly for the losing caller.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an opened database handle. The caller retains
// ownership of the handle when it is shared with the audit store; use
// Close only when this store is the sole user.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Create persists a new record.
func (s *BadgerStore) Create(ctx context.Context, iv *datatypes.Intervention) error {
	key := interventionKey(iv.ID)
	raw, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("marshal intervention %s: %w", iv.ID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("intervention %s already exists", iv.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, raw)
	})
}

// Get returns the record with the given id.
func (s *BadgerStore) Get(ctx context.Context, id string) (*datatypes.Intervention, error) {
	var iv *datatypes.Intervention
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(interventionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &datatypes.NotFoundError{ID: id}
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			iv = &datatypes.Intervention{}
			return json.Unmarshal(val, iv)
		})
	})
	if err != nil {
		return nil, err
	}
	return iv, nil
}

// ListByStatus scans all records and returns those in the given
// status, ordered by ProposedAt ascending.
func (s *BadgerStore) ListByStatus(ctx context.Context, status datatypes.Status) ([]*datatypes.Intervention, error) {
	var out []*datatypes.Intervention
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(interventionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var iv datatypes.Intervention
				if err := json.Unmarshal(val, &iv); err != nil {
					return err
				}
				if iv.Status == status {
					out = append(out, &iv)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProposedAt.Before(out[j].ProposedAt)
	})
	return out, nil
}

// UpdateIf applies the mutation iff the current status equals expect.
func (s *BadgerStore) UpdateIf(ctx context.Context, id string, expect datatypes.Status, op string,
	apply func(*datatypes.Intervention)) (*datatypes.Intervention, error) {

	key := interventionKey(id)
	var updated *datatypes.Intervention

	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		updated = nil
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &datatypes.NotFoundError{ID: id}
			}
			if err != nil {
				return err
			}

			var iv datatypes.Intervention
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &iv)
			}); err != nil {
				return err
			}

			if iv.Status != expect {
				return &datatypes.InvalidStateTransitionError{
					ID:       id,
					Current:  iv.Status,
					Expected: expect,
					Op:       op,
				}
			}

			apply(&iv)
			raw, err := json.Marshal(&iv)
			if err != nil {
				return fmt.Errorf("marshal intervention %s: %w", id, err)
			}
			if err := txn.Set(key, raw); err != nil {
				return err
			}
			updated = &iv
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update intervention %s: transaction conflicts exhausted", id)
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error { return s.db.Close() }

func interventionKey(id string) []byte {
	return []byte(interventionPrefix + id)
}

var _ InterventionStore = (*BadgerStore)(nil)
