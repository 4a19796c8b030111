// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// retryInterval is how often the background loop retries buffered
// entries against an unavailable backend.
const retryInterval = 5 * time.Second

// Log records audit entries and guarantees none are lost.
//
// # Description
//
// Appends go straight to the backing store. When the store is
// unavailable the entry is queued in a local FIFO buffer and a
// background loop retries until the write succeeds. While the buffer
// is non-empty, new appends also queue so store-assigned sequence
// numbers preserve the order events happened in.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Log struct {
	store  AuditStore
	logger *slog.Logger

	mu     sync.Mutex
	buffer []*datatypes.AuditLogEntry

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewLog wraps a store. Call Start to enable background retries.
func NewLog(store AuditStore, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		store:  store,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Record appends an audit entry for an intervention event. The entry
// is buffered rather than dropped when the backend is unavailable, so
// Record itself never fails.
func (l *Log) Record(ctx context.Context, action datatypes.AuditAction, interventionID string, details map[string]any) {
	entry := &datatypes.AuditLogEntry{
		Timestamp:      time.Now().UTC(),
		Action:         action,
		InterventionID: interventionID,
		Details:        details,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// A non-empty buffer means older entries are still waiting; queue
	// behind them so sequences stay ordered.
	if len(l.buffer) > 0 {
		l.buffer = append(l.buffer, entry)
		return
	}
	if err := l.store.Append(ctx, entry); err != nil {
		l.logger.Warn("audit append failed, buffering entry",
			"action", string(action),
			"intervention_id", interventionID,
			"error", err)
		l.buffer = append(l.buffer, entry)
	}
}

// Query returns entries matching the filter from the backing store.
// Buffered entries are not yet visible; Healthy reports that state.
func (l *Log) Query(ctx context.Context, q datatypes.AuditQuery) ([]datatypes.AuditLogEntry, error) {
	return l.store.Query(ctx, q)
}

// Healthy reports whether every recorded entry has reached durable
// storage.
func (l *Log) Healthy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer) == 0
}

// Buffered returns the number of entries awaiting retry.
func (l *Log) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

// Start launches the background retry loop.
func (l *Log) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(retryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Flush(ctx)
			case <-ctx.Done():
				return
			case <-l.done:
				return
			}
		}
	}()
}

// Stop terminates the retry loop and waits for it to exit. Buffered
// entries get one final flush attempt.
func (l *Log) Stop() {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
	l.Flush(context.Background())
}

// Flush drains the buffer in order, stopping at the first entry the
// store still rejects.
func (l *Log) Flush(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.buffer) > 0 {
		if err := l.store.Append(ctx, l.buffer[0]); err != nil {
			return
		}
		l.buffer = l.buffer[1:]
	}
}
