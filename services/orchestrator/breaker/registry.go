// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package breaker

import (
	"context"
	"log/slog"
	"sync"
)

// Registry maps dependency names to breakers, creating them lazily on
// first use. It is the sole place breaker state is mutated: callers
// only ever invoke Call.
//
// The registry is an explicit dependency injected into the
// orchestrator — never a package-level singleton — so independent
// orchestrator instances (per test, per tenant) carry fully isolated
// breaker state. Breakers for different dependency names are
// independent and never block each other.
type Registry struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry. All breakers it creates share
// the given config.
func NewRegistry(config Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Call invokes fn through the breaker for the named dependency,
// creating the breaker on first use.
func (r *Registry) Call(ctx context.Context, dependency string, fn func(context.Context) error) error {
	return r.breaker(dependency).Call(ctx, fn)
}

// State returns the current state of the named dependency's breaker.
// A dependency that has never been called reports StateClosed.
func (r *Registry) State(dependency string) State {
	return r.breaker(dependency).State()
}

// Stats returns snapshots for every breaker created so far, keyed by
// dependency name.
func (r *Registry) Stats() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Stats()
	}
	return out
}

func (r *Registry) breaker(dependency string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[dependency]
	if !ok {
		b = newBreaker(dependency, r.config, r.logger.With("dependency", dependency))
		r.breakers[dependency] = b
	}
	return b
}
