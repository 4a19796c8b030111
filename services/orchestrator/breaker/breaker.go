// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package breaker provides per-dependency circuit breaking for every
// externally visible side effect the orchestrator performs.
//
// The breaker pattern prevents cascading failures by temporarily
// blocking calls to a failing dependency. It has three states:
//
//   - Closed: normal operation, calls pass through.
//   - Open: the failure ratio over the sliding window crossed the
//     threshold; calls are rejected without invoking the function.
//   - Half-Open: after the recovery timeout, a single trial call probes
//     the dependency; enough successes close the breaker again.
//
// Each invocation is retried internally (transient failures only) with
// exponential backoff, and the whole retried invocation counts once in
// the outcome window.
//
// Thread Safety: all types are safe for concurrent use.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// State represents the breaker state for one dependency.
type State int

const (
	// StateClosed is normal operation.
	StateClosed State = iota
	// StateOpen means the dependency is unhealthy and calls fail fast.
	StateOpen
	// StateHalfOpen is recovery probing with a single in-flight trial.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures breaker behavior. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// WindowSize is the number of completed invocations tracked
	// (default: 10). Retries within one invocation do not count
	// individually.
	WindowSize int

	// FailureRatio opens the breaker when failures/WindowSize reaches
	// it (default: 0.5). The ratio is measured against the window
	// capacity, so a cold breaker opens only after
	// WindowSize*FailureRatio failures.
	FailureRatio float64

	// CallTimeout bounds each try; a try exceeding it counts as a
	// failure (default: 5s).
	CallTimeout time.Duration

	// MaxAttempts is the total tries per invocation (default: 3).
	// Only transient errors are retried.
	MaxAttempts int

	// RetryBaseDelay is the first backoff delay; it doubles per retry
	// and is capped at CallTimeout (default: 1s).
	RetryBaseDelay time.Duration

	// RecoveryTimeout is how long the breaker stays open before a
	// trial call is allowed through (default: 60s).
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of half-open successes required
	// to close (default: 2).
	SuccessThreshold int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:       10,
		FailureRatio:     0.5,
		CallTimeout:      5 * time.Second,
		MaxAttempts:      3,
		RetryBaseDelay:   time.Second,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
	}
}

// Stats is a point-in-time snapshot of one breaker.
type Stats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	WindowFailures  int       `json:"window_failures"`
	WindowSize      int       `json:"window_size"`
	OpenedAt        time.Time `json:"opened_at,omitempty"`
	TotalCalls      int64     `json:"total_calls"`
	TotalFailures   int64     `json:"total_failures"`
	TotalRejections int64     `json:"total_rejections"`
}

// Breaker guards a single named dependency. Construct through a
// Registry; callers never mutate breaker state directly, only invoke
// Call.
type Breaker struct {
	name   string
	config Config
	logger *slog.Logger

	mu                sync.Mutex
	state             State
	window            []bool // true = failed invocation
	windowNext        int
	windowLen         int
	openedAt          time.Time
	halfOpenSuccesses int
	halfOpenInflight  bool

	totalCalls      int64
	totalFailures   int64
	totalRejections int64
}

func newBreaker(name string, config Config, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
		window: make([]bool, config.WindowSize),
	}
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string { return b.name }

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	failures := 0
	for i := 0; i < b.windowLen; i++ {
		if b.window[i] {
			failures++
		}
	}
	return Stats{
		Name:            b.name,
		State:           b.state.String(),
		WindowFailures:  failures,
		WindowSize:      b.config.WindowSize,
		OpenedAt:        b.openedAt,
		TotalCalls:      b.totalCalls,
		TotalFailures:   b.totalFailures,
		TotalRejections: b.totalRejections,
	}
}

// Call invokes fn under the breaker's protection.
//
// The invocation is attempted up to MaxAttempts times with exponential
// backoff, retrying only transient errors (datatypes.IsTransient). A
// try that outlives CallTimeout counts as a (transient) failure. The
// completed invocation — success or final failure — is recorded once
// in the sliding window.
//
// Outputs:
//   - error: *datatypes.CircuitBreakerOpenError if rejected without
//     invoking fn, otherwise the final error from fn (nil on success).
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := b.callWithRetry(ctx, fn)
	b.record(err == nil)
	return err
}

// admit decides whether a call may proceed, handling the
// OPEN→HALF_OPEN transition when the recovery timeout has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.openedAt) < b.config.RecoveryTimeout {
			b.totalRejections++
			return &datatypes.CircuitBreakerOpenError{Dependency: b.name}
		}
		b.transitionTo(StateHalfOpen)
		b.halfOpenInflight = true
		return nil

	case StateHalfOpen:
		// Single trial in flight at a time; concurrent callers fail
		// fast rather than queueing trial traffic.
		if b.halfOpenInflight {
			b.totalRejections++
			return &datatypes.CircuitBreakerOpenError{Dependency: b.name}
		}
		b.halfOpenInflight = true
		return nil
	}

	b.totalRejections++
	return &datatypes.CircuitBreakerOpenError{Dependency: b.name}
}

// callWithRetry runs one invocation: up to MaxAttempts tries, each
// bounded by CallTimeout, backoff doubling from RetryBaseDelay.
func (b *Breaker) callWithRetry(ctx context.Context, fn func(context.Context) error) error {
	delay := b.config.RetryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		lastErr = b.try(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !datatypes.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == b.config.MaxAttempts {
			break
		}

		b.logger.Warn("retrying call",
			"dependency", b.name,
			"attempt", attempt,
			"max_attempts", b.config.MaxAttempts,
			"delay", delay.String(),
			"error", lastErr.Error(),
		)

		if delay > b.config.CallTimeout {
			delay = b.config.CallTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

// errTryTimeout marks a try that exceeded CallTimeout; it is transient
// so the remaining attempts still run.
var errTryTimeout = errors.New("call timed out")

// try runs fn once with the per-try timeout applied.
func (b *Breaker) try(ctx context.Context, fn func(context.Context) error) error {
	tryCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(tryCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-tryCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return datatypes.Transient(fmt.Errorf("%w after %s", errTryTimeout, b.config.CallTimeout))
	}
}

// record stores a completed invocation's outcome and applies the
// transition rules.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !success {
		b.totalFailures++
	}

	switch b.state {
	case StateHalfOpen:
		b.halfOpenInflight = false
		if success {
			b.halfOpenSuccesses++
			if b.halfOpenSuccesses >= b.config.SuccessThreshold {
				b.transitionTo(StateClosed)
				b.logger.Info("circuit breaker closed", "dependency", b.name)
			}
			return
		}
		b.transitionTo(StateOpen)
		b.openedAt = time.Now()
		b.logger.Warn("circuit breaker reopened", "dependency", b.name)

	case StateClosed:
		b.push(!success)
		if b.failureRatio() >= b.config.FailureRatio {
			b.transitionTo(StateOpen)
			b.openedAt = time.Now()
			b.logger.Warn("circuit breaker opened",
				"dependency", b.name,
				"window_failures", b.failureCount(),
				"window_size", b.config.WindowSize,
			)
		}

	case StateOpen:
		// A call admitted before the transition completed; count it
		// in the window so recovery sees fresh data.
		b.push(!success)
	}
}

// push appends an outcome to the ring buffer. Must hold mu.
func (b *Breaker) push(failed bool) {
	b.window[b.windowNext] = failed
	b.windowNext = (b.windowNext + 1) % len(b.window)
	if b.windowLen < len(b.window) {
		b.windowLen++
	}
}

// failureCount counts failed outcomes currently in the window. Must
// hold mu.
func (b *Breaker) failureCount() int {
	n := 0
	for i := 0; i < b.windowLen; i++ {
		if b.window[i] {
			n++
		}
	}
	return n
}

// failureRatio measures failures against the window capacity, not the
// number of recorded outcomes. Must hold mu.
func (b *Breaker) failureRatio() float64 {
	return float64(b.failureCount()) / float64(len(b.window))
}

// transitionTo changes state and resets per-state counters. Must hold
// mu.
func (b *Breaker) transitionTo(next State) {
	b.state = next
	b.halfOpenSuccesses = 0
	b.halfOpenInflight = false
	if next == StateClosed {
		b.window = make([]bool, b.config.WindowSize)
		b.windowNext = 0
		b.windowLen = 0
	}
}
