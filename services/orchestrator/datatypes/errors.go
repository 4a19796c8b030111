// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"errors"
	"fmt"
)

// =============================================================================
// Typed Errors
// =============================================================================
//
// Every failure mode of the public operations maps to one of the types
// below. Callers match with errors.As (for the struct detail) or
// errors.Is against the sentinel of the same kind. There is no silent
// failure path: terminal FAILED / ROLLBACK_FAILED states always carry a
// corresponding audit entry with the error detail.

var (
	// ErrValidation is the sentinel matched by all ValidationError values.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the sentinel matched by all NotFoundError values.
	ErrNotFound = errors.New("intervention not found")

	// ErrInvalidStateTransition is the sentinel matched by all
	// InvalidStateTransitionError values, including lost CAS races.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrCircuitOpen is the sentinel matched by all
	// CircuitBreakerOpenError values.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// ValidationError reports malformed propose() input. No record is
// created and no audit entry is written when this is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// Is makes ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown intervention id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("intervention %s not found", e.ID)
}

// Is makes NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStateTransitionError reports an operation attempted from the
// wrong status, including the loser of a concurrent CAS race. The
// winner of the race proceeds; the loser receives this error and the
// record is left untouched.
type InvalidStateTransitionError struct {
	ID       string
	Current  Status
	Expected Status
	Op       string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s intervention %s: status is %s, want %s",
		e.Op, e.ID, e.Current, e.Expected)
}

// Is makes InvalidStateTransitionError match ErrInvalidStateTransition.
func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// CircuitBreakerOpenError reports a fail-fast rejection because the
// named dependency's breaker is OPEN. The wrapped function was never
// invoked.
type CircuitBreakerOpenError struct {
	Dependency string
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker for %q is open", e.Dependency)
}

// Is makes CircuitBreakerOpenError match ErrCircuitOpen.
func (e *CircuitBreakerOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// ExecutionError reports a permanent action-executor failure after the
// retry budget was exhausted. The intervention transitions to FAILED.
type ExecutionError struct {
	InterventionID string
	Err            error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of intervention %s failed: %v", e.InterventionID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RollbackError reports a snapshot-restore failure. The intervention
// transitions to ROLLBACK_FAILED, a terminal state requiring manual
// operator remediation; the orchestrator never retries it.
type RollbackError struct {
	InterventionID string
	Err            error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback of intervention %s failed: %v", e.InterventionID, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// =============================================================================
// Transient Error Classification
// =============================================================================

// transientError marks an error as retryable by the circuit breaker.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the circuit breaker's retry logic applies to
// it. External collaborators (action executor, snapshot provider,
// metrics provider) wrap recoverable failures — network blips, 5xx
// responses, lock contention — and leave permanent failures unwrapped.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked
// with Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
