// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgflow-ai/orgflow/services/orchestrator/audit"
	"github.com/orgflow-ai/orgflow/services/orchestrator/breaker"
	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
	"github.com/orgflow-ai/orgflow/services/orchestrator/impact"
	"github.com/orgflow-ai/orgflow/services/orchestrator/store"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeExecutor struct {
	mu                sync.Mutex
	calls             int
	transientFailures int
	err               error
	result            map[string]any
}

func (f *fakeExecutor) Execute(ctx context.Context, iv *datatypes.Intervention) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.transientFailures > 0 {
		f.transientFailures--
		return nil, datatypes.Transient(errors.New("executor briefly unavailable"))
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return map[string]any{"applied": true}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSnapshots struct {
	mu         sync.Mutex
	baseline   datatypes.Metrics
	captureErr error
	restoreErr error
	restores   int
}

func (f *fakeSnapshots) Capture(ctx context.Context, targetID string) (*datatypes.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &datatypes.Snapshot{
		TargetID:   targetID,
		CapturedAt: time.Now().UTC(),
		State:      map[string]any{"meetings_per_day": 6.0},
		Baseline:   f.baseline,
	}, nil
}

func (f *fakeSnapshots) Restore(ctx context.Context, snap *datatypes.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.restores++
	return nil
}

func (f *fakeSnapshots) restoreCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restores
}

type fakeMetrics struct {
	mu      sync.Mutex
	current datatypes.Metrics
	err     error
	reads   int
}

func (f *fakeMetrics) Current(ctx context.Context, targetID string) (datatypes.Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return datatypes.Metrics{}, f.err
	}
	return f.current, nil
}

func (f *fakeMetrics) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// manualScheduler captures callbacks so tests fire outcome checks
// deterministically instead of waiting out the real delay.
type manualScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (s *manualScheduler) ScheduleOnce(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, delay)
	s.fns = append(s.fns, fn)
}

func (s *manualScheduler) Stop() {}

// fire runs every captured callback once, in schedule order.
func (s *manualScheduler) fire() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *manualScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// =============================================================================
// Harness
// =============================================================================

type testEnv struct {
	orch      *Orchestrator
	store     store.InterventionStore
	audit     *audit.Log
	executor  *fakeExecutor
	snapshots *fakeSnapshots
	metrics   *fakeMetrics
	sched     *manualScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		store: store.NewMemoryStore(),
		audit: audit.NewLog(audit.NewMemoryStore(), logger),
		executor: &fakeExecutor{},
		snapshots: &fakeSnapshots{
			baseline: datatypes.Metrics{Connectivity: 0.80, WellbeingRisk: 0.50},
		},
		metrics: &fakeMetrics{
			current: datatypes.Metrics{Connectivity: 0.80, WellbeingRisk: 0.50},
		},
		sched: &manualScheduler{},
	}

	breakerConfig := breaker.Config{
		WindowSize:       10,
		FailureRatio:     0.5,
		CallTimeout:      100 * time.Millisecond,
		MaxAttempts:      3,
		RetryBaseDelay:   time.Millisecond,
		RecoveryTimeout:  50 * time.Millisecond,
		SuccessThreshold: 2,
	}

	env.orch = New(DefaultConfig(), Deps{
		Store:      env.store,
		Audit:      env.audit,
		Breakers:   breaker.NewRegistry(breakerConfig, logger),
		Classifier: impact.NewClassifier(),
		Executor:   env.executor,
		Snapshots:  env.snapshots,
		Metrics:    env.metrics,
		Scheduler:  env.sched,
		Logger:     logger,
	})
	return env
}

func (env *testEnv) auditActions(t *testing.T, id string) []datatypes.AuditAction {
	t.Helper()
	entries, err := env.audit.Query(context.Background(), datatypes.AuditQuery{InterventionID: id})
	require.NoError(t, err)
	actions := make([]datatypes.AuditAction, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

// =============================================================================
// Proposal and Validation
// =============================================================================

func TestPropose_RejectsMalformedInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  ProposalRequest
	}{
		{"missing type", ProposalRequest{TargetID: "emp_1", Reason: "r"}},
		{"missing target", ProposalRequest{Type: "send_nudge", Reason: "r"}},
		{"missing reason", ProposalRequest{Type: "send_nudge", TargetID: "emp_1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.orch.Propose(ctx, tc.req)
			assert.ErrorIs(t, err, datatypes.ErrValidation)
		})
	}

	// No record created, no audit entry, no execution.
	entries, err := env.audit.Query(ctx, datatypes.AuditQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, env.executor.callCount())
}

func TestPropose_AutoApprovesAndExecutesMediumImpact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reduce_meetings",
		TargetID: "emp_42",
		Params:   map[string]any{"max_per_day": 3.0},
		Reason:   "reduce load",
	})
	require.NoError(t, err)

	assert.Equal(t, datatypes.ImpactMedium, iv.ImpactLevel)
	assert.Equal(t, datatypes.StatusExecuted, iv.Status)
	assert.Equal(t, 1, env.executor.callCount())
	assert.NotNil(t, iv.ExecutedAt)
	assert.NotNil(t, iv.Result)
	assert.NotNil(t, iv.RollbackData, "EXECUTED implies rollback data present")
	assert.Equal(t, 1, env.sched.scheduled(), "outcome check scheduled")

	assert.Equal(t, []datatypes.AuditAction{
		datatypes.AuditProposed,
		datatypes.AuditExecuting,
		datatypes.AuditExecuted,
	}, env.auditActions(t, iv.ID))
}

func TestPropose_HighImpactWaitsForApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reassign_manager",
		TargetID: "emp_7",
		Reason:   "org change",
	})
	require.NoError(t, err)

	assert.Equal(t, datatypes.ImpactHigh, iv.ImpactLevel)
	assert.Equal(t, datatypes.StatusPendingApproval, iv.Status)
	assert.Equal(t, 0, env.executor.callCount(), "no execution before approval")

	approved, err := env.orch.Approve(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusExecuted, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, 1, env.executor.callCount())

	assert.Equal(t, []datatypes.AuditAction{
		datatypes.AuditProposed,
		datatypes.AuditApproved,
		datatypes.AuditExecuting,
		datatypes.AuditExecuted,
	}, env.auditActions(t, iv.ID))
}

func TestPropose_UnknownTypeDefaultsToLow(t *testing.T) {
	env := newTestEnv(t)

	iv, err := env.orch.Propose(context.Background(), ProposalRequest{
		Type:     "experimental_pilot",
		TargetID: "team_3",
		Reason:   "trial",
	})
	require.NoError(t, err)
	assert.Equal(t, datatypes.ImpactLow, iv.ImpactLevel)
	assert.Equal(t, datatypes.StatusExecuted, iv.Status)
}

// =============================================================================
// Approval Decisions
// =============================================================================

func TestReject_NeverInvokesExecutor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reassign_manager",
		TargetID: "emp_7",
		Reason:   "org change",
	})
	require.NoError(t, err)

	rejected, err := env.orch.Reject(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusRejected, rejected.Status)
	assert.Equal(t, 0, env.executor.callCount())

	// REJECTED is terminal; a late approve loses.
	_, err = env.orch.Approve(ctx, iv.ID)
	assert.ErrorIs(t, err, datatypes.ErrInvalidStateTransition)
	assert.Equal(t, 0, env.executor.callCount())
}

func TestApprove_RequiresPendingApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reduce_meetings",
		TargetID: "emp_42",
		Reason:   "reduce load",
	})
	require.NoError(t, err)

	_, err = env.orch.Approve(ctx, iv.ID)
	assert.ErrorIs(t, err, datatypes.ErrInvalidStateTransition)

	var iste *datatypes.InvalidStateTransitionError
	require.ErrorAs(t, err, &iste)
	assert.Equal(t, datatypes.StatusExecuted, iste.Current)
	assert.Equal(t, "approve", iste.Op)
}

func TestApprove_UnknownID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.orch.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, datatypes.ErrNotFound)
}

// =============================================================================
// Approval Timeout
// =============================================================================

func TestExpireStaleApprovals_Boundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &datatypes.Intervention{
		ID:          "iv-stale",
		Type:        "reassign_manager",
		TargetID:    "emp_1",
		Reason:      "r",
		ImpactLevel: datatypes.ImpactHigh,
		Status:      datatypes.StatusPendingApproval,
		ProposedAt:  now.Add(-24*time.Hour - time.Second),
	}
	fresh := &datatypes.Intervention{
		ID:          "iv-fresh",
		Type:        "reassign_manager",
		TargetID:    "emp_2",
		Reason:      "r",
		ImpactLevel: datatypes.ImpactHigh,
		Status:      datatypes.StatusPendingApproval,
		ProposedAt:  now.Add(-24*time.Hour + time.Second),
	}
	require.NoError(t, env.store.Create(ctx, stale))
	require.NoError(t, env.store.Create(ctx, fresh))

	expired, err := env.orch.ExpireStaleApprovals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := env.store.Get(ctx, "iv-stale")
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusTimedOut, got.Status)

	got, err = env.store.Get(ctx, "iv-fresh")
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusPendingApproval, got.Status)

	assert.Equal(t, []datatypes.AuditAction{datatypes.AuditTimedOut},
		env.auditActions(t, "iv-stale"))
}

// =============================================================================
// Execution
// =============================================================================

func TestExecute_SecondCallDoesNotReinvokeExecutor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reduce_meetings",
		TargetID: "emp_42",
		Reason:   "reduce load",
	})
	require.NoError(t, err)
	require.Equal(t, datatypes.StatusExecuted, iv.Status)

	err = env.orch.Execute(ctx, iv.ID)
	assert.ErrorIs(t, err, datatypes.ErrInvalidStateTransition)
	assert.Equal(t, 1, env.executor.callCount(), "executor invoked exactly once")
}

func TestExecute_TransientFailuresAreRetried(t *testing.T) {
	env := newTestEnv(t)
	env.executor.transientFailures = 2

	iv, err := env.orch.Propose(context.Background(), ProposalRequest{
		Type:     "reduce_meetings",
		TargetID: "emp_42",
		Reason:   "reduce load",
	})
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusExecuted, iv.Status)
	assert.Equal(t, 3, env.executor.callCount(), "two retries then success")
}

func TestExecute_PermanentFailureMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	env.executor.err = errors.New("target rejected the change")
	ctx := context.Background()

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reduce_meetings",
		TargetID: "emp_42",
		Reason:   "reduce load",
	})
	require.NoError(t, err, "proposal itself succeeds")
	assert.Equal(t, datatypes.StatusFailed, iv.Status)
	assert.Contains(t, iv.Error, "target rejected the change")
	assert.Equal(t, 1, env.executor.callCount(), "permanent errors are not retried")
	assert.Equal(t, 0, env.sched.scheduled(), "no outcome check for a failed execution")

	actions := env.auditActions(t, iv.ID)
	require.Equal(t, []datatypes.AuditAction{
		datatypes.AuditProposed,
		datatypes.AuditExecuting,
		datatypes.AuditFailed,
	}, actions)

	entries, err := env.audit.Query(ctx, datatypes.AuditQuery{
		InterventionID: iv.ID,
		Action:         datatypes.AuditFailed,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Details["error"], "target rejected the change")
}

func TestExecute_SnapshotCaptureFailureSkipsExecutor(t *testing.T) {
	env := newTestEnv(t)
	env.snapshots.captureErr = errors.New("graph store unreachable")

	iv, err := env.orch.Propose(context.Background(), ProposalRequest{
		Type:     "reduce_meetings",
		TargetID: "emp_42",
		Reason:   "reduce load",
	})
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusFailed, iv.Status)
	assert.Equal(t, 0, env.executor.callCount(), "no side effect without a snapshot")
}

func TestExecute_FailsFastWhenBreakerOpen(t *testing.T) {
	env := newTestEnv(t)
	env.executor.err = errors.New("executor down")
	ctx := context.Background()

	// Five consecutive failed executions open the action-executor
	// breaker (failure ratio 0.5 over a 10-call window).
	for i := 0; i < 5; i++ {
		iv, err := env.orch.Propose(ctx, ProposalRequest{
			Type:     "reduce_meetings",
			TargetID: "emp_42",
			Reason:   "reduce load",
		})
		require.NoError(t, err)
		require.Equal(t, datatypes.StatusFailed, iv.Status)
	}
	require.Equal(t, 5, env.executor.callCount())

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reduce_meetings",
		TargetID: "emp_42",
		Reason:   "reduce load",
	})
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusFailed, iv.Status)
	assert.Equal(t, 5, env.executor.callCount(), "open breaker never invokes the executor")

	got, err := env.store.Get(ctx, iv.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Error, "circuit breaker")
}

// =============================================================================
// Rollback
// =============================================================================

func executedIntervention(t *testing.T, env *testEnv) *datatypes.Intervention {
	t.Helper()
	iv, err := env.orch.Propose(context.Background(), ProposalRequest{
		Type:     "reduce_meetings",
		TargetID: "emp_42",
		Reason:   "reduce load",
	})
	require.NoError(t, err)
	require.Equal(t, datatypes.StatusExecuted, iv.Status)
	return iv
}

func TestRollback_RestoresSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iv := executedIntervention(t, env)

	rolled, err := env.orch.Rollback(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusRolledBack, rolled.Status)
	assert.NotNil(t, rolled.RolledBackAt)
	assert.Equal(t, 1, env.snapshots.restoreCount())

	// The pending outcome check is cancelled: firing it is a no-op.
	env.sched.fire()
	assert.Equal(t, 0, env.metrics.readCount())
	assert.Equal(t, 1, env.snapshots.restoreCount(), "no double restore")
}

func TestRollback_RestoreFailureIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iv := executedIntervention(t, env)
	env.snapshots.restoreErr = errors.New("target state diverged")

	failed, err := env.orch.Rollback(ctx, iv.ID)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*datatypes.RollbackError))
	assert.Equal(t, datatypes.StatusRollbackFailed, failed.Status)
	assert.Contains(t, failed.Error, "target state diverged")

	entries, qerr := env.audit.Query(ctx, datatypes.AuditQuery{
		InterventionID: iv.ID,
		Action:         datatypes.AuditRollbackFailed,
	})
	require.NoError(t, qerr)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Details["error"], "target state diverged")

	// ROLLBACK_FAILED is terminal: no automatic retry, and a second
	// manual attempt is refused.
	_, err = env.orch.Rollback(ctx, iv.ID)
	assert.ErrorIs(t, err, datatypes.ErrInvalidStateTransition)
}

func TestRollback_RequiresExecutedStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reassign_manager",
		TargetID: "emp_7",
		Reason:   "org change",
	})
	require.NoError(t, err)

	_, err = env.orch.Rollback(ctx, iv.ID)
	assert.ErrorIs(t, err, datatypes.ErrInvalidStateTransition)
	assert.Equal(t, 0, env.snapshots.restoreCount())
}

// =============================================================================
// Outcome Monitor
// =============================================================================

func TestCheckOutcome_WellbeingRegressionTriggersRollback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iv := executedIntervention(t, env)

	// Baseline wellbeing risk 0.50; 0.65 is a 30% rise, over the 20%
	// threshold.
	env.metrics.current = datatypes.Metrics{Connectivity: 0.80, WellbeingRisk: 0.65}
	env.sched.fire()

	got, err := env.store.Get(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusRolledBack, got.Status)
	assert.Equal(t, 1, env.snapshots.restoreCount())

	actions := env.auditActions(t, iv.ID)
	require.Len(t, actions, 5)
	assert.Equal(t, datatypes.AuditNegativeOutcomeDetected, actions[3])
	assert.Equal(t, datatypes.AuditRolledBack, actions[4])
}

func TestCheckOutcome_ConnectivityDropTriggersRollback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iv := executedIntervention(t, env)

	// Baseline connectivity 0.80; 0.48 is a 40% drop, over the 30%
	// threshold.
	env.metrics.current = datatypes.Metrics{Connectivity: 0.48, WellbeingRisk: 0.50}
	env.sched.fire()

	got, err := env.store.Get(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusRolledBack, got.Status)
}

func TestCheckOutcome_HealthyOutcomeLeavesRecordAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iv := executedIntervention(t, env)

	env.metrics.current = datatypes.Metrics{Connectivity: 0.85, WellbeingRisk: 0.45}
	env.sched.fire()

	got, err := env.store.Get(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusExecuted, got.Status)
	assert.NotNil(t, got.OutcomeCheckedAt, "check is marked done")
	assert.Equal(t, 0, env.snapshots.restoreCount())

	entries, err := env.audit.Query(ctx, datatypes.AuditQuery{
		InterventionID: iv.ID,
		Action:         datatypes.AuditNegativeOutcomeDetected,
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckOutcome_IdempotentOnRedelivery(t *testing.T) {
	env := newTestEnv(t)
	iv := executedIntervention(t, env)
	ctx := context.Background()

	env.orch.CheckOutcome(ctx, iv.ID)
	env.orch.CheckOutcome(ctx, iv.ID)

	assert.Equal(t, 1, env.metrics.readCount(), "second delivery is a no-op")
}

func TestRearmOutcomeChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	executedAt := time.Now().UTC().Add(-8 * 24 * time.Hour)
	iv := &datatypes.Intervention{
		ID:          "iv-restarted",
		Type:        "reduce_meetings",
		TargetID:    "emp_42",
		Reason:      "r",
		ImpactLevel: datatypes.ImpactMedium,
		Status:      datatypes.StatusExecuted,
		ProposedAt:  executedAt.Add(-time.Minute),
		ExecutedAt:  &executedAt,
		RollbackData: &datatypes.Snapshot{
			TargetID:   "emp_42",
			CapturedAt: executedAt,
			Baseline:   datatypes.Metrics{Connectivity: 0.80, WellbeingRisk: 0.50},
		},
	}
	require.NoError(t, env.store.Create(ctx, iv))

	rearmed, err := env.orch.RearmOutcomeChecks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rearmed)

	// The check is already overdue; firing it runs it immediately.
	env.sched.fire()
	got, err := env.store.Get(ctx, "iv-restarted")
	require.NoError(t, err)
	assert.NotNil(t, got.OutcomeCheckedAt)

	// Records already checked are not re-armed.
	rearmed, err = env.orch.RearmOutcomeChecks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rearmed)
}

// =============================================================================
// Concurrency
// =============================================================================

func TestExecute_ConcurrentCallsInvokeExecutorOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	iv, err := env.orch.Propose(ctx, ProposalRequest{
		Type:     "reassign_manager",
		TargetID: "emp_7",
		Reason:   "org change",
	})
	require.NoError(t, err)
	_, err = env.store.UpdateIf(ctx, iv.ID, datatypes.StatusPendingApproval, "approve",
		func(iv *datatypes.Intervention) {
			iv.Status = datatypes.StatusApproved
		})
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_ = env.orch.Execute(ctx, iv.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, env.executor.callCount())
	got, err := env.store.Get(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusExecuted, got.Status)
}

func TestRollback_ManualRaceWithMonitorRestoresOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iv := executedIntervention(t, env)
	env.metrics.current = datatypes.Metrics{Connectivity: 0.10, WellbeingRisk: 0.90}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = env.orch.Rollback(ctx, iv.ID)
	}()
	go func() {
		defer wg.Done()
		env.orch.CheckOutcome(ctx, iv.ID)
	}()
	wg.Wait()

	assert.Equal(t, 1, env.snapshots.restoreCount())
	got, err := env.store.Get(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusRolledBack, got.Status)
}
