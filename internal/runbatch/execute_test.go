// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/plan"
	"github.com/DonkRonk17/batchrunner/internal/progress"
	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// scriptRunner interprets the command line as a tiny script:
// "ok", "fail", "sleep <duration>" and "block" (wait for cancellation).
type scriptRunner struct {
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32

	mu    sync.Mutex
	spans map[string][2]time.Time
}

func newScriptRunner() *scriptRunner {
	return &scriptRunner{spans: make(map[string][2]time.Time)}
}

func (s *scriptRunner) Run(ctx context.Context, spec registry.CommandSpec) *Result {
	s.calls.Add(1)

	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)

	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	start := time.Now()
	res := &Result{Name: spec.Name, Command: spec.Command, Timestamp: start}

	verb, arg, _ := strings.Cut(spec.Command, " ")

	switch verb {
	case "ok":
		res.Status, res.Success = StatusSuccess, true
	case "fail":
		res.Status, res.Kind, res.ExitCode, res.Error = StatusError, KindExecution, 1, ErrCommandFailed
		res.StdErr = []byte("boom")
	case "sleep":
		d, _ := time.ParseDuration(arg)
		if sleepCtx(ctx, d) {
			res.Status, res.Success = StatusSuccess, true
		} else {
			res.Status, res.Kind, res.ExitCode, res.Error = StatusError, KindInterrupted, -1, ErrInterrupted
		}
	case "block":
		<-ctx.Done()

		res.Status, res.ExitCode = StatusError, -1
		if cancellationKind(ctx, ctx) == KindTimeout {
			res.Kind, res.Error = KindTimeout, ErrTimeoutExceeded
		} else {
			res.Kind, res.Error = KindInterrupted, ErrInterrupted
		}
	}

	res.Duration = time.Since(start)

	s.mu.Lock()
	s.spans[spec.Name] = [2]time.Time{start, time.Now()}
	s.mu.Unlock()

	return res
}

// recorder is a progress.Reporter that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Report(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) Close() {}

func (r *recorder) ofType(et progress.EventType) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []progress.Event

	for _, e := range r.events {
		if e.Type == et {
			out = append(out, e)
		}
	}

	return out
}

func mustPlan(t *testing.T, reg *registry.Registry) *plan.ExecutionPlan {
	t.Helper()

	p, err := plan.Build(reg)
	require.NoError(t, err)

	return p
}

func TestExecute_LevelsRunInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "sleep 50ms"},
		registry.CommandSpec{Name: "b", Command: "sleep 20ms"},
		registry.CommandSpec{Name: "c", Command: "ok", DependsOn: []string{"a", "b"}},
	)

	runner := newScriptRunner()
	opts := DefaultOptions()
	opts.Runner = runner

	s, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	assert.True(t, s.Success())
	assert.Equal(t, 0, s.ExitCode())
	assert.Equal(t, 3, s.Succeeded())
	assert.Equal(t, 2, s.Levels())

	c := runner.spans["c"][0]
	assert.False(t, c.Before(runner.spans["a"][1]))
	assert.False(t, c.Before(runner.spans["b"][1]))

	names := make([]string, 0, s.Total())
	for _, r := range s.Results() {
		names = append(names, r.Name)
	}

	assert.Equal(t, []string{"a", "b", "c"}, names)

	res, ok := s.Result("c")
	require.True(t, ok)
	assert.Equal(t, 1, res.Level)
	assert.Equal(t, 1, res.Attempts)
}

func TestExecute_ParallelLevelTakesSlowest(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)

	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "sleep 0.3"},
		registry.CommandSpec{Name: "b", Command: "sleep 0.3"},
		registry.CommandSpec{Name: "c", Command: "sleep 0.5"},
	)

	start := time.Now()
	s, err := Execute(testContext(t), reg, mustPlan(t, reg), DefaultOptions())
	require.NoError(t, err)

	elapsed := time.Since(start)

	assert.True(t, s.Success())
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 1000*time.Millisecond)
}

func TestExecute_MaxWorkersBoundsConcurrency(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "sleep 20ms"},
		registry.CommandSpec{Name: "b", Command: "sleep 20ms"},
		registry.CommandSpec{Name: "c", Command: "sleep 20ms"},
		registry.CommandSpec{Name: "d", Command: "sleep 20ms"},
	)

	runner := newScriptRunner()
	opts := DefaultOptions()
	opts.Runner = runner
	opts.MaxWorkers = 2

	s, err := Execute(testContext(t), reg, plan.Parallel(reg), opts)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Succeeded())
	assert.Equal(t, int32(2), runner.peak.Load())
}

func TestExecute_DryRunSpawnsNothing(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "fail"},
		registry.CommandSpec{Name: "b", Command: "ok", DependsOn: []string{"a"}},
	)

	runner := newScriptRunner()
	rec := &recorder{}
	opts := DefaultOptions()
	opts.Runner = runner
	opts.Reporter = rec
	opts.DryRun = true

	s, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	assert.Equal(t, int32(0), runner.calls.Load())
	assert.True(t, s.DryRun())
	assert.Equal(t, 2, s.Total())
	assert.Equal(t, 2, s.NotRun())
	assert.Equal(t, 0, s.Executed())
	assert.Equal(t, 0, s.Failed())
	assert.Equal(t, time.Duration(0), s.MaxDuration())

	for _, r := range s.Results() {
		assert.Equal(t, StatusNotRun, r.Status)
		assert.Equal(t, 0, r.Attempts)
		assert.Equal(t, time.Duration(0), r.Duration)
	}

	assert.Len(t, rec.ofType(progress.EventPlanned), 1)
	assert.Empty(t, rec.ofType(progress.EventStarted))
}

func TestExecute_AbortSkipsLaterLevels(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "fail"},
		registry.CommandSpec{Name: "b", Command: "ok", DependsOn: []string{"a"}},
	)

	runner := newScriptRunner()
	opts := DefaultOptions()
	opts.Runner = runner

	s, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Executed())
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, 0, s.Skipped())
	assert.Equal(t, 1, s.Total())
	assert.Equal(t, 2, s.Planned())
	assert.True(t, s.Aborted())
	assert.Equal(t, "a", s.AbortedBy())
	assert.False(t, s.Success())
	assert.Equal(t, 1, s.ExitCode())

	_, ok := s.Result("b")
	assert.False(t, ok, "commands of levels that never started have no result")
	assert.Len(t, s.Results(), 1)

	na := s.NotAttempted()
	require.Len(t, na, 1)
	assert.Equal(t, "b", na[0].Name)
	assert.Equal(t, "ok", na[0].Command)
	assert.Equal(t, 1, na[0].Level)
	require.ErrorIs(t, na[0].Reason, ErrBatchAborted)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestExecute_AbortLetsSiblingsFinish(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "fails", Command: "fail"},
		registry.CommandSpec{Name: "slow", Command: "sleep 50ms"},
	)

	opts := DefaultOptions()
	opts.Runner = newScriptRunner()

	s, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	slow, _ := s.Result("slow")
	assert.Equal(t, StatusSuccess, slow.Status)
	assert.True(t, s.Aborted())
	assert.Equal(t, 2, s.Executed())
}

func TestExecute_PerCommandContinueOverridesAbort(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "fail", FailureStrategy: registry.FailureStrategyContinue},
		registry.CommandSpec{Name: "b", Command: "ok", DependsOn: []string{"a"}},
	)

	opts := DefaultOptions()
	opts.Runner = newScriptRunner()

	s, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	assert.False(t, s.Aborted())
	assert.Equal(t, 2, s.Executed())
	assert.Equal(t, 1, s.Succeeded())
}

func TestExecute_RetryFallbackAbort(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{
			Name:            "a",
			Command:         "fail",
			FailureStrategy: registry.FailureStrategyRetry,
			RetryCount:      2,
			RetryFallback:   registry.FailureStrategyAbort,
		},
		registry.CommandSpec{Name: "b", Command: "ok", DependsOn: []string{"a"}},
	)

	runner := newScriptRunner()
	opts := Options{Runner: runner}

	s, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	a, _ := s.Result("a")
	assert.Equal(t, 3, a.Attempts)
	assert.True(t, s.Aborted())
	assert.Equal(t, 2, s.MaxRetries())
	assert.Equal(t, int32(3), runner.calls.Load())
}

func TestExecute_ContinueIsRepeatable(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "ok"},
		registry.CommandSpec{Name: "b", Command: "fail"},
		registry.CommandSpec{Name: "c", Command: "ok", DependsOn: []string{"b"}},
		registry.CommandSpec{Name: "d", Command: "fail", DependsOn: []string{"a"}},
	)

	p := mustPlan(t, reg)

	outcome := func() []string {
		s, err := Execute(testContext(t), reg, p, Options{Runner: newScriptRunner()})
		require.NoError(t, err)

		out := make([]string, 0, s.Total())
		for _, r := range s.Results() {
			out = append(out, r.Name+"="+r.Status.String())
		}

		return out
	}

	first := outcome()
	assert.Equal(t, []string{"a=success", "b=error", "c=success", "d=error"}, first)

	for range 5 {
		assert.Equal(t, first, outcome())
	}
}

func TestExecute_StrictDependencies(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "fail"},
		registry.CommandSpec{Name: "b", Command: "ok", DependsOn: []string{"a"}},
		registry.CommandSpec{Name: "c", Command: "ok"},
		registry.CommandSpec{Name: "d", Command: "ok", DependsOn: []string{"b", "c"}},
	)

	runner := newScriptRunner()
	opts := Options{Runner: runner, StrictDependencies: true}

	s, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	b, _ := s.Result("b")
	assert.Equal(t, StatusSkipped, b.Status)
	require.ErrorIs(t, b.Error, ErrDependencyFailed)
	assert.Contains(t, b.Error.Error(), ": a")

	d, _ := s.Result("d")
	assert.Equal(t, StatusSkipped, d.Status)
	assert.Contains(t, d.Error.Error(), ": b")

	assert.Equal(t, 2, s.Executed())
	assert.Equal(t, 2, s.Skipped())
	assert.Equal(t, int32(2), runner.calls.Load())
	assert.False(t, s.Aborted())
}

func TestExecute_Interrupted(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "block"},
		registry.CommandSpec{Name: "b", Command: "ok", DependsOn: []string{"a"}},
	)

	ctx, cancel := context.WithCancelCause(testContext(t))

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel(ErrInterrupted)
	}()

	opts := DefaultOptions()
	opts.Runner = newScriptRunner()

	s, err := Execute(ctx, reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	assert.True(t, s.Interrupted())
	assert.False(t, s.Aborted())
	assert.Equal(t, 130, s.ExitCode())

	a, _ := s.Result("a")
	assert.Equal(t, KindInterrupted, a.Kind)

	_, ok := s.Result("b")
	assert.False(t, ok)

	na := s.NotAttempted()
	require.Len(t, na, 1)
	require.ErrorIs(t, na[0].Reason, ErrInterrupted)
}

func TestExecute_GlobalTimeout(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "block"},
		registry.CommandSpec{Name: "b", Command: "ok", DependsOn: []string{"a"}},
	)

	opts := Options{Runner: newScriptRunner(), GlobalTimeout: 50 * time.Millisecond}

	start := time.Now()
	s, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, s.TimedOut())
	assert.False(t, s.Interrupted())
	assert.Equal(t, 1, s.ExitCode())

	a, _ := s.Result("a")
	assert.Equal(t, KindTimeout, a.Kind)

	_, ok := s.Result("b")
	assert.False(t, ok)

	na := s.NotAttempted()
	require.Len(t, na, 1)
	assert.Equal(t, "b", na[0].Name)
	require.ErrorIs(t, na[0].Reason, ErrGlobalTimeout)
}

func TestExecute_TimeoutOneSecondOnSleepFive(t *testing.T) {
	skipOnWindows(t)

	reg := registry.New(registry.CommandSpec{Name: "slow", Command: "sleep 5", Timeout: time.Second})

	start := time.Now()
	s, err := Execute(testContext(t), reg, mustPlan(t, reg), DefaultOptions())
	require.NoError(t, err)

	assert.LessOrEqual(t, time.Since(start), 1500*time.Millisecond)

	r, _ := s.Result("slow")
	assert.Equal(t, KindTimeout, r.Kind)
	assert.Equal(t, -1, r.ExitCode)
	assert.Equal(t, 1, s.Failed())
}

func TestExecute_ProgressEvents(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Name: "a", Command: "ok"},
		registry.CommandSpec{Name: "b", Command: "fail", DependsOn: []string{"a"}},
		registry.CommandSpec{Name: "c", Command: "ok", DependsOn: []string{"b"}},
	)

	rec := &recorder{}
	opts := DefaultOptions()
	opts.Runner = newScriptRunner()
	opts.Reporter = rec

	_, err := Execute(testContext(t), reg, mustPlan(t, reg), opts)
	require.NoError(t, err)

	planned := rec.ofType(progress.EventPlanned)
	require.Len(t, planned, 1)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, planned[0].Data.Levels)

	assert.Len(t, rec.ofType(progress.EventLevelStarted), 2)
	assert.Len(t, rec.ofType(progress.EventCompleted), 1)
	assert.Len(t, rec.ofType(progress.EventFailed), 1)

	skipped := rec.ofType(progress.EventSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "c", skipped[0].Command)
	assert.Equal(t, 3, skipped[0].Data.Finished)
	assert.Equal(t, 3, skipped[0].Data.Total)
}

func TestExecute_UnknownCommandInPlan(t *testing.T) {
	reg := registry.New(registry.CommandSpec{Name: "a", Command: "ok"})
	p := &plan.ExecutionPlan{Levels: []plan.Level{{Index: 0, Commands: []string{"a", "ghost"}}}}

	_, err := Execute(testContext(t), reg, p, DefaultOptions())
	require.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Execute(testContext(t), reg, nil, DefaultOptions())
	require.ErrorIs(t, err, ErrNilPlan)
}

func TestExecute_Empty(t *testing.T) {
	reg := registry.New()

	s, err := Execute(testContext(t), reg, mustPlan(t, reg), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, s.Total())
	assert.InDelta(t, 0.0, s.SuccessRate(), 0)
	assert.True(t, s.Success())
	assert.Equal(t, 0, s.ExitCode())
}

func TestRunCause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, runCause(ctx), ErrInterrupted)

	ctx2, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()
	require.ErrorIs(t, runCause(ctx2), ErrGlobalTimeout)

	ctx3, cancel3 := context.WithCancelCause(context.Background())
	cancel3(ErrBatchAborted)
	require.ErrorIs(t, runCause(ctx3), ErrBatchAborted)
}
