// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRunner fails with an execution error until the given attempt number.
func flakyRunner(succeedOn int32, calls *atomic.Int32) Runner {
	return RunnerFunc(func(_ context.Context, spec registry.CommandSpec) *Result {
		n := calls.Add(1)
		if n >= succeedOn && succeedOn > 0 {
			return &Result{Name: spec.Name, Status: StatusSuccess, Success: true}
		}

		return &Result{Name: spec.Name, Status: StatusError, Kind: KindExecution, ExitCode: 1, Error: ErrCommandFailed}
	})
}

func TestRunWithRetry_SucceedsOnThirdAttempt(t *testing.T) {
	var calls atomic.Int32

	var (
		started  []int
		retrying []int
	)

	obs := AttemptObserver{
		Started: func(attempt, maxAttempts int) {
			assert.Equal(t, 4, maxAttempts)

			started = append(started, attempt)
		},
		Retrying: func(failed *Result, next, _ int, delay time.Duration) {
			assert.Equal(t, StatusError, failed.Status)
			assert.Equal(t, 10*time.Millisecond, delay)

			retrying = append(retrying, next)
		},
	}

	spec := registry.CommandSpec{Name: "flaky", Command: "x", RetryCount: 3, RetryDelay: 10 * time.Millisecond}

	res := RunWithRetry(testContext(t), flakyRunner(3, &calls), spec, obs)

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int{1, 2, 3}, started)
	assert.Equal(t, []int{2, 3}, retrying)
}

func TestRunWithRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32

	spec := registry.CommandSpec{Name: "bad", Command: "x", RetryCount: 2}

	res := RunWithRetry(testContext(t), flakyRunner(0, &calls), spec, AttemptObserver{})

	assert.False(t, res.Success)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunWithRetry_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32

	res := RunWithRetry(testContext(t), flakyRunner(0, &calls), registry.CommandSpec{Name: "once"}, AttemptObserver{})

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunWithRetry_RetryStrategyDefaultsToOneRetry(t *testing.T) {
	var calls atomic.Int32

	spec := registry.CommandSpec{Name: "r", FailureStrategy: registry.FailureStrategyRetry}

	res := RunWithRetry(testContext(t), flakyRunner(0, &calls), spec, AttemptObserver{})

	assert.Equal(t, 1+registry.DefaultRetryCount, res.Attempts)
}

func TestRunWithRetry_SpawnFailureNotRetried(t *testing.T) {
	var calls atomic.Int32

	runner := RunnerFunc(func(_ context.Context, spec registry.CommandSpec) *Result {
		calls.Add(1)
		return &Result{Name: spec.Name, Status: StatusError, Kind: KindSpawn, ExitCode: -1, Error: ErrCouldNotStartProcess}
	})

	res := RunWithRetry(testContext(t), runner, registry.CommandSpec{Name: "s", RetryCount: 5}, AttemptObserver{})

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, KindSpawn, res.Kind)
}

func TestRunWithRetry_CancelledDuringDelay(t *testing.T) {
	var calls atomic.Int32

	ctx, cancel := context.WithCancelCause(testContext(t))

	obs := AttemptObserver{
		Retrying: func(*Result, int, int, time.Duration) { cancel(ErrInterrupted) },
	}

	spec := registry.CommandSpec{Name: "c", RetryCount: 3, RetryDelay: time.Minute}

	start := time.Now()
	res := RunWithRetry(ctx, flakyRunner(0, &calls), spec, obs)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, res.Success)
}

func TestAttemptState_String(t *testing.T) {
	assert.Equal(t, "pending", statePending.String())
	assert.Equal(t, "running", stateRunning.String())
	assert.Equal(t, "retry-pending", stateRetryPending.String())
	assert.Equal(t, "succeeded", stateSucceeded.String())
	assert.Equal(t, "failed", stateFailed.String())
	assert.Equal(t, "unknown", attemptState(42).String())
	assert.True(t, stateFailed.terminal())
	assert.False(t, stateRetryPending.terminal())
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), 0))
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.False(t, sleepCtx(ctx, 0))
}
