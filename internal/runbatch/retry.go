// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
	"github.com/DonkRonk17/batchrunner/internal/registry"
)

// attemptState is a state of the per-command retry machine.
type attemptState int

const (
	statePending attemptState = iota
	stateRunning
	stateRetryPending
	stateSucceeded
	stateFailed
)

// String returns the string representation of the attemptState.
func (s attemptState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateRunning:
		return "running"
	case stateRetryPending:
		return "retry-pending"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s attemptState) terminal() bool {
	return s == stateSucceeded || s == stateFailed
}

// AttemptObserver is told about attempts as the retry machine makes them. Either method may be nil.
type AttemptObserver struct {
	Started  func(attempt, maxAttempts int)
	Retrying func(failed *Result, nextAttempt, maxAttempts int, delay time.Duration)
}

// retryMachine drives Pending -> Running -> (Succeeded | RetryPending -> Running ... | Failed).
type retryMachine struct {
	spec        registry.CommandSpec
	maxAttempts int
	attempt     int
	state       attemptState
	last        *Result
}

// RunWithRetry runs spec with runner until an attempt succeeds or the attempts are exhausted.
// Spawn failures and cancelled runs are never retried. The returned result is the final attempt's,
// with Attempts set to the number of attempts made.
func RunWithRetry(ctx context.Context, runner Runner, spec registry.CommandSpec, obs AttemptObserver) *Result {
	logger := ctxlog.Logger(ctx).With("command", spec.Name)

	m := &retryMachine{
		spec:        spec,
		maxAttempts: spec.MaxAttempts(),
		state:       statePending,
	}

	for !m.state.terminal() {
		prev := m.state

		switch m.state {
		case statePending:
			m.state = stateRunning
		case stateRunning:
			m.attempt++

			if obs.Started != nil {
				obs.Started(m.attempt, m.maxAttempts)
			}

			m.last = runner.Run(ctx, spec)
			m.last.Attempts = m.attempt
			m.state = m.next(ctx)
		case stateRetryPending:
			if obs.Retrying != nil {
				obs.Retrying(m.last, m.attempt+1, m.maxAttempts, spec.RetryDelay)
			}

			if !sleepCtx(ctx, spec.RetryDelay) {
				m.state = stateFailed
				break
			}

			m.state = stateRunning
		case stateSucceeded, stateFailed:
		}

		logger.Debug("retry state", "from", prev.String(), "to", m.state.String(), "attempt", m.attempt)
	}

	return m.last
}

// next decides the state that follows a finished attempt.
func (m *retryMachine) next(ctx context.Context) attemptState {
	switch {
	case m.last.Success:
		return stateSucceeded
	case m.attempt >= m.maxAttempts:
		return stateFailed
	case ctx.Err() != nil:
		return stateFailed
	case m.last.Kind == KindSpawn || m.last.Kind == KindInterrupted:
		return stateFailed
	default:
		return stateRetryPending
	}
}

// sleepCtx waits for d or until ctx is done. It reports whether the full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
