// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"strconv"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
	"github.com/DonkRonk17/batchrunner/internal/plan"
	"github.com/DonkRonk17/batchrunner/internal/progress"
	"github.com/DonkRonk17/batchrunner/internal/registry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// LevelExecutor runs one plan level at a time on a worker pool shared by all levels.
type LevelExecutor struct {
	runner Runner
	pool   *semaphore.Weighted
	report func(progress.Event)
	sink   func(*Result)
}

// NewLevelExecutor creates a LevelExecutor allowing at most maxWorkers concurrent commands.
// Every terminal result is passed to sink as soon as it is known; report receives progress events.
func NewLevelExecutor(runner Runner, maxWorkers int, report func(progress.Event), sink func(*Result)) *LevelExecutor {
	if report == nil {
		report = func(progress.Event) {}
	}

	if sink == nil {
		sink = func(*Result) {}
	}

	return &LevelExecutor{
		runner: runner,
		pool:   semaphore.NewWeighted(int64(max(maxWorkers, 1))),
		report: report,
		sink:   sink,
	}
}

// RunLevel submits every command of the level to the pool and waits for all of them.
// skip returns a non-nil reason to record a command as skipped without starting it.
// Results are returned in level order.
func (e *LevelExecutor) RunLevel(
	ctx context.Context,
	lvl plan.Level,
	specs map[string]registry.CommandSpec,
	skip func(registry.CommandSpec) error,
) Results {
	logger := ctxlog.Logger(ctx).With("level", lvl.Index)
	out := make(Results, len(lvl.Commands))

	// Used as a WaitGroup: every goroutine returns nil, failures live in the results,
	// and there is no derived context so one failure never cancels its siblings.
	// The shared semaphore bounds concurrency across levels, so SetLimit is not used.
	var g errgroup.Group

	for i, name := range lvl.Commands {
		spec := specs[name]

		if skip != nil {
			if reason := skip(spec); reason != nil {
				logger.Info("skipping command", "command", name, "reason", reason)
				out[i] = e.finish(skippedResult(spec, lvl.Index, reason))

				continue
			}
		}

		if err := e.pool.Acquire(ctx, 1); err != nil {
			out[i] = e.finish(skippedResult(spec, lvl.Index, runCause(ctx)))
			continue
		}

		g.Go(func() error {
			defer e.pool.Release(1)

			res := RunWithRetry(ctx, e.runner, spec, e.observer(spec, lvl.Index))
			res.Level = lvl.Index
			out[i] = e.finish(res)

			return nil
		})
	}

	_ = g.Wait() // always nil

	return out
}

func (e *LevelExecutor) finish(r *Result) *Result {
	e.sink(r)
	e.report(resultEvent(r))

	return r
}

func (e *LevelExecutor) observer(spec registry.CommandSpec, level int) AttemptObserver {
	return AttemptObserver{
		Started: func(attempt, maxAttempts int) {
			e.report(progress.Event{
				Command: spec.Name,
				Level:   level,
				Type:    progress.EventStarted,
				Attempt: attempt,
				Data:    progress.EventData{CommandLine: spec.Command, MaxAttempts: maxAttempts},
			})
		},
		Retrying: func(failed *Result, next, maxAttempts int, delay time.Duration) {
			e.report(progress.Event{
				Command: spec.Name,
				Level:   level,
				Type:    progress.EventRetrying,
				Attempt: next,
				Message: failureMessage(failed),
				Data: progress.EventData{
					CommandLine: spec.Command,
					MaxAttempts: maxAttempts,
					RetryDelay:  delay,
					ExitCode:    failed.ExitCode,
					Error:       failed.Error,
					Duration:    failed.Duration,
				},
			})
		},
	}
}

// resultEvent builds the terminal progress event for a result.
func resultEvent(r *Result) progress.Event {
	ev := progress.Event{
		Command: r.Name,
		Level:   r.Level,
		Attempt: r.Attempts,
		Data: progress.EventData{
			ExitCode: r.ExitCode,
			Error:    r.Error,
			Duration: r.Duration,
		},
	}

	switch r.Status {
	case StatusSuccess:
		ev.Type = progress.EventCompleted
		ev.Message = "Command completed"
	case StatusError:
		ev.Type = progress.EventFailed
		ev.Message = failureMessage(r)
	default:
		ev.Type = progress.EventSkipped
		if r.Error != nil {
			ev.Message = r.Error.Error()
		}
	}

	return ev
}

func failureMessage(r *Result) string {
	switch r.Kind {
	case KindTimeout:
		return "Command timed out"
	case KindSpawn:
		return "Command could not be started"
	case KindInterrupted:
		return "Command interrupted"
	case KindNone, KindExecution:
	}

	return "Command failed (exit code " + strconv.Itoa(r.ExitCode) + ")"
}
