// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
	"github.com/DonkRonk17/batchrunner/internal/plan"
	"github.com/DonkRonk17/batchrunner/internal/progress"
	"github.com/DonkRonk17/batchrunner/internal/registry"
)

// DefaultMaxWorkers is the size of the worker pool when Options.MaxWorkers is not set.
const DefaultMaxWorkers = 10

// Mode labels used in summaries.
const (
	ModeDependency = "dependency"
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
)

// ErrNilPlan is returned when Execute is called without a plan.
var ErrNilPlan = errors.New("execution plan is nil")

// Options configures one run. The zero value continues on failure; use DefaultOptions for the abort default.
type Options struct {
	DryRun             bool              // Build results without spawning any process
	AbortOnFailure     bool              // Batch default strategy: abort when true, continue when false
	MaxWorkers         int               // Worker pool size, DefaultMaxWorkers when zero
	GlobalTimeout      time.Duration     // Run-wide deadline, zero is unbounded
	StrictDependencies bool              // Skip commands whose dependencies did not succeed
	Runner             Runner            // Attempt runner, an OSRunner when nil
	Reporter           progress.Reporter // Progress reporter, none when nil
	Mode               string            // Label recorded in the summary
}

// DefaultOptions returns the options used by the command line: abort on failure with 10 workers.
func DefaultOptions() Options {
	return Options{
		AbortOnFailure: true,
		MaxWorkers:     DefaultMaxWorkers,
		Mode:           ModeDependency,
	}
}

// Execute runs the plan against the registry and returns the summary.
// Per-command failures are recorded in the summary, never returned as errors. The error is
// non-nil only when the plan cannot be executed at all.
func Execute(ctx context.Context, reg *registry.Registry, p *plan.ExecutionPlan, opts Options) (*Summary, error) {
	if p == nil {
		return nil, ErrNilPlan
	}

	specs := make(map[string]registry.CommandSpec, p.CommandCount())
	maxRetries := 0

	for _, name := range p.Names() {
		spec, ok := reg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
		}

		specs[name] = spec
		maxRetries = max(maxRetries, spec.MaxAttempts()-1)
	}

	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}

	if opts.Runner == nil {
		opts.Runner = NewOSRunner(ctx)
	}

	if opts.Reporter == nil {
		opts.Reporter = progress.NewNullReporter()
	}

	if opts.GlobalTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeoutCause(ctx, opts.GlobalTimeout, ErrGlobalTimeout)
		defer cancel()
	}

	logger := ctxlog.Logger(ctx)

	s := &Summary{
		start:      time.Now(),
		mode:       opts.Mode,
		levels:     p.Len(),
		planned:    p.CommandCount(),
		maxRetries: maxRetries,
		dryRun:     opts.DryRun,
	}

	em := &emitter{r: opts.Reporter, total: p.CommandCount()}
	em.report(progress.Event{Type: progress.EventPlanned, Data: progress.EventData{Levels: levelNames(p)}})

	agg := NewAggregator(ctx, p.CommandCount())

	if opts.DryRun {
		for _, lvl := range p.Levels {
			for _, name := range lvl.Commands {
				agg.Add(notRunResult(specs[name], lvl.Index))
			}
		}
	} else {
		out := runLevels(ctx, p, specs, opts, em, agg)
		s.aborted, s.abortedBy, s.notAttempted = out.aborted, out.abortedBy, out.notAttempted
	}

	s.end = time.Now()

	cause := context.Cause(ctx)
	s.interrupted = errors.Is(cause, ErrInterrupted) || errors.Is(cause, context.Canceled)
	s.timedOut = errors.Is(cause, ErrGlobalTimeout) || errors.Is(cause, context.DeadlineExceeded)

	collected, rejected := agg.Close()
	if len(rejected) > 0 {
		logger.Error("duplicate results were rejected", "commands", rejected)
	}

	s.byName = collected
	s.results = make(Results, 0, len(collected))

	for _, name := range p.Names() {
		if r, ok := collected[name]; ok {
			s.results = append(s.results, r)
		}
	}

	logger.Info("batch finished",
		"total", s.Total(),
		"succeeded", s.Succeeded(),
		"failed", s.Failed(),
		"skipped", s.Skipped(),
		"not_attempted", len(s.notAttempted),
		"duration", s.TotalDuration(),
	)

	return s, nil
}

type levelsOutcome struct {
	aborted      bool
	abortedBy    string
	notAttempted []NotAttempted
}

// runLevels executes the levels in order. Once the batch is aborted or the context is done,
// the commands of the remaining levels get no result and are listed as not attempted.
func runLevels(
	ctx context.Context,
	p *plan.ExecutionPlan,
	specs map[string]registry.CommandSpec,
	opts Options,
	em *emitter,
	agg *Aggregator,
) levelsOutcome {
	logger := ctxlog.Logger(ctx)

	batchDefault := registry.FailureStrategyContinue
	if opts.AbortOnFailure {
		batchDefault = registry.FailureStrategyAbort
	}

	var out levelsOutcome

	// Written only between level barriers.
	status := make(map[string]Status, len(specs))

	var skip func(registry.CommandSpec) error
	if opts.StrictDependencies {
		skip = func(spec registry.CommandSpec) error {
			for _, dep := range spec.DependsOn {
				if status[dep] != StatusSuccess {
					return fmt.Errorf("%w: %s", ErrDependencyFailed, dep)
				}
			}

			return nil
		}
	}

	exec := NewLevelExecutor(opts.Runner, opts.MaxWorkers, em.report, agg.Add)

	for _, lvl := range p.Levels {
		if out.aborted || ctx.Err() != nil {
			reason := ErrBatchAborted
			if ctx.Err() != nil {
				reason = runCause(ctx)
			}

			for _, name := range lvl.Commands {
				out.notAttempted = append(out.notAttempted, NotAttempted{
					Name:    name,
					Command: specs[name].Command,
					Level:   lvl.Index,
					Reason:  reason,
				})
				em.report(progress.Event{
					Type:    progress.EventSkipped,
					Command: name,
					Level:   lvl.Index,
					Message: "not attempted: " + reason.Error(),
					Data:    progress.EventData{Error: reason},
				})
			}

			continue
		}

		logger.Debug("starting level", "level", lvl.Index, "commands", lvl.Commands)
		em.report(progress.Event{
			Type:    progress.EventLevelStarted,
			Level:   lvl.Index,
			Message: fmt.Sprintf("%d command(s)", len(lvl.Commands)),
		})

		results := exec.RunLevel(ctx, lvl, specs, skip)

		em.report(progress.Event{Type: progress.EventLevelCompleted, Level: lvl.Index})

		for _, r := range results {
			status[r.Name] = r.Status

			if out.aborted || !r.Failed() || ctx.Err() != nil {
				continue
			}

			if specs[r.Name].EffectiveStrategy(batchDefault) == registry.FailureStrategyAbort {
				logger.Warn("command failed, aborting batch after this level", "command", r.Name)

				out.aborted, out.abortedBy = true, r.Name
			}
		}
	}

	return out
}

// runCause returns the reason the run context was cancelled.
func runCause(ctx context.Context) error {
	cause := context.Cause(ctx)

	switch {
	case cause == nil, errors.Is(cause, context.Canceled):
		return ErrInterrupted
	case errors.Is(cause, context.DeadlineExceeded):
		return ErrGlobalTimeout
	default:
		return cause
	}
}

func levelNames(p *plan.ExecutionPlan) [][]string {
	out := make([][]string, 0, p.Len())
	for _, l := range p.Levels {
		out = append(out, append([]string(nil), l.Commands...))
	}

	return out
}

// emitter stamps events and keeps the running count of finished commands.
type emitter struct {
	r        progress.Reporter
	total    int
	finished atomic.Int64
}

func (e *emitter) report(ev progress.Event) {
	ev.Timestamp = time.Now()

	if ev.Type.Terminal() {
		ev.Data.Finished = int(e.finished.Add(1))
		ev.Data.Total = e.total
	}

	e.r.Report(ev)
}
