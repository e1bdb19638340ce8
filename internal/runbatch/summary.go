// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"time"

	"github.com/DonkRonk17/batchrunner/internal/signalbroker"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
	percent         = 100
)

// NotAttempted is a planned command whose level never started because the batch
// was aborted, interrupted or ran out of time. It has no result.
type NotAttempted struct {
	Name    string
	Command string
	Level   int
	Reason  error
}

// Summary is a read-only view over the results of one run.
// Statistics are computed from the stored results on each call.
type Summary struct {
	results      Results
	byName       map[string]*Result
	notAttempted []NotAttempted
	planned      int
	start       time.Time
	end         time.Time
	mode        string
	levels      int
	maxRetries  int
	dryRun      bool
	aborted     bool
	abortedBy   string
	interrupted bool
	timedOut    bool
}

// Results returns the results in plan order.
func (s *Summary) Results() Results {
	out := make(Results, len(s.results))
	copy(out, s.results)

	return out
}

// Result returns the result of the named command.
func (s *Summary) Result(name string) (*Result, bool) {
	r, ok := s.byName[name]
	return r, ok
}

// Total returns the number of commands with a result. Commands of levels that never
// started are not counted, see NotAttempted.
func (s *Summary) Total() int {
	return len(s.results)
}

// Planned returns the number of commands in the plan.
func (s *Summary) Planned() int {
	return s.planned
}

// NotAttempted returns the planned commands that have no result, in plan order.
func (s *Summary) NotAttempted() []NotAttempted {
	out := make([]NotAttempted, len(s.notAttempted))
	copy(out, s.notAttempted)

	return out
}

// Executed returns the number of commands that made at least one attempt.
func (s *Summary) Executed() int {
	return s.count(func(r *Result) bool { return r.Executed() })
}

// Succeeded returns the number of commands whose final attempt succeeded.
func (s *Summary) Succeeded() int {
	return s.count(func(r *Result) bool { return r.Status == StatusSuccess })
}

// Failed returns the number of commands whose final attempt failed.
func (s *Summary) Failed() int {
	return s.count(func(r *Result) bool { return r.Status == StatusError })
}

// Skipped returns the number of commands recorded as skipped within a level that ran.
func (s *Summary) Skipped() int {
	return s.count(func(r *Result) bool { return r.Status == StatusSkipped })
}

// NotRun returns the number of commands planned by a dry run.
func (s *Summary) NotRun() int {
	return s.count(func(r *Result) bool { return r.Status == StatusNotRun })
}

// SuccessRate returns the percentage of all commands that succeeded, 0 for an empty batch.
func (s *Summary) SuccessRate() float64 {
	if s.Total() == 0 {
		return 0
	}

	return float64(s.Succeeded()) / float64(s.Total()) * percent
}

// TotalDuration returns the wall-clock duration of the whole run.
func (s *Summary) TotalDuration() time.Duration {
	return s.end.Sub(s.start)
}

// AvgDuration returns the mean duration of executed commands.
func (s *Summary) AvgDuration() time.Duration {
	n := 0

	var sum time.Duration

	for _, r := range s.results {
		if r.Executed() {
			sum += r.Duration
			n++
		}
	}

	if n == 0 {
		return 0
	}

	return sum / time.Duration(n)
}

// MinDuration returns the shortest duration of an executed command.
func (s *Summary) MinDuration() time.Duration {
	return s.extreme(func(a, b time.Duration) bool { return a < b })
}

// MaxDuration returns the longest duration of an executed command.
func (s *Summary) MaxDuration() time.Duration {
	return s.extreme(func(a, b time.Duration) bool { return a > b })
}

// Success reports whether the run completed with no failures, no abort and no interrupt.
func (s *Summary) Success() bool {
	return s.Failed() == 0 && !s.aborted && !s.interrupted && !s.timedOut
}

// Aborted reports whether a failure with the abort strategy stopped the batch.
func (s *Summary) Aborted() bool {
	return s.aborted
}

// AbortedBy returns the first command whose failure aborted the batch.
func (s *Summary) AbortedBy() string {
	return s.abortedBy
}

// Interrupted reports whether the run was interrupted by a signal.
func (s *Summary) Interrupted() bool {
	return s.interrupted
}

// TimedOut reports whether the global timeout expired during the run.
func (s *Summary) TimedOut() bool {
	return s.timedOut
}

// DryRun reports whether the summary comes from a dry run.
func (s *Summary) DryRun() bool {
	return s.dryRun
}

// Mode returns the execution mode label of the run.
func (s *Summary) Mode() string {
	return s.mode
}

// Levels returns the number of levels in the plan.
func (s *Summary) Levels() int {
	return s.levels
}

// MaxRetries returns the largest number of retries any command was allowed.
func (s *Summary) MaxRetries() int {
	return s.maxRetries
}

// StartTime returns when the run started.
func (s *Summary) StartTime() time.Time {
	return s.start
}

// ExitCode returns the process exit code for the run: 0 success, 1 failures, 130 interrupted.
func (s *Summary) ExitCode() int {
	switch {
	case s.interrupted:
		return signalbroker.ExitCodeInterrupted
	case !s.Success():
		return exitCodeFailure
	default:
		return exitCodeSuccess
	}
}

func (s *Summary) count(pred func(*Result) bool) int {
	n := 0

	for _, r := range s.results {
		if pred(r) {
			n++
		}
	}

	return n
}

func (s *Summary) extreme(better func(a, b time.Duration) bool) time.Duration {
	var (
		best  time.Duration
		found bool
	)

	for _, r := range s.results {
		if !r.Executed() {
			continue
		}

		if !found || better(r.Duration, best) {
			best = r.Duration
			found = true
		}
	}

	return best
}
