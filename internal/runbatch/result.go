// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"errors"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/registry"
)

// ExitCodeTimeout is the exit code recorded for commands killed by a timeout.
const ExitCodeTimeout = -1

var (
	// ErrTimeoutExceeded is returned when a command exceeds its timeout.
	ErrTimeoutExceeded = errors.New("timeout exceeded")
	// ErrGlobalTimeout is the cancellation cause when the run-wide deadline passes.
	ErrGlobalTimeout = errors.New("global timeout exceeded")
	// ErrCouldNotStartProcess is returned when the process could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrCommandFailed is returned when a command exits with a non-zero status.
	ErrCommandFailed = errors.New("command exited with non-zero status")
	// ErrInterrupted is the cancellation cause when the user interrupts the run.
	ErrInterrupted = errors.New("interrupted")
	// ErrDependencyFailed is recorded on commands skipped because a dependency did not succeed.
	ErrDependencyFailed = errors.New("dependency did not succeed")
	// ErrBatchAborted is recorded on commands skipped because an earlier failure aborted the batch.
	ErrBatchAborted = errors.New("batch aborted by an earlier failure")
	// ErrUnknownCommand is returned when a plan names a command missing from the registry.
	ErrUnknownCommand = errors.New("plan references unknown command")
)

// Status is the terminal state of a command in a run.
type Status int

const (
	// StatusUnknown is the zero value.
	StatusUnknown Status = iota
	// StatusSuccess means the command exited with code 0.
	StatusSuccess
	// StatusError means the final attempt failed.
	StatusError
	// StatusSkipped means the command was never started during a real run.
	StatusSkipped
	// StatusNotRun means the command was planned during a dry run.
	StatusNotRun
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusSkipped:
		return "skipped"
	case StatusNotRun:
		return "not-run"
	default:
		return "unknown"
	}
}

// FailureKind classifies why a command failed.
type FailureKind int

const (
	// KindNone means the command did not fail.
	KindNone FailureKind = iota
	// KindExecution means the process ran and exited non-zero.
	KindExecution
	// KindTimeout means the process was killed by its timeout or the global deadline.
	KindTimeout
	// KindSpawn means the process could not be started, or its working directory is missing.
	KindSpawn
	// KindInterrupted means the process was killed because the run was interrupted.
	KindInterrupted
)

// String returns the string representation of the FailureKind.
func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindExecution:
		return "execution"
	case KindTimeout:
		return "timeout"
	case KindSpawn:
		return "spawn"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Result represents the outcome of one command in a run.
// It is written once by the goroutine that ran the command and never modified afterwards.
type Result struct {
	Name      string        // Command name
	Command   string        // Shell command line
	Level     int           // Plan level the command ran in
	Status    Status        // Terminal status
	Kind      FailureKind   // Failure classification, KindNone on success
	ExitCode  int           // Exit code of the final attempt, -1 for timeouts and spawn errors
	Success   bool          // True when the final attempt exited with code 0
	StdOut    []byte        // Captured standard output of the final attempt
	StdErr    []byte        // Captured standard error of the final attempt
	Truncated bool          // Output exceeded the capture limit and was cut
	Duration  time.Duration // Wall-clock duration of the final attempt
	Timestamp time.Time     // Start time of the final attempt
	Attempts  int           // Attempts made, 0 for skipped and dry-run commands
	Error     error         // Failure or skip reason
}

// Executed reports whether at least one attempt was made.
func (r *Result) Executed() bool {
	return r.Attempts > 0
}

// Failed reports whether the command ran and its final attempt failed.
func (r *Result) Failed() bool {
	return r.Status == StatusError
}

// Results is a slice of Result pointers.
type Results []*Result

// HasError reports whether any result failed.
func (r Results) HasError() bool {
	for _, v := range r {
		if v.Failed() {
			return true
		}
	}

	return false
}

func skippedResult(spec registry.CommandSpec, level int, reason error) *Result {
	return &Result{
		Name:      spec.Name,
		Command:   spec.Command,
		Level:     level,
		Status:    StatusSkipped,
		ExitCode:  0,
		Timestamp: time.Now(),
		Error:     reason,
	}
}

func notRunResult(spec registry.CommandSpec, level int) *Result {
	return &Result{
		Name:     spec.Name,
		Command:  spec.Command,
		Level:    level,
		Status:   StatusNotRun,
		ExitCode: 0,
	}
}
