// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package registry

import (
	"errors"
	"maps"
	"slices"
	"time"
)

// DefaultRetryCount is the number of retries used when a command asks for the retry strategy
// without setting RetryCount.
const DefaultRetryCount = 1

// FailureStrategy decides what happens to the batch when a command's final attempt fails.
type FailureStrategy int

const (
	// FailureStrategyUnset means the command inherits the batch default.
	FailureStrategyUnset FailureStrategy = iota
	// FailureStrategyAbort stops the batch after the current level completes.
	FailureStrategyAbort
	// FailureStrategyContinue records the failure and keeps running later levels.
	FailureStrategyContinue
	// FailureStrategyRetry enables the retry loop, then falls back to RetryFallback.
	FailureStrategyRetry
)

const (
	failureStrategyAbortStr    = "abort"
	failureStrategyContinueStr = "continue"
	failureStrategyRetryStr    = "retry"
	failureStrategyUnsetStr    = ""
	failureStrategyUnknownStr  = "unknown"
)

var (
	// ErrFailureStrategyUnknown is returned when a failure strategy string is not recognised.
	ErrFailureStrategyUnknown = errors.New("unknown failure strategy")
)

// String returns the string representation of the FailureStrategy.
func (f FailureStrategy) String() string {
	switch f {
	case FailureStrategyUnset:
		return failureStrategyUnsetStr
	case FailureStrategyAbort:
		return failureStrategyAbortStr
	case FailureStrategyContinue:
		return failureStrategyContinueStr
	case FailureStrategyRetry:
		return failureStrategyRetryStr
	default:
		return failureStrategyUnknownStr
	}
}

// NewFailureStrategy creates a FailureStrategy from a string.
// The empty string maps to FailureStrategyUnset.
func NewFailureStrategy(s string) (FailureStrategy, error) {
	switch s {
	case failureStrategyUnsetStr:
		return FailureStrategyUnset, nil
	case failureStrategyAbortStr:
		return FailureStrategyAbort, nil
	case failureStrategyContinueStr:
		return FailureStrategyContinue, nil
	case failureStrategyRetryStr:
		return FailureStrategyRetry, nil
	default:
		return FailureStrategy(-1), ErrFailureStrategyUnknown
	}
}

// CommandSpec is the immutable description of one unit of work.
// Zero values are the documented defaults: no timeout, no retries, inherited failure strategy.
type CommandSpec struct {
	Name            string            // Unique identifier within the batch
	Command         string            // Shell command line to execute
	DependsOn       []string          // Names that must reach a terminal state in an earlier level
	WorkingDir      string            // Working directory, empty means the current directory
	Env             map[string]string // Environment overrides
	IsolateEnv      bool              // Do not inherit the process environment
	Timeout         time.Duration     // Maximum wall-clock duration per attempt, zero is unbounded
	RetryCount      int               // Additional attempts after the first failure
	RetryDelay      time.Duration     // Constant delay between attempts
	FailureStrategy FailureStrategy   // Batch behaviour when the final attempt fails
	RetryFallback   FailureStrategy   // Strategy applied once retries are exhausted
}

// Retries reports whether the retry loop is active for this command.
func (c CommandSpec) Retries() bool {
	return c.FailureStrategy == FailureStrategyRetry || c.RetryCount > 0
}

// MaxAttempts returns the total number of attempts the command may use.
func (c CommandSpec) MaxAttempts() int {
	if !c.Retries() {
		return 1
	}

	if c.RetryCount <= 0 {
		return 1 + DefaultRetryCount
	}

	return 1 + c.RetryCount
}

// EffectiveStrategy resolves the strategy applied to the batch when the command ends in failure.
// Unset values fall back to the batch default, which must be abort or continue.
func (c CommandSpec) EffectiveStrategy(batchDefault FailureStrategy) FailureStrategy {
	s := c.FailureStrategy
	if s == FailureStrategyRetry {
		s = c.RetryFallback
	}

	if s == FailureStrategyAbort || s == FailureStrategyContinue {
		return s
	}

	return batchDefault
}

// Clone returns a deep copy of the command spec.
func (c CommandSpec) Clone() CommandSpec {
	c.DependsOn = slices.Clone(c.DependsOn)
	c.Env = maps.Clone(c.Env)

	return c
}
