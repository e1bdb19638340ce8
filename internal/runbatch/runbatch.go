// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"

	"github.com/DonkRonk17/batchrunner/internal/registry"
)

// Runner executes a single attempt of a command.
// Implementations must honour ctx cancellation and never return nil.
type Runner interface {
	Run(ctx context.Context, spec registry.CommandSpec) *Result
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, spec registry.CommandSpec) *Result

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, spec registry.CommandSpec) *Result {
	return f(ctx, spec)
}
