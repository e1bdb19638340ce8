// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package batch holds the input flags shared by the subcommands and turns them into a
// command registry and an execution plan.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/DonkRonk17/batchrunner/internal/config"
	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
	"github.com/DonkRonk17/batchrunner/internal/plan"
	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/DonkRonk17/batchrunner/internal/validate"
	"github.com/urfave/cli/v3"
)

const (
	FileFlag       = "file"
	CommandsFlag   = "commands"
	ParallelFlag   = "parallel"
	SequentialFlag = "sequential"
)

// Exit codes of the batchrunner process.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

var (
	// ErrNoInput is returned when neither a file nor inline commands are given.
	ErrNoInput = errors.New("no commands given: use --file or --commands")
	// ErrConflictingInput is returned when both a file and inline commands are given.
	ErrConflictingInput = errors.New("--file and --commands are mutually exclusive")
	// ErrConflictingMode is returned when both --parallel and --sequential are set.
	ErrConflictingMode = errors.New("--parallel and --sequential are mutually exclusive")
	// ErrParallelStructured is returned when --parallel is used with a structured batch.
	ErrParallelStructured = errors.New("--parallel applies to plain command lists; structured batches run by dependency level")
)

// Flags returns the input flags. A new slice is built on every call so commands do not share flag state.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FileFlag,
			Aliases: []string{"f"},
			Usage: "Batch file to load: .yaml, .yml, .json, .hcl, or one command per line. " +
				"Supports Hashicorp's go-getter syntax for remote sources.",
			TakesFile: true,
			Sources:   cli.EnvVars("BATCHRUNNER_FILE"),
			OnlyOnce:  true,
		},
		&cli.StringSliceFlag{
			Name:    CommandsFlag,
			Aliases: []string{"c"},
			Usage:   "Command line to run. Specify multiple times for multiple commands.",
		},
		&cli.BoolFlag{
			Name:  ParallelFlag,
			Usage: "Run a plain command list concurrently (default: one after another)",
		},
		&cli.BoolFlag{
			Name:  SequentialFlag,
			Usage: "Run one command at a time, in plan order",
		},
	}
}

// Batch is a loaded batch ready to be validated and planned.
type Batch struct {
	Source   *config.Source
	Registry *registry.Registry
	Mode     string
}

// Load reads the input named by the flags of cmd.
func Load(ctx context.Context, cmd *cli.Command) (*Batch, error) {
	file := cmd.String(FileFlag)
	lines := cmd.StringSlice(CommandsFlag)

	var (
		src *config.Source
		err error
	)

	switch {
	case file != "" && len(lines) > 0:
		return nil, ErrConflictingInput
	case file != "":
		src, err = config.Load(ctx, file)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
	case len(lines) > 0:
		src = config.Inline(lines)
	default:
		return nil, ErrNoInput
	}

	mode, err := resolveMode(src, cmd.Bool(ParallelFlag), cmd.Bool(SequentialFlag))
	if err != nil {
		return nil, err
	}

	reg, err := src.Registry()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name, err)
	}

	ctxlog.Debug(ctx, "batch loaded", "source", src.Name, "commands", reg.Len(), "mode", mode)

	return &Batch{Source: src, Registry: reg, Mode: mode}, nil
}

func resolveMode(src *config.Source, parallel, sequential bool) (string, error) {
	switch {
	case parallel && sequential:
		return "", ErrConflictingMode
	case src.Flat() && parallel:
		return runbatch.ModeParallel, nil
	case src.Flat(), sequential:
		return runbatch.ModeSequential, nil
	case parallel:
		return "", ErrParallelStructured
	default:
		return runbatch.ModeDependency, nil
	}
}

// WithDefaults rebuilds the registry with defs beneath the policies the batch file sets.
func (b *Batch) WithDefaults(defs config.CommandDefaults) error {
	reg, err := b.Source.RegistryWith(defs)
	if err != nil {
		return fmt.Errorf("%s: %w", b.Source.Name, err)
	}

	b.Registry = reg

	return nil
}

// Check validates the registry.
func (b *Batch) Check() validate.Result {
	return validate.Check(b.Registry)
}

// Plan builds the execution plan for the batch mode.
func (b *Batch) Plan() (*plan.ExecutionPlan, error) {
	switch {
	case b.Mode == runbatch.ModeParallel:
		return plan.Parallel(b.Registry), nil
	case b.Source.Flat():
		return plan.Sequential(b.Registry), nil
	}

	p, err := plan.Build(b.Registry)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if b.Mode == runbatch.ModeSequential {
		return plan.Serialize(p), nil
	}

	return p, nil
}

// ConfigError returns err as a cli exit error with the configuration exit code.
func ConfigError(err error) error {
	return cli.Exit("Error: "+err.Error(), ExitConfig)
}
