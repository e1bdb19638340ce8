// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package validate provides the validate command, which checks a batch without running it.
package validate

import (
	"context"
	"fmt"

	"github.com/DonkRonk17/batchrunner/cmd/batch"
	"github.com/DonkRonk17/batchrunner/internal/color"
	"github.com/urfave/cli/v3"
)

// ValidateCmd checks a batch for missing fields, duplicate names, unknown or self dependencies and cycles.
var ValidateCmd = NewCommand()

// NewCommand builds a new instance of the command with its own flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check a batch for errors without running it",
		Description: `Load a batch and report every problem found in its command definitions:
missing names or command lines, duplicate names, unknown dependencies, self dependencies and cycles.
Exits with code 2 when the batch is invalid.`,
		Flags:  batch.Flags(),
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer

	b, err := batch.Load(ctx, cmd)
	if err != nil {
		return batch.ConfigError(err)
	}

	res := b.Check()
	if !res.Valid() {
		for _, e := range res.Errors {
			fmt.Fprintf(out, "%s %s\n", color.Colorize("✗", color.FgRed), e) //nolint:errcheck
		}

		return cli.Exit(fmt.Sprintf("%s: %d validation error(s)", b.Source.Name, len(res.Errors)), batch.ExitConfig)
	}

	fmt.Fprintf(out, "%s %s: %d commands are valid\n", //nolint:errcheck
		color.Colorize("✓", color.FgGreen), b.Source.Name, b.Registry.Len())

	return nil
}
