// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for the module.
package cmd

import (
	"fmt"
	"os"

	"github.com/DonkRonk17/batchrunner"
	"github.com/DonkRonk17/batchrunner/cmd/history"
	"github.com/DonkRonk17/batchrunner/cmd/planview"
	"github.com/DonkRonk17/batchrunner/cmd/run"
	"github.com/DonkRonk17/batchrunner/cmd/schema"
	"github.com/DonkRonk17/batchrunner/cmd/validate"
	"github.com/urfave/cli/v3"
)

// RootCmd is the root command for the CLI.
var RootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		validate.ValidateCmd,
		planview.PlanCmd,
		history.HistoryCmd,
		schema.SchemaCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "batchrunner",
	Version:   fmt.Sprintf("%s (commit: %s)", batchrunner.Version, batchrunner.Commit),
	Description: `batchrunner runs batches of shell commands. Commands may depend on each other;
independent commands run concurrently up to a worker limit, dependent commands wait for the level
before them. Each command can carry its own timeout, retry policy, environment and working directory,
and every run ends with a success/failure report.`,
	Usage:                 "batchrunner run -f batch.yaml",
	Copyright:             "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	EnableShellCompletion: true,
}
