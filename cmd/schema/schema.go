// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package schema provides the schema command, which documents the batch file format.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/DonkRonk17/batchrunner/cmd/batch"
	"github.com/DonkRonk17/batchrunner/internal/schema"
	"github.com/urfave/cli/v3"
)

const formatFlag = "format"

// SchemaCmd prints the batch file schema.
var SchemaCmd = NewCommand()

// NewCommand builds a new instance of the command with its own flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Display the batch file schema",
		Description: `Print the JSON Schema of batch files, for editor validation of YAML and JSON batches,
or a Markdown field reference.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    formatFlag,
				Aliases: []string{"f"},
				Usage:   "Output format: json or markdown",
				Value:   "json",
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(_ context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer

	var err error

	switch f := strings.ToLower(cmd.String(formatFlag)); f {
	case "json":
		err = schema.WriteJSON(out)
	case "markdown", "md":
		err = schema.WriteMarkdown(out)
	default:
		return cli.Exit(fmt.Sprintf("Invalid format: %s. Valid formats: json, markdown", f), batch.ExitConfig)
	}

	if err != nil {
		return cli.Exit(err.Error(), batch.ExitFailure)
	}

	return nil
}
