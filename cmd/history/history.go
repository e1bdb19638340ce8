// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package history provides the history command, which lists runs recorded with run --history.
package history

import (
	"context"
	"fmt"
	"io"

	"github.com/DonkRonk17/batchrunner/cmd/batch"
	"github.com/DonkRonk17/batchrunner/internal/color"
	store "github.com/DonkRonk17/batchrunner/internal/history"
	"github.com/urfave/cli/v3"
)

const (
	dbFlag       = "db"
	limitFlag    = "limit"
	runArg       = "run"
	defaultLimit = 20
	timeFormat   = "2006-01-02 15:04:05"
)

// HistoryCmd lists recorded runs, or the commands of one run.
var HistoryCmd = NewCommand()

// NewCommand builds a new instance of the command with its own flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List runs recorded in a history database",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      runArg,
				UsageText: "[RUN-ID]",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      dbFlag,
				Usage:     "Path of the SQLite history database",
				TakesFile: true,
				Required:  true,
				Sources:   cli.EnvVars("BATCHRUNNER_HISTORY"),
			},
			&cli.IntFlag{
				Name:  limitFlag,
				Usage: "Maximum number of runs to list, 0 for all",
				Value: defaultLimit,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	s, err := store.Open(ctx, cmd.String(dbFlag))
	if err != nil {
		return batch.ConfigError(err)
	}

	defer s.Close() //nolint:errcheck

	out := cmd.Root().Writer

	if id := cmd.StringArg(runArg); id != "" {
		cmds, err := s.Commands(ctx, id)
		if err != nil {
			return cli.Exit(err.Error(), batch.ExitFailure)
		}

		writeCommands(out, cmds)

		return nil
	}

	runs, err := s.ListRuns(ctx, cmd.Int(limitFlag))
	if err != nil {
		return cli.Exit(err.Error(), batch.ExitFailure)
	}

	writeRuns(out, runs)

	return nil
}

func writeRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded") //nolint:errcheck
		return
	}

	for _, r := range runs {
		status := color.Colorize("ok", color.FgGreen)

		switch {
		case r.Interrupted:
			status = color.Colorize("interrupted", color.FgYellow)
		case r.DryRun:
			status = color.Colorize("dry-run", color.FgCyan)
		case r.ExitCode != 0:
			status = color.Colorize("failed", color.FgRed)
		}

		fmt.Fprintf(w, "%s  %s  %-11s %d/%d ok  %.2fs  %s (%s)\n", //nolint:errcheck
			r.ID, r.StartedAt.Format(timeFormat), status, r.Succeeded, r.Total+r.NotAttempted,
			r.Duration.Seconds(), r.Source, r.Mode)
	}
}

func writeCommands(w io.Writer, cmds []store.CommandRecord) {
	for _, c := range cmds {
		fmt.Fprintf(w, "%-8s %s (exit code: %d, attempts: %d) [%.1fms]\n", //nolint:errcheck
			c.Status, c.Name, c.ExitCode, c.Attempts, float64(c.Duration.Microseconds())/1000) //nolint:mnd

		if c.Error != "" {
			fmt.Fprintf(w, "         Error: %s\n", c.Error) //nolint:errcheck
		}
	}
}
