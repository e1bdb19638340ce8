// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run provides the run command, which executes a batch and reports the results.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/DonkRonk17/batchrunner/cmd/batch"
	"github.com/DonkRonk17/batchrunner/internal/color"
	"github.com/DonkRonk17/batchrunner/internal/config"
	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
	"github.com/DonkRonk17/batchrunner/internal/history"
	"github.com/DonkRonk17/batchrunner/internal/progress"
	"github.com/DonkRonk17/batchrunner/internal/report"
	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/DonkRonk17/batchrunner/internal/tui"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const (
	timeoutFlag              = "timeout"
	retriesFlag              = "retries"
	retryDelayFlag           = "retry-delay"
	onFailureFlag            = "on-failure"
	continueFlag             = "continue"
	maxWorkersFlag           = "max-workers"
	globalTimeoutFlag        = "global-timeout"
	strictDepsFlag           = "strict-deps"
	dryRunFlag               = "dry-run"
	outputFlag               = "output"
	logFlag                  = "log"
	quietFlag                = "quiet"
	tuiFlag                  = "tui"
	historyFlag              = "history"
	noOutputStdErrFlag       = "no-output-stderr"
	outputStdOutFlag         = "output-stdout"
	outputSuccessDetailsFlag = "output-success-details"

	defaultRetryDelaySeconds = 1.0
	logFilePerm              = 0o644
	logFileFlags             = os.O_CREATE | os.O_APPEND | os.O_WRONLY
	cliExitStr               = ""
)

var (
	// ErrInvalidFlag is returned when a flag value is out of range.
	ErrInvalidFlag = errors.New("invalid flag value")
	// ErrOpenLog is returned when the log file cannot be opened.
	ErrOpenLog = errors.New("failed to open log file")
)

// RunCmd is the command that runs a batch.
var RunCmd = NewCommand()

// NewCommand builds a new instance of the command with its own flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a batch of commands",
		Description: `Run a batch of commands from a file or from the command line.

Structured batches (.yaml, .yml, .json, .hcl) declare named commands with dependencies and
per-command policies; they run level by level with as much parallelism as the dependencies allow.
Plain command lists (one command per line, a YAML or JSON list of strings, or --commands) run one
after another, or all at once with --parallel.

Batch file URLs use Hashicorp's go-getter syntax, which allows for fetching files from various sources.
See https://github.com/hashicorp/go-getter.

Exit codes: 0 success, 1 command failures, 2 invalid configuration, 130 interrupted.`,
		Flags: append(batch.Flags(),
			&cli.FloatFlag{
				Name:  timeoutFlag,
				Usage: "Timeout per command in seconds for commands that do not set one (0: no timeout)",
			},
			&cli.IntFlag{
				Name:  retriesFlag,
				Usage: "Retries per command for commands that do not set any",
			},
			&cli.FloatFlag{
				Name:  retryDelayFlag,
				Usage: "Delay between retries in seconds for commands that do not set one",
				Value: defaultRetryDelaySeconds,
			},
			&cli.StringFlag{
				Name: onFailureFlag,
				Usage: "Batch failure strategy, abort or continue. " +
					"Defaults to the batch file setting, abort for structured batches and continue for command lists",
				Sources: cli.EnvVars("BATCHRUNNER_ON_FAILURE"),
			},
			&cli.BoolFlag{
				Name:  continueFlag,
				Usage: "Shorthand for --on-failure continue",
			},
			&cli.IntFlag{
				Name:        maxWorkersFlag,
				Aliases:     []string{"p"},
				Usage:       "Maximum number of commands running at once",
				DefaultText: fmt.Sprintf("%d", runbatch.DefaultMaxWorkers),
				Sources:     cli.EnvVars("BATCHRUNNER_MAX_WORKERS"),
			},
			&cli.StringFlag{
				Name:    globalTimeoutFlag,
				Usage:   "Deadline for the whole run, in seconds or as a Go duration (e.g. 10m)",
				Sources: cli.EnvVars("BATCHRUNNER_GLOBAL_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:  strictDepsFlag,
				Usage: "Skip commands whose dependencies did not succeed",
			},
			&cli.BoolFlag{
				Name:  dryRunFlag,
				Usage: "Validate and plan the batch and report it without running anything",
			},
			&cli.StringFlag{
				Name:      outputFlag,
				Aliases:   []string{"o", "out"},
				Usage:     "Save results to a file, JSON unless the name ends in .yaml or .yml",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringFlag{
				Name:      logFlag,
				Aliases:   []string{"l"},
				Usage:     "Append log records to a file",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.BoolFlag{
				Name:    quietFlag,
				Aliases: []string{"q"},
				Usage:   "Suppress console output",
			},
			&cli.BoolFlag{
				Name:    tuiFlag,
				Aliases: []string{"t", "interactive"},
				Usage:   "Show live progress in an interactive Terminal User Interface (TUI)",
			},
			&cli.StringFlag{
				Name:      historyFlag,
				Usage:     "Record the run in a SQLite history database at this path",
				TakesFile: true,
				Sources:   cli.EnvVars("BATCHRUNNER_HISTORY"),
			},
			&cli.BoolFlag{
				Name:    outputSuccessDetailsFlag,
				Aliases: []string{"success"},
				Usage:   "Include output details of successful commands in the report",
			},
			&cli.BoolFlag{
				Name:    noOutputStdErrFlag,
				Aliases: []string{"no-stderr"},
				Usage:   "Exclude stderr output from the report",
			},
			&cli.BoolFlag{
				Name:    outputStdOutFlag,
				Aliases: []string{"stdout"},
				Usage:   "Include stdout output in the report",
			},
		),
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer
	fs := config.FsFactory()
	quiet := cmd.Bool(quietFlag)
	useTUI := cmd.Bool(tuiFlag) && !quiet && isTerminal(out)

	logger, closeLog, err := newLogger(fs, cmd.Root().ErrWriter, cmd.String(logFlag), quiet || useTUI)
	if err != nil {
		return batch.ConfigError(err)
	}

	defer closeLog()

	ctx = ctxlog.New(ctx, logger)

	if cmd.Bool(tuiFlag) && !useTUI {
		ctxlog.Warn(ctx, "TUI needs an interactive terminal, using plain output")
	}

	b, err := batch.Load(ctx, cmd)
	if err != nil {
		return batch.ConfigError(err)
	}

	opts, err := options(cmd, b)
	if err != nil {
		return batch.ConfigError(err)
	}

	defaults, err := commandDefaults(cmd)
	if err != nil {
		return batch.ConfigError(err)
	}

	if err := b.WithDefaults(defaults); err != nil {
		return batch.ConfigError(err)
	}

	if res := b.Check(); !res.Valid() {
		return batch.ConfigError(res.Err())
	}

	p, err := b.Plan()
	if err != nil {
		return batch.ConfigError(err)
	}

	var s *runbatch.Summary

	switch {
	case useTUI:
		runner := tui.NewRunner("batchrunner: " + b.Source.Name)
		s, err = runner.Run(ctx, func(ctx context.Context, r progress.Reporter) (*runbatch.Summary, error) {
			opts.Reporter = r
			return runbatch.Execute(ctx, b.Registry, p, opts)
		})
	default:
		if !quiet {
			opts.Reporter = progress.NewWriter(out)
		}

		s, err = runbatch.Execute(ctx, b.Registry, p, opts)
	}

	if s == nil {
		ctxlog.Error(ctx, "batch could not run", "error", err)
		return cli.Exit(cliExitStr, batch.ExitFailure)
	}

	if err != nil {
		ctxlog.Error(ctx, "batch finished with errors", "error", err)
	}

	if !quiet {
		fmt.Fprintln(out) //nolint:errcheck

		outOpts := runbatch.DefaultOutputOptions()
		outOpts.IncludeStdErr = !cmd.Bool(noOutputStdErrFlag)
		outOpts.IncludeStdOut = cmd.Bool(outputStdOutFlag)
		outOpts.ShowSuccessDetails = cmd.Bool(outputSuccessDetailsFlag)

		if err := runbatch.WriteReport(out, s, outOpts); err != nil {
			ctxlog.Error(ctx, "failed to write report", "error", err)
		}
	}

	if name := cmd.String(outputFlag); name != "" {
		if err := report.WriteFile(fs, name, s); err != nil {
			ctxlog.Error(ctx, "failed to save results", "path", name, "error", err)
			return cli.Exit(cliExitStr, batch.ExitFailure)
		}

		if !quiet {
			fmt.Fprintf(out, "\nResults saved to: %s\n", name) //nolint:errcheck
		}
	}

	if path := cmd.String(historyFlag); path != "" {
		// an interrupted run is still recorded
		recordRun(context.WithoutCancel(ctx), path, b.Source.Name, s)
	}

	if code := s.ExitCode(); code != batch.ExitOK {
		return cli.Exit(cliExitStr, code)
	}

	return nil
}

// options resolves the run options. Flags win over the batch file settings.
func options(cmd *cli.Command, b *batch.Batch) (runbatch.Options, error) {
	opts := runbatch.DefaultOptions()
	opts.Mode = b.Mode
	opts.DryRun = cmd.Bool(dryRunFlag)
	opts.AbortOnFailure = !b.Source.Flat()

	var settings *config.Settings
	if b.Source.Definition != nil {
		settings = b.Source.Definition.Settings
	}

	abort, ok, err := settings.AbortOnFailure()
	if err != nil {
		return opts, err //nolint:wrapcheck
	}

	if ok {
		opts.AbortOnFailure = abort
	}

	if settings != nil {
		if settings.MaxWorkers > 0 {
			opts.MaxWorkers = settings.MaxWorkers
		}

		if opts.GlobalTimeout, err = config.ParseDuration(settings.GlobalTimeout); err != nil {
			return opts, fmt.Errorf("settings.global_timeout: %w", err)
		}

		opts.StrictDependencies = settings.StrictDependencies
	}

	if cmd.IsSet(onFailureFlag) {
		abort, _, err := (&config.Settings{OnFailure: cmd.String(onFailureFlag)}).AbortOnFailure()
		if err != nil {
			return opts, err //nolint:wrapcheck
		}

		opts.AbortOnFailure = abort
	}

	if cmd.Bool(continueFlag) {
		opts.AbortOnFailure = false
	}

	if cmd.IsSet(maxWorkersFlag) {
		n := cmd.Int(maxWorkersFlag)
		if n < 1 {
			return opts, fmt.Errorf("%w: --%s must be at least 1, got %d", ErrInvalidFlag, maxWorkersFlag, n)
		}

		opts.MaxWorkers = n
	}

	if cmd.IsSet(globalTimeoutFlag) {
		if opts.GlobalTimeout, err = config.ParseDuration(cmd.String(globalTimeoutFlag)); err != nil {
			return opts, fmt.Errorf("--%s: %w", globalTimeoutFlag, err)
		}
	}

	if cmd.Bool(strictDepsFlag) {
		opts.StrictDependencies = true
	}

	return opts, nil
}

// commandDefaults returns the command line policies, applied beneath whatever the batch file sets.
// --timeout counts only when given, so the file's own timeouts win.
func commandDefaults(cmd *cli.Command) (config.CommandDefaults, error) {
	var defs config.CommandDefaults

	if cmd.IsSet(timeoutFlag) {
		timeout, err := seconds(timeoutFlag, cmd.Float(timeoutFlag))
		if err != nil {
			return defs, err
		}

		defs.Timeout = timeout.String()
	}

	delay, err := seconds(retryDelayFlag, cmd.Float(retryDelayFlag))
	if err != nil {
		return defs, err
	}

	defs.RetryDelay = delay.String()

	retries := cmd.Int(retriesFlag)
	if retries < 0 {
		return defs, fmt.Errorf("%w: --%s must not be negative, got %d", ErrInvalidFlag, retriesFlag, retries)
	}

	defs.RetryCount = retries

	return defs, nil
}

func seconds(flag string, f float64) (time.Duration, error) {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: --%s must be a non-negative number of seconds, got %v", ErrInvalidFlag, flag, f)
	}

	return time.Duration(f * float64(time.Second)), nil
}

// newLogger builds the run logger: pretty console records on console unless noConsole,
// plus plain text records appended to logPath when set.
func newLogger(fs afero.Fs, console io.Writer, logPath string, noConsole bool) (*slog.Logger, func(), error) {
	opts := ctxlog.Options{Console: console, Colour: color.Enabled()}
	if noConsole {
		opts.Console = nil
	}

	closer := func() {}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "." {
			if err := fs.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
				return nil, closer, errors.Join(ErrOpenLog, err)
			}
		}

		f, err := fs.OpenFile(logPath, logFileFlags, logFilePerm)
		if err != nil {
			return nil, closer, errors.Join(ErrOpenLog, err)
		}

		opts.File = f
		closer = func() { f.Close() } //nolint:errcheck
	}

	return ctxlog.NewLogger(opts), closer, nil
}

func recordRun(ctx context.Context, path, source string, s *runbatch.Summary) {
	store, err := history.Open(ctx, path)
	if err != nil {
		ctxlog.Error(ctx, "failed to open history", "path", path, "error", err)
		return
	}

	defer store.Close() //nolint:errcheck

	id, err := store.SaveRun(ctx, source, s)
	if err != nil {
		ctxlog.Error(ctx, "failed to record run", "path", path, "error", err)
		return
	}

	ctxlog.Info(ctx, "run recorded", "id", id, "history", path)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
