// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package planview provides the plan command, which prints the execution levels of a batch.
package planview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/DonkRonk17/batchrunner/cmd/batch"
	"github.com/DonkRonk17/batchrunner/internal/color"
	"github.com/DonkRonk17/batchrunner/internal/plan"
	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/goccy/go-yaml"
	"github.com/urfave/cli/v3"
)

const (
	formatFlag = "format"
	formatText = "text"
	formatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown format")

// PlanCmd prints the levels a batch would run in.
var PlanCmd = NewCommand()

// NewCommand builds a new instance of the command with its own flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Print the execution levels of a batch",
		Description: `Validate a batch and print the levels it would run in. Commands in the same level
run concurrently; a level starts only when the previous one has finished.`,
		Flags: append(batch.Flags(),
			&cli.StringFlag{
				Name:  formatFlag,
				Usage: "Output format: text or yaml",
				Value: formatText,
			},
		),
		Action: actionFunc,
	}
}

// levelDoc is the YAML form of one level.
type levelDoc struct {
	Level    int      `yaml:"level"`
	Commands []string `yaml:"commands"`
}

type planDoc struct {
	Source string     `yaml:"source"`
	Mode   string     `yaml:"mode"`
	Levels []levelDoc `yaml:"levels"`
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	b, err := batch.Load(ctx, cmd)
	if err != nil {
		return batch.ConfigError(err)
	}

	if res := b.Check(); !res.Valid() {
		return batch.ConfigError(res.Err())
	}

	p, err := b.Plan()
	if err != nil {
		return batch.ConfigError(err)
	}

	out := cmd.Root().Writer

	switch f := cmd.String(formatFlag); f {
	case formatText:
		writeText(out, b.Source.Name, b.Mode, b.Registry, p)
	case formatYAML:
		doc := planDoc{Source: b.Source.Name, Mode: b.Mode, Levels: make([]levelDoc, 0, p.Len())}
		for _, l := range p.Levels {
			doc.Levels = append(doc.Levels, levelDoc{Level: l.Index + 1, Commands: l.Commands})
		}

		data, err := yaml.MarshalWithOptions(doc, yaml.IndentSequence(true))
		if err != nil {
			return cli.Exit(err.Error(), batch.ExitFailure)
		}

		out.Write(data) //nolint:errcheck
	default:
		return batch.ConfigError(fmt.Errorf("%w: %q", ErrUnknownFormat, f))
	}

	return nil
}

func writeText(w io.Writer, source, mode string, reg *registry.Registry, p *plan.ExecutionPlan) {
	fmt.Fprintf(w, "%s (%s): %d commands in %d levels\n", source, mode, p.CommandCount(), p.Len()) //nolint:errcheck

	for _, l := range p.Levels {
		fmt.Fprintf(w, "\n%s\n", color.Colorize(fmt.Sprintf("Level %d", l.Index+1), color.Bold)) //nolint:errcheck

		for _, name := range l.Commands {
			spec, _ := reg.Lookup(name)

			line := fmt.Sprintf("  - %s: %s", name, spec.Command)
			if len(spec.DependsOn) > 0 {
				line += color.Colorize(fmt.Sprintf("  (after %s)", strings.Join(spec.DependsOn, ", ")), color.FgCyan)
			}

			fmt.Fprintln(w, line) //nolint:errcheck
		}
	}
}
