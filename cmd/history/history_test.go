// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package history

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DonkRonk17/batchrunner/cmd/batch"
	"github.com/DonkRonk17/batchrunner/internal/color"
	store "github.com/DonkRonk17/batchrunner/internal/history"
	"github.com/DonkRonk17/batchrunner/internal/plan"
	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	t.Cleanup(color.Override(false))

	var out bytes.Buffer

	root := &cli.Command{
		Name:           "batchrunner",
		Writer:         &out,
		ErrWriter:      &out,
		Commands:       []*cli.Command{NewCommand()},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}

	err := root.Run(context.Background(), append([]string{"batchrunner", "history"}, args...))

	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return out.String(), ec.ExitCode()
	}

	require.NoError(t, err)

	return out.String(), 0
}

// seed records a failing run in a new database and returns its path and the run ID.
func seed(t *testing.T) (string, string) {
	t.Helper()

	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "history.db")

	reg := registry.New(
		registry.CommandSpec{Name: "build", Command: "make"},
		registry.CommandSpec{Name: "test", Command: "make test", DependsOn: []string{"build"}},
	)

	p, err := plan.Build(reg)
	require.NoError(t, err)

	opts := runbatch.DefaultOptions()
	opts.Runner = runbatch.RunnerFunc(func(_ context.Context, spec registry.CommandSpec) *runbatch.Result {
		if spec.Name == "test" {
			return &runbatch.Result{
				Name: spec.Name, Command: spec.Command, Status: runbatch.StatusError,
				Kind: runbatch.KindExecution, ExitCode: 2, Error: runbatch.ErrCommandFailed,
			}
		}

		return &runbatch.Result{Name: spec.Name, Command: spec.Command, Status: runbatch.StatusSuccess, Success: true}
	})

	sum, err := runbatch.Execute(ctx, reg, p, opts)
	require.NoError(t, err)

	s, err := store.Open(ctx, db)
	require.NoError(t, err)

	defer s.Close() //nolint:errcheck

	id, err := s.SaveRun(ctx, "ci.yaml", sum)
	require.NoError(t, err)

	return db, id
}

func TestHistory_ListRuns(t *testing.T) {
	db, id := seed(t)

	out, code := run(t, "--db", db)
	require.Equal(t, 0, code)

	assert.True(t, strings.HasPrefix(out, id+"  "))
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "1/2 ok")
	assert.Contains(t, out, "ci.yaml (dependency)")
}

func TestHistory_Commands(t *testing.T) {
	db, id := seed(t)

	out, code := run(t, "--db", db, id)
	require.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "success  build (exit code: 0, attempts: 1)")
	assert.Contains(t, lines[1], "error    test (exit code: 2, attempts: 1)")
	assert.Contains(t, lines[2], "Error: "+runbatch.ErrCommandFailed.Error())
}

func TestHistory_Empty(t *testing.T) {
	out, code := run(t, "--db", filepath.Join(t.TempDir(), "new.db"))

	require.Equal(t, 0, code)
	assert.Equal(t, "No runs recorded\n", out)
}

func TestHistory_UnknownRun(t *testing.T) {
	db, _ := seed(t)

	out, code := run(t, "--db", db, "nope")

	assert.Equal(t, batch.ExitFailure, code)
	assert.Empty(t, out)
}
