// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/plan"
	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary(t *testing.T) *runbatch.Summary {
	t.Helper()

	reg := registry.New(
		registry.CommandSpec{Name: "ok", Command: "echo ok"},
		registry.CommandSpec{Name: "bad", Command: "exit 2"},
		registry.CommandSpec{Name: "after", Command: "echo after", DependsOn: []string{"bad"}},
	)

	runner := runbatch.RunnerFunc(func(_ context.Context, spec registry.CommandSpec) *runbatch.Result {
		res := &runbatch.Result{
			Name:      spec.Name,
			Command:   spec.Command,
			Timestamp: time.Date(2025, 3, 4, 5, 6, 7, 890000000, time.UTC),
			Duration:  1500 * time.Microsecond,
		}

		if spec.Name == "bad" {
			res.Status, res.Kind, res.ExitCode = runbatch.StatusError, runbatch.KindExecution, 2
			res.StdErr = []byte("bad things\n")
			res.Error = runbatch.ErrCommandFailed

			return res
		}

		res.Status, res.Success = runbatch.StatusSuccess, true
		res.StdOut = []byte(spec.Name + "\n")

		return res
	})

	p, err := plan.Build(reg)
	require.NoError(t, err)

	opts := runbatch.DefaultOptions()
	opts.Runner = runner

	s, err := runbatch.Execute(context.Background(), reg, p, opts)
	require.NoError(t, err)

	return s
}

func TestNew(t *testing.T) {
	doc := New(summary(t))

	assert.Equal(t, 2, doc.Summary.TotalCommands)
	assert.Equal(t, 3, doc.Summary.PlannedCommands)
	assert.Equal(t, 1, doc.Summary.Successful)
	assert.Equal(t, 1, doc.Summary.Failed)
	assert.Equal(t, 0, doc.Summary.Skipped)
	assert.Equal(t, []string{"after"}, doc.Summary.NotAttempted)
	assert.InDelta(t, 50.0, doc.Summary.SuccessRate, 0.001)
	assert.InDelta(t, 1.5, doc.Summary.AvgCommandDuration, 0.001)
	assert.True(t, doc.Summary.Aborted)
	assert.Equal(t, "bad", doc.Summary.AbortedBy)
	assert.Equal(t, 1, doc.Summary.ExitCode)
	assert.Equal(t, runbatch.ModeDependency, doc.Summary.Mode)

	require.Len(t, doc.Results, 2)

	bad := doc.Results[1]
	assert.Equal(t, "exit 2", bad.Command)
	assert.Equal(t, "error", bad.Status)
	assert.Equal(t, 2, bad.ExitCode)
	assert.Equal(t, "bad things\n", bad.Stderr)
	assert.Equal(t, "2025-03-04T05:06:07.890000", bad.Timestamp)
	assert.Equal(t, 1, bad.Attempts)
}

func TestWrite_JSONKeys(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, New(summary(t)).Write(&buf, FormatJSON))

	var generic map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &generic))

	s, ok := generic["summary"].(map[string]any)
	require.True(t, ok)

	for _, key := range []string{
		"total_commands", "successful", "failed", "success_rate", "total_duration_ms",
		"avg_command_duration_ms", "min_command_duration_ms", "max_command_duration_ms", "mode", "max_retries",
		"not_attempted", "planned_commands",
	} {
		assert.Contains(t, s, key)
	}

	results, ok := generic["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 2)

	first, ok := results[0].(map[string]any)
	require.True(t, ok)

	for _, key := range []string{"command", "success", "exit_code", "stdout", "stderr", "duration_ms", "timestamp"} {
		assert.Contains(t, first, key)
	}
}

func TestWriteFile_RoundTripsByExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := summary(t)

	for _, name := range []string{"/out/results.json", "/out/results.yaml"} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, WriteFile(fs, name, s))

			f, err := fs.Open(name)
			require.NoError(t, err)

			defer f.Close() //nolint:errcheck

			doc, err := Read(f)
			require.NoError(t, err)
			assert.Equal(t, New(s), doc)
		})
	}
}

func TestWriteFile_Error(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	err := WriteFile(fs, "/results.json", summary(t))
	require.ErrorIs(t, err, ErrWriteResults)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("x.YAML"))
	assert.Equal(t, FormatYAML, FormatFor("x.yml"))
	assert.Equal(t, FormatJSON, FormatFor("x.json"))
	assert.Equal(t, FormatJSON, FormatFor("results"))
}
