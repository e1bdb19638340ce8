// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DonkRonk17/batchrunner/cmd/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func run(t *testing.T, args ...string) (string, int) {
	t.Helper()

	var out bytes.Buffer

	root := &cli.Command{
		Name:           "batchrunner",
		Writer:         &out,
		ErrWriter:      &out,
		Commands:       []*cli.Command{NewCommand()},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}

	err := root.Run(context.Background(), append([]string{"batchrunner", "schema"}, args...))

	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return out.String(), ec.ExitCode()
	}

	require.NoError(t, err)

	return out.String(), 0
}

func TestSchemaCmd(t *testing.T) {
	out, code := run(t)
	require.Equal(t, 0, code)
	assert.True(t, json.Valid([]byte(out)))

	out, code = run(t, "-f", "markdown")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "# Batch file reference")

	_, code = run(t, "--format", "xml")
	assert.Equal(t, batch.ExitConfig, code)
}
