// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main is the entry point for the batchrunner command-line application.
package main

import (
	"context"
	"os"

	"github.com/DonkRonk17/batchrunner/cmd"
	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/DonkRonk17/batchrunner/internal/signalbroker"
)

func main() {
	ctx, cancel := context.WithCancelCause(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel, runbatch.ErrInterrupted)

	// Exit codes carried by cli.Exit are handled by the cli framework.
	err := cmd.RootCmd.Run(ctx, os.Args)

	signalbroker.Stop(sigCh)
	cancel(nil)

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
