// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker turns operating system termination signals into context cancellation.
// By default it listens for os.Interrupt, syscall.SIGINT, syscall.SIGTERM, and syscall.SIGQUIT signals.
//
// The first signal cancels the run context with a cause so that in-flight commands are stopped
// and partial results are reported. A second signal of the same type terminates the process at once.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
)

// ExitCodeInterrupted is the conventional exit code for a process stopped by SIGINT.
const ExitCodeInterrupted = 130

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	os.Interrupt,
}

// ForceExit is called on the second signal of a type. It is a variable so tests can stub it.
var ForceExit = os.Exit

// New creates a new signal broker that listens for OS signals that should terminate the process.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "signalbroker", "detail", "creating signal broker", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// Stop stops delivery to the channel and closes it, which ends Watch.
func Stop(ch chan os.Signal) {
	signal.Stop(ch)
	close(ch)
}
