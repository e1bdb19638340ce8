// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
)

// Watch monitors the signal channel until it is closed.
// The first signal cancels the run with cause. A second signal of the same type calls ForceExit.
func Watch(ctx context.Context, sigCh <-chan os.Signal, cancel context.CancelCauseFunc, cause error) {
	seen := make(map[os.Signal]struct{})

	for sig := range sigCh {
		if _, ok := seen[sig]; ok {
			ctxlog.Warn(ctx, "watchdog", "detail", "received second signal of type, forcefully terminating", "signal", sig.String())
			ForceExit(ExitCodeInterrupted)

			return
		}

		ctxlog.Warn(ctx, "watchdog", "detail", "received signal, stopping running commands", "signal", sig.String())

		seen[sig] = struct{}{}

		cancel(cause)
	}
}
