// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
)

const (
	goosWindows          = "windows"
	commandSwitchWindows = "/C"
	commandSwitchUnix    = "-c"
	winSystem32          = "System32"
	cmdExe               = "cmd.exe"
	binSh                = "/bin/sh"
	winSystemRootEnv     = "SystemRoot"
	shellEnv             = "SHELL"
)

// DefaultShell returns the interpreter and switch used to run command lines on this platform:
// cmd.exe /C on Windows, otherwise $SHELL -c falling back to /bin/sh -c.
func DefaultShell(ctx context.Context) []string {
	if runtime.GOOS == goosWindows {
		systemRoot := os.Getenv(winSystemRootEnv)
		if systemRoot == "" {
			systemRoot = `C:\Windows`
		}

		return []string{fmt.Sprintf(`%s\%s\%s`, systemRoot, winSystem32, cmdExe), commandSwitchWindows}
	}

	if shell := os.Getenv(shellEnv); shell != "" {
		ctxlog.Debug(ctx, "using SHELL environment variable", "shell", shell)
		return []string{shell, commandSwitchUnix}
	}

	return []string{binSh, commandSwitchUnix}
}
