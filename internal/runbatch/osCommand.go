// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
	"github.com/DonkRonk17/batchrunner/internal/registry"
)

const (
	maxBufferSize = 8 * 1024 * 1024 // 8MB
	// waitDelay bounds how long Wait keeps reading output after the shell exits,
	// for background grandchildren that hold the pipes open.
	waitDelay = 2 * time.Second

	exitCodeCannotExecute = 126
	exitCodeNotFound      = 127
)

var _ Runner = (*OSRunner)(nil)

// errAttemptTimeout is the cancellation cause of a per-attempt timeout.
var errAttemptTimeout = errors.New("attempt timeout")

// OSRunner runs one attempt of a command as a shell subprocess.
type OSRunner struct {
	Shell     []string        // Interpreter and switch, defaults to DefaultShell
	MaxOutput int             // Per-stream capture limit in bytes, defaults to 8MB
	Environ   func() []string // Base environment, defaults to os.Environ
}

// NewOSRunner returns an OSRunner with the platform defaults.
func NewOSRunner(ctx context.Context) *OSRunner {
	return &OSRunner{
		Shell:     DefaultShell(ctx),
		MaxOutput: maxBufferSize,
		Environ:   os.Environ,
	}
}

// Run implements Runner. It starts the command line through the shell in its own process group
// and blocks until the process exits or is killed by the timeout or ctx.
func (r *OSRunner) Run(ctx context.Context, spec registry.CommandSpec) *Result {
	logger := ctxlog.Logger(ctx).With("runnableType", "OSCommand", "command", spec.Name)

	res := &Result{
		Name:    spec.Name,
		Command: spec.Command,
	}

	shell := r.Shell
	if len(shell) == 0 {
		shell = DefaultShell(ctx)
	}

	limit := r.MaxOutput
	if limit <= 0 {
		limit = maxBufferSize
	}

	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if spec.Timeout > 0 {
		var cancelTimeout context.CancelFunc

		attemptCtx, cancelTimeout = context.WithTimeoutCause(attemptCtx, spec.Timeout, errAttemptTimeout)
		defer cancelTimeout()
	}

	stdout := newCappedBuffer(limit)
	stderr := newCappedBuffer(limit)

	cmd := exec.Command(shell[0], slices.Concat(shell[1:], []string{spec.Command})...) //nolint:gosec
	cmd.Dir = spec.WorkingDir
	cmd.Env = r.environ(spec)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	logger.Debug("starting process", "shell", shell, "cwd", spec.WorkingDir, "timeout", spec.Timeout)

	res.Timestamp = time.Now()

	if err := cmd.Start(); err != nil {
		res.Duration = time.Since(res.Timestamp)
		res.Status = StatusError
		res.Kind = KindSpawn
		res.ExitCode = -1
		res.Error = errors.Join(ErrCouldNotStartProcess, err)
		res.StdErr = []byte(err.Error())

		logger.Debug("process start failed", "error", err)

		return res
	}

	logger.Debug("process started", "pid", cmd.Process.Pid)

	done := make(chan struct{})
	watchdogExit := make(chan FailureKind, 1)

	// watchdog for the attempt deadline and run cancellation
	go func() {
		select {
		case <-done:
			watchdogExit <- KindNone
		case <-attemptCtx.Done():
			select {
			case <-done:
				watchdogExit <- KindNone
				return
			default:
			}

			kind := cancellationKind(ctx, attemptCtx)
			logger.Info("context done, killing process group", "pid", cmd.Process.Pid, "reason", kind.String())

			if err := killProcessGroup(cmd); err != nil {
				logger.Error("process kill error", "pid", cmd.Process.Pid, "error", err)
			}

			watchdogExit <- kind
		}
	}()

	waitErr := cmd.Wait()

	close(done)

	killedBy := <-watchdogExit

	res.Duration = time.Since(res.Timestamp)
	res.StdOut = stdout.Bytes()
	res.StdErr = stderr.Bytes()
	res.Truncated = stdout.Overflowed() || stderr.Overflowed()

	if res.Truncated {
		logger.Warn("output truncated", "maxBytes", limit)
	}

	switch killedBy {
	case KindTimeout:
		allowed := spec.Timeout
		if !errors.Is(context.Cause(attemptCtx), errAttemptTimeout) {
			allowed = deadlineOf(ctx, res.Timestamp)
		}

		res.Status = StatusError
		res.Kind = KindTimeout
		res.ExitCode = ExitCodeTimeout
		res.Error = fmt.Errorf("%w: %s", ErrTimeoutExceeded, allowed)
		res.StdErr = appendLine(res.StdErr, "Command timed out after "+formatSeconds(allowed)+" seconds")

		return res
	case KindInterrupted:
		res.Status = StatusError
		res.Kind = KindInterrupted
		res.ExitCode = -1
		res.Error = errors.Join(ErrInterrupted, context.Cause(ctx))

		return res
	case KindNone, KindExecution, KindSpawn:
	}

	res.ExitCode = cmd.ProcessState.ExitCode()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		res.Error = waitErr
	}

	logger.Debug("process finished", "exitCode", res.ExitCode)

	switch {
	case res.ExitCode == 0 && res.Error == nil:
		res.Status = StatusSuccess
		res.Kind = KindNone
		res.Success = true
	case res.ExitCode == exitCodeCannotExecute || res.ExitCode == exitCodeNotFound:
		// The shell itself started, so the attempt stays retryable.
		res.Status = StatusError
		res.Kind = KindExecution
		res.Error = errors.Join(
			fmt.Errorf("%w: exit code %d (command not found or not executable)", ErrCommandFailed, res.ExitCode),
			res.Error,
		)
	default:
		res.Status = StatusError
		res.Kind = KindExecution
		res.Error = errors.Join(fmt.Errorf("%w: exit code %d", ErrCommandFailed, res.ExitCode), res.Error)
	}

	return res
}

func (r *OSRunner) environ(spec registry.CommandSpec) []string {
	if spec.IsolateEnv {
		return mergeEnv([]string{}, spec.Env)
	}

	base := os.Environ
	if r.Environ != nil {
		base = r.Environ
	}

	return mergeEnv(base(), spec.Env)
}

// cancellationKind decides whether a cancelled attempt context means a timeout or an interrupt.
func cancellationKind(parent, attempt context.Context) FailureKind {
	if errors.Is(context.Cause(attempt), errAttemptTimeout) {
		return KindTimeout
	}

	cause := context.Cause(parent)
	if errors.Is(cause, ErrGlobalTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		return KindTimeout
	}

	return KindInterrupted
}

// deadlineOf returns how long the parent context allowed the attempt to run.
func deadlineOf(ctx context.Context, start time.Time) time.Duration {
	d, ok := ctx.Deadline()
	if !ok {
		return time.Since(start)
	}

	return d.Sub(start)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Round(time.Millisecond).Seconds(), 'f', -1, 64)
}

func appendLine(b []byte, line string) []byte {
	if len(b) > 0 && b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}

	return append(b, line...)
}
