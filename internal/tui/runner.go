// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/DonkRonk17/batchrunner/internal/progress"
	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	tea "github.com/charmbracelet/bubbletea"
)

const eventBufferSize = 256

// RunFunc executes a batch, reporting progress to reporter.
type RunFunc func(ctx context.Context, reporter progress.Reporter) (*runbatch.Summary, error)

// Runner drives a batch run alongside the TUI program.
type Runner struct {
	model   *Model
	program *tea.Program
}

// NewRunner creates a new TUI runner. Options are passed to the tea program;
// the default is the alternate screen with mouse support.
func NewRunner(title string, opts ...tea.ProgramOption) *Runner {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	}

	model := NewModel(title)

	return &Runner{
		model:   model,
		program: tea.NewProgram(model, opts...),
	}
}

// programForwarder sends progress events to the tea program.
type programForwarder struct {
	program *tea.Program
}

// OnEvent implements progress.Listener.
func (f programForwarder) OnEvent(e progress.Event) {
	f.program.Send(ProgressEventMsg{Event: e})
}

// Run shows the TUI while run executes. Leaving the TUI before the batch
// finishes interrupts it; Run always waits for the batch to return.
func (r *Runner) Run(ctx context.Context, run RunFunc) (*runbatch.Summary, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	reporter := progress.NewChannelReporter(eventBufferSize)
	reporter.Listen(programForwarder{program: r.program})

	type outcome struct {
		summary *runbatch.Summary
		err     error
	}

	done := make(chan outcome, 1)

	go func() {
		s, err := run(ctx, reporter)
		reporter.Close()
		r.program.Send(CompletedMsg{Summary: s, Err: err})
		done <- outcome{summary: s, err: err}
	}()

	_, tuiErr := r.program.Run()
	if errors.Is(tuiErr, tea.ErrInterrupted) {
		tuiErr = nil
	}

	if tuiErr != nil {
		tuiErr = fmt.Errorf("tui: %w", tuiErr)
	}

	// A closed program drops further sends, so the batch is never blocked on the UI.
	cancel(runbatch.ErrInterrupted)

	res := <-done

	return res.summary, errors.Join(res.err, tuiErr)
}
