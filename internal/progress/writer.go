// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/color"
)

const (
	writerTimeFormat = "2006-01-02 15:04:05"
	tagInfo          = "INFO"
	tagSuccess       = "SUCCESS"
	tagError         = "ERROR"
	tagWarn          = "WARN"
)

var _ Reporter = (*Writer)(nil)

// Writer renders events as timestamped console lines, one event per line.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewWriter creates a Writer that prints to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, now: time.Now}
}

// Report implements Reporter.
func (pw *Writer) Report(e Event) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	switch e.Type {
	case EventPlanned:
		total := 0
		for _, l := range e.Data.Levels {
			total += len(l)
		}

		pw.line(tagInfo, fmt.Sprintf("Starting %d commands in %d levels", total, len(e.Data.Levels)))
	case EventLevelStarted:
		pw.line(tagInfo, fmt.Sprintf("Level %d: %s", e.Level+1, e.Message))
	case EventLevelCompleted:
		pw.line(tagInfo, fmt.Sprintf("Level %d finished", e.Level+1))
	case EventStarted:
		pw.line(tagInfo, fmt.Sprintf("[%s] Executing: %s (attempt %d/%d)",
			e.Command, e.Data.CommandLine, e.Attempt, max(e.Data.MaxAttempts, 1)))
	case EventRetrying:
		pw.line(tagWarn, fmt.Sprintf("[%s] %s, retrying in %s...", e.Command, e.Message, e.Data.RetryDelay))
	case EventCompleted:
		pw.line(tagSuccess, fmt.Sprintf("[%s] [OK] Command completed (%s)", e.Command, formatMillis(e.Data.Duration)))
		pw.progress(e)
	case EventFailed:
		pw.line(tagError, fmt.Sprintf("[%s] [X] %s (%s)", e.Command, e.Message, formatMillis(e.Data.Duration)))
		pw.progress(e)
	case EventSkipped:
		pw.line(tagWarn, fmt.Sprintf("[%s] [-] Skipped: %s", e.Command, e.Message))
		pw.progress(e)
	}
}

// Close implements Reporter.
func (pw *Writer) Close() {}

func (pw *Writer) progress(e Event) {
	if e.Data.Total == 0 {
		return
	}

	pw.line(tagInfo, fmt.Sprintf("Progress: %d/%d completed", e.Data.Finished, e.Data.Total))
}

func (pw *Writer) line(tag, msg string) {
	var c color.Code

	switch tag {
	case tagSuccess:
		c = color.FgGreen
	case tagError:
		c = color.FgRed
	case tagWarn:
		c = color.FgYellow
	default:
		c = color.FgCyan
	}

	fmt.Fprintf(pw.w, "[%s] [%s] %s\n", // nolint:errcheck
		pw.now().Format(writerTimeFormat),
		color.Colorize(tag, c),
		strings.TrimRight(msg, "\n"),
	)
}

func formatMillis(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
