// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/color"
)

// stderrExcerptLen is how much of a failed command's stderr the summary block quotes.
const stderrExcerptLen = 100

const separatorWidth = 60

// OutputOptions controls what is included in the output.
type OutputOptions struct {
	IncludeStdOut      bool // Whether to include stdout in the output
	IncludeStdErr      bool // Whether to include stderr in the output
	ShowSuccessDetails bool // Whether to show details for successful commands
}

// DefaultOutputOptions returns a default set of output options.
func DefaultOutputOptions() *OutputOptions {
	return &OutputOptions{
		IncludeStdOut:      false,
		IncludeStdErr:      true,
		ShowSuccessDetails: false,
	}
}

// WriteReport writes the per-command results followed by the summary block.
func WriteReport(w io.Writer, s *Summary, options *OutputOptions) error {
	if err := WriteResults(w, s.Results(), options); err != nil {
		return err
	}

	return WriteSummary(w, s)
}

// WriteResults writes one status line per result, with error details for failures.
func WriteResults(w io.Writer, results Results, options *OutputOptions) error {
	if options == nil {
		options = DefaultOutputOptions()
	}

	for _, r := range results {
		if err := writeResult(w, r, options); err != nil {
			return err
		}
	}

	return nil
}

func writeResult(w io.Writer, r *Result, options *OutputOptions) error {
	var statusStr, labelPrefix string

	switch r.Status {
	case StatusSkipped:
		statusStr = color.Colorize("~", color.FgYellow)
		labelPrefix = color.ControlString(color.Bold, color.FgYellow)
	case StatusNotRun:
		statusStr = color.Colorize("-", color.FgCyan)
		labelPrefix = color.ControlString(color.Bold, color.FgCyan)
	case StatusError:
		statusStr = color.Colorize("✗", color.FgRed)
		labelPrefix = color.ControlString(color.Bold, color.FgRed)
	case StatusSuccess:
		statusStr = color.Colorize("✓", color.FgGreen)
		labelPrefix = color.ControlString(color.Bold, color.FgGreen)
	default:
		statusStr = color.Colorize("?", color.FgWhite)
	}

	label := r.Name
	if label == "" {
		label = "[unnamed]"
	}

	if _, err := fmt.Fprintf(w, "%s %s%s%s", statusStr, labelPrefix, label, color.ControlString(color.Reset)); err != nil {
		return err //nolint:wrapcheck
	}

	if r.ExitCode != 0 {
		fmt.Fprintf(w, " (exit code: %d)", r.ExitCode) // nolint:errcheck
	}

	if r.Attempts > 1 {
		fmt.Fprintf(w, " (attempts: %d)", r.Attempts) // nolint:errcheck
	}

	if r.Executed() {
		fmt.Fprintf(w, " [%s]", formatMillis(r.Duration)) // nolint:errcheck
	}

	fmt.Fprintln(w) // nolint:errcheck

	if r.Error != nil {
		errColor := color.FgWhite

		switch r.Status {
		case StatusSkipped:
			errColor = color.FgYellow
		case StatusError:
			errColor = color.FgRed
		case StatusUnknown, StatusSuccess, StatusNotRun:
		}

		fmt.Fprintf( // nolint:errcheck
			w,
			"  %s %s%s\n",
			color.ColorizeNoReset("➜ Error:", errColor),
			strings.ReplaceAll(r.Error.Error(), "\n", "; "),
			color.ControlString(color.Reset),
		)
	}

	shouldShowDetails := r.Failed() || options.ShowSuccessDetails

	if shouldShowDetails && options.IncludeStdOut && len(r.StdOut) > 0 {
		fmt.Fprintf(w, "  ➜ Output:\n")                  // nolint:errcheck
		fmt.Fprintf(w, "%s", formatOutput(r.StdOut, "     ")) // nolint:errcheck
	}

	if shouldShowDetails && options.IncludeStdErr && len(r.StdErr) > 0 {
		fmt.Fprintf(w, "  %s\n", color.Colorize("➜ Error Output:", color.FgHiRed)) // nolint:errcheck
		fmt.Fprintf(w, "%s", formatOutput(r.StdErr, "     "))                      // nolint:errcheck
	}

	if r.Truncated {
		fmt.Fprintf(w, "  %s\n", color.Colorize("➜ Output truncated", color.FgYellow)) // nolint:errcheck
	}

	return nil
}

// WriteSummary writes the execution summary block and lists failed commands with a stderr excerpt.
func WriteSummary(w io.Writer, s *Summary) error {
	sep := strings.Repeat("=", separatorWidth)

	lines := []string{
		"",
		sep,
		color.Colorize("EXECUTION SUMMARY", color.Bold),
		sep,
		"Total Commands: " + strconv.Itoa(s.Total()),
		"Successful: " + color.Colorize(strconv.Itoa(s.Succeeded()), color.FgGreen),
		"Failed: " + failedCount(s.Failed()),
	}

	if n := s.Skipped(); n > 0 {
		lines = append(lines, "Skipped: "+color.Colorize(strconv.Itoa(n), color.FgYellow))
	}

	if n := s.NotRun(); n > 0 {
		lines = append(lines, "Not Run (dry run): "+strconv.Itoa(n))
	}

	notAttempted := s.NotAttempted()
	if n := len(notAttempted); n > 0 {
		lines = append(lines, "Not Attempted: "+color.Colorize(strconv.Itoa(n), color.FgYellow))
	}

	lines = append(lines,
		fmt.Sprintf("Success Rate: %.1f%%", s.SuccessRate()),
		"Total Duration: "+formatSecondsFixed(s.TotalDuration()),
	)

	if s.Executed() > 0 {
		lines = append(lines,
			"Avg Command Duration: "+formatSecondsFixed(s.AvgDuration()),
			"Min Command Duration: "+formatSecondsFixed(s.MinDuration()),
			"Max Command Duration: "+formatSecondsFixed(s.MaxDuration()),
		)
	}

	switch {
	case s.Interrupted():
		lines = append(lines, color.Colorize("Run interrupted", color.FgYellow))
	case s.TimedOut():
		lines = append(lines, color.Colorize("Global timeout exceeded", color.FgYellow))
	case s.Aborted():
		lines = append(lines, color.Colorize("Aborted after failure of "+s.AbortedBy(), color.FgYellow))
	}

	lines = append(lines, sep)

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err //nolint:wrapcheck
		}
	}

	if s.Failed() > 0 {
		fmt.Fprintln(w, "\n"+color.Colorize("Failed commands:", color.FgRed)) // nolint:errcheck

		for _, r := range s.Results() {
			if !r.Failed() {
				continue
			}

			fmt.Fprintf(w, "  - %s\n", r.Command) // nolint:errcheck

			if excerpt := stderrExcerpt(r.StdErr); excerpt != "" {
				fmt.Fprintf(w, "    Error: %s\n", excerpt) // nolint:errcheck
			}
		}
	}

	if len(notAttempted) > 0 {
		fmt.Fprintf(w, "\n%s\n", color.Colorize( // nolint:errcheck
			fmt.Sprintf("Not attempted (%s):", notAttempted[0].Reason), color.FgYellow))

		for _, na := range notAttempted {
			fmt.Fprintf(w, "  - %s\n", na.Command) // nolint:errcheck
		}
	}

	return nil
}

func failedCount(n int) string {
	if n == 0 {
		return "0"
	}

	return color.Colorize(strconv.Itoa(n), color.FgRed)
}

// stderrExcerpt returns the first stderrExcerptLen runes of stderr, trimmed.
func stderrExcerpt(b []byte) string {
	s := strings.TrimSpace(string(b))

	r := []rune(s)
	if len(r) > stderrExcerptLen {
		r = r[:stderrExcerptLen]
	}

	return string(r)
}

func formatSecondsFixed(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 1, 64) + "ms"
}

// formatOutput formats multi-line output with proper indentation.
func formatOutput(output []byte, indent string) string {
	sb := strings.Builder{}
	lines := strings.Split(strings.TrimRight(string(output), "\n"), "\n")
	sb.Grow(len(output) + len(lines)*len(indent))

	for _, line := range lines {
		if line == "" {
			sb.WriteString("\n")
			continue
		}

		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}
