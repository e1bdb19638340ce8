// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

// TimestampFormat is the layout of result timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000000"

const (
	filePerm  = 0o644
	fileFlags = os.O_CREATE | os.O_TRUNC | os.O_WRONLY
)

// Format is a results file encoding.
type Format int

const (
	// FormatJSON is indented JSON.
	FormatJSON Format = iota
	// FormatYAML is block-style YAML.
	FormatYAML
)

// ErrWriteResults is returned when the results file cannot be written.
var ErrWriteResults = errors.New("failed to write results")

// Document is the results file.
type Document struct {
	Summary Summary  `json:"summary"`
	Results []Result `json:"results"`
}

// Summary is the run-wide part of the results file. Durations are in milliseconds.
type Summary struct {
	TotalCommands      int      `json:"total_commands"`
	PlannedCommands    int      `json:"planned_commands"`
	Successful         int      `json:"successful"`
	Failed             int      `json:"failed"`
	Skipped            int      `json:"skipped"`
	NotRun             int      `json:"not_run"`
	NotAttempted       []string `json:"not_attempted,omitempty"`
	SuccessRate        float64  `json:"success_rate"`
	TotalDurationMs    float64  `json:"total_duration_ms"`
	AvgCommandDuration float64  `json:"avg_command_duration_ms"`
	MinCommandDuration float64  `json:"min_command_duration_ms"`
	MaxCommandDuration float64  `json:"max_command_duration_ms"`
	Mode               string   `json:"mode"`
	MaxRetries         int      `json:"max_retries"`
	Levels             int      `json:"levels"`
	DryRun             bool     `json:"dry_run"`
	Aborted            bool     `json:"aborted"`
	AbortedBy          string   `json:"aborted_by,omitempty"`
	Interrupted        bool     `json:"interrupted"`
	TimedOut           bool     `json:"timed_out"`
	ExitCode           int      `json:"exit_code"`
}

// Result is one command in the results file.
type Result struct {
	Name       string  `json:"name"`
	Command    string  `json:"command"`
	Status     string  `json:"status"`
	Success    bool    `json:"success"`
	ExitCode   int     `json:"exit_code"`
	Stdout     string  `json:"stdout"`
	Stderr     string  `json:"stderr"`
	Truncated  bool    `json:"truncated,omitempty"`
	DurationMs float64 `json:"duration_ms"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Attempts   int     `json:"attempts"`
	Level      int     `json:"level"`
	Error      string  `json:"error,omitempty"`
}

// New builds the results document for a summary.
func New(s *runbatch.Summary) *Document {
	doc := &Document{
		Summary: Summary{
			TotalCommands:      s.Total(),
			PlannedCommands:    s.Planned(),
			Successful:         s.Succeeded(),
			Failed:             s.Failed(),
			Skipped:            s.Skipped(),
			NotRun:             s.NotRun(),
			SuccessRate:        round(s.SuccessRate()),
			TotalDurationMs:    millis(s.TotalDuration()),
			AvgCommandDuration: millis(s.AvgDuration()),
			MinCommandDuration: millis(s.MinDuration()),
			MaxCommandDuration: millis(s.MaxDuration()),
			Mode:               s.Mode(),
			MaxRetries:         s.MaxRetries(),
			Levels:             s.Levels(),
			DryRun:             s.DryRun(),
			Aborted:            s.Aborted(),
			AbortedBy:          s.AbortedBy(),
			Interrupted:        s.Interrupted(),
			TimedOut:           s.TimedOut(),
			ExitCode:           s.ExitCode(),
		},
	}

	for _, na := range s.NotAttempted() {
		doc.Summary.NotAttempted = append(doc.Summary.NotAttempted, na.Name)
	}

	results := s.Results()
	doc.Results = make([]Result, 0, len(results))

	for _, r := range results {
		res := Result{
			Name:       r.Name,
			Command:    r.Command,
			Status:     r.Status.String(),
			Success:    r.Success,
			ExitCode:   r.ExitCode,
			Stdout:     string(r.StdOut),
			Stderr:     string(r.StdErr),
			Truncated:  r.Truncated,
			DurationMs: millis(r.Duration),
			Attempts:   r.Attempts,
			Level:      r.Level,
		}

		if !r.Timestamp.IsZero() {
			res.Timestamp = r.Timestamp.Format(TimestampFormat)
		}

		if r.Error != nil {
			res.Error = r.Error.Error()
		}

		doc.Results = append(doc.Results, res)
	}

	return doc
}

// FormatFor picks the format from a file name.
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Write encodes the document to w.
func (d *Document) Write(w io.Writer, f Format) error {
	var (
		data []byte
		err  error
	)

	switch f {
	case FormatYAML:
		data, err = yaml.MarshalWithOptions(d, yaml.Indent(2), yaml.IndentSequence(true), yaml.UseLiteralStyleIfMultiline(true))
	default:
		data, err = json.MarshalIndent(d, "", "  ")
		data = append(data, '\n')
	}

	if err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	if _, err := w.Write(data); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	return nil
}

// WriteFile writes the results document for s to path on fs, in the format implied by its extension.
func WriteFile(fs afero.Fs, path string, s *runbatch.Summary) error {
	f, err := fs.OpenFile(path, fileFlags, filePerm)
	if err != nil {
		return errors.Join(ErrWriteResults, fmt.Errorf("create %s: %w", path, err))
	}

	if err := New(s).Write(f, FormatFor(path)); err != nil {
		f.Close() //nolint:errcheck
		return err
	}

	if err := f.Close(); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	return nil
}

// Read decodes a results document written by Write. YAML is a superset of JSON, so both are accepted.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	doc := new(Document)
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	return doc, nil
}

func millis(d time.Duration) float64 {
	return round(float64(d) / float64(time.Millisecond))
}

// round keeps three decimal places.
func round(f float64) float64 {
	return math.Round(f*1000) / 1000
}
