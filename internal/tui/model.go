// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"time"

	"github.com/DonkRonk17/batchrunner/internal/progress"
	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// CommandStatus represents the current state of a command in the TUI.
type CommandStatus int

const (
	StatusPending CommandStatus = iota
	StatusRunning
	StatusRetrying
	StatusSuccess
	StatusFailed
	StatusSkipped
)

// String returns a string representation of the command status.
func (s CommandStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusRetrying:
		return "retrying"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Done reports whether the status is terminal.
func (s CommandStatus) Done() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

// CommandNode is one command row.
type CommandNode struct {
	Name        string
	Level       int
	Status      CommandStatus
	Attempt     int
	MaxAttempts int
	StartTime   time.Time
	Duration    time.Duration // set once the command is done
	ExitCode    int
	ErrorMsg    string
}

// Elapsed returns the final duration of a finished command, or the time since it started.
func (n *CommandNode) Elapsed(now time.Time) time.Duration {
	switch {
	case n.Status.Done():
		return n.Duration
	case n.StartTime.IsZero():
		return 0
	default:
		return now.Sub(n.StartTime)
	}
}

// Styles contains the styling for the TUI.
type Styles struct {
	Title   lipgloss.Style
	Level   lipgloss.Style
	Pending lipgloss.Style
	Running lipgloss.Style
	Success lipgloss.Style
	Failed  lipgloss.Style
	Skipped lipgloss.Style
	Detail  lipgloss.Style
	Error   lipgloss.Style
	Help    lipgloss.Style
	Border  lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		Level: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14")),
		Pending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Skipped: lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")),
		Detail: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")),
	}
}

// Model is the bubbletea model of a batch run.
// All state is mutated from Update only, so no locking is needed.
type Model struct {
	title    string
	levels   [][]*CommandNode
	nodes    map[string]*CommandNode
	finished int
	total    int

	spinner  spinner.Model
	viewport viewport.Model
	styles   *Styles
	now      func() time.Time

	width, height int
	ready         bool

	completed bool
	summary   *runbatch.Summary
	runErr    error
	quitting  bool
}

// NewModel creates a new TUI model.
func NewModel(title string) *Model {
	return &Model{
		title:    title,
		nodes:    make(map[string]*CommandNode),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(NewStyles().Running)),
		viewport: viewport.New(defaultWidth, defaultHeight),
		styles:   NewStyles(),
		now:      time.Now,
	}
}

// Node returns the row of the named command.
func (m *Model) Node(name string) (*CommandNode, bool) {
	n, ok := m.nodes[name]
	return n, ok
}

// Completed reports whether the run has finished.
func (m *Model) Completed() bool {
	return m.completed
}

// Quitting reports whether the user asked to leave.
func (m *Model) Quitting() bool {
	return m.quitting
}

// node returns the row for a command, creating it for events that arrive without a plan.
func (m *Model) node(name string, level int) *CommandNode {
	if n, ok := m.nodes[name]; ok {
		return n
	}

	for len(m.levels) <= level {
		m.levels = append(m.levels, nil)
	}

	n := &CommandNode{Name: name, Level: level}
	m.nodes[name] = n
	m.levels[level] = append(m.levels[level], n)
	m.total = max(m.total, len(m.nodes))

	return n
}

// processProgressEvent applies an event to the rows.
func (m *Model) processProgressEvent(e progress.Event) {
	switch e.Type {
	case progress.EventPlanned:
		m.levels = make([][]*CommandNode, len(e.Data.Levels))
		m.nodes = make(map[string]*CommandNode)

		for i, names := range e.Data.Levels {
			for _, name := range names {
				n := &CommandNode{Name: name, Level: i}
				m.nodes[name] = n
				m.levels[i] = append(m.levels[i], n)
			}
		}

		m.total = len(m.nodes)
		m.finished = 0

		return
	case progress.EventLevelStarted, progress.EventLevelCompleted:
		return
	}

	if e.Command == "" {
		return
	}

	n := m.node(e.Command, max(e.Level, 0))

	switch e.Type {
	case progress.EventStarted:
		n.Status = StatusRunning
		n.Attempt = e.Attempt
		n.MaxAttempts = e.Data.MaxAttempts
		n.ErrorMsg = ""

		if n.StartTime.IsZero() {
			n.StartTime = e.Timestamp
		}
	case progress.EventRetrying:
		n.Status = StatusRetrying
		n.ErrorMsg = e.Message
	case progress.EventCompleted:
		n.Status = StatusSuccess
		m.finish(n, e)
	case progress.EventFailed:
		n.Status = StatusFailed
		n.ExitCode = e.Data.ExitCode

		if e.Data.Error != nil {
			n.ErrorMsg = e.Data.Error.Error()
		} else {
			n.ErrorMsg = e.Message
		}

		m.finish(n, e)
	case progress.EventSkipped:
		n.Status = StatusSkipped
		n.ErrorMsg = e.Message
		m.finish(n, e)
	}
}

func (m *Model) finish(n *CommandNode, e progress.Event) {
	n.Duration = e.Data.Duration

	if e.Data.Total > 0 {
		m.finished, m.total = e.Data.Finished, e.Data.Total
		return
	}

	m.finished++
}

// complete records the outcome of the run and marks every row from the final results.
func (m *Model) complete(s *runbatch.Summary, err error) {
	m.completed = true
	m.summary = s
	m.runErr = err

	if s == nil {
		return
	}

	for _, r := range s.Results() {
		n := m.node(r.Name, max(r.Level, 0))
		n.Duration = r.Duration
		n.ExitCode = r.ExitCode
		n.Attempt = r.Attempts

		switch r.Status {
		case runbatch.StatusSuccess:
			n.Status = StatusSuccess
		case runbatch.StatusError:
			n.Status = StatusFailed
		default:
			n.Status = StatusSkipped
		}

		if r.Error != nil {
			n.ErrorMsg = r.Error.Error()
		}
	}

	for _, na := range s.NotAttempted() {
		n := m.node(na.Name, na.Level)
		n.Status = StatusSkipped
		n.ErrorMsg = "not attempted: " + na.Reason.Error()
	}

	m.finished = s.Planned()
	m.total = s.Planned()
}
