// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/progress"
	"github.com/DonkRonk17/batchrunner/internal/runbatch"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth            = 80
	defaultHeight           = 20
	reservedLines           = 6 // title, border and footer
	minViewportHeight       = 3
	commandDurationRounding = 100 * time.Millisecond
	ellipsis                = "..."
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// CompletedMsg indicates that the batch has finished.
type CompletedMsg struct {
	Summary *runbatch.Summary
	Err     error
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)

		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)

		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-2, 1)
		m.viewport.Height = max(msg.Height-reservedLines, minViewportHeight)
		m.ready = true

		return m, nil

	case spinner.TickMsg:
		if m.completed {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case ProgressEventMsg:
		m.processProgressEvent(msg.Event)
		return m, nil

	case CompletedMsg:
		m.complete(msg.Summary, msg.Err)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var view strings.Builder

	view.WriteString(m.styles.Title.Render(m.title))
	view.WriteString("  ")
	view.WriteString(m.styles.Help.Render(fmt.Sprintf("%d/%d done", m.finished, m.total)))
	view.WriteString("\n")

	m.viewport.SetContent(m.renderLevels())
	view.WriteString(m.styles.Border.Render(m.viewport.View()))
	view.WriteString("\n")

	view.WriteString(m.renderStatus())
	view.WriteString("\n")

	help := "↑/↓ to scroll, q to interrupt"
	if m.completed {
		help = "↑/↓ to scroll, q to quit"
	}

	view.WriteString(m.styles.Help.Render(help))

	return view.String()
}

func (m *Model) renderLevels() string {
	var b strings.Builder

	now := m.now()

	for i, lvl := range m.levels {
		b.WriteString(m.styles.Level.Render(fmt.Sprintf("Level %d", i+1)))
		b.WriteString("\n")

		for _, n := range lvl {
			b.WriteString(m.renderCommandNode(n, now))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// renderCommandNode renders a single command row.
func (m *Model) renderCommandNode(n *CommandNode, now time.Time) string {
	var icon, name string

	switch n.Status {
	case StatusRunning, StatusRetrying:
		icon = m.spinner.View()
		name = m.styles.Running.Render(n.Name)
	case StatusSuccess:
		icon = m.styles.Success.Render("✓")
		name = m.styles.Success.Render(n.Name)
	case StatusFailed:
		icon = m.styles.Failed.Render("✗")
		name = m.styles.Failed.Render(n.Name)
	case StatusSkipped:
		icon = m.styles.Skipped.Render("~")
		name = m.styles.Skipped.Render(n.Name)
	default:
		icon = m.styles.Pending.Render("·")
		name = m.styles.Pending.Render(n.Name)
	}

	line := fmt.Sprintf("  %s %s", icon, name)

	if n.MaxAttempts > 1 && n.Attempt > 0 {
		line += m.styles.Detail.Render(fmt.Sprintf(" attempt %d/%d", n.Attempt, n.MaxAttempts))
	}

	if d := n.Elapsed(now); d > 0 {
		line += m.styles.Detail.Render(fmt.Sprintf(" (%v)", d.Round(commandDurationRounding)))
	}

	if n.ErrorMsg != "" && n.Status != StatusRunning {
		line += " " + m.styles.Error.Render(m.truncate(n.ErrorMsg, line))
	}

	return line
}

// truncate shortens msg to the space left on a row after prefix.
func (m *Model) truncate(msg, prefix string) string {
	msg = strings.ReplaceAll(strings.TrimSpace(msg), "\n", "; ")

	avail := m.viewport.Width - lipgloss.Width(prefix) - 1
	if avail <= len(ellipsis) {
		return ""
	}

	runes := []rune(msg)
	if len(runes) <= avail {
		return msg
	}

	return string(runes[:avail-len(ellipsis)]) + ellipsis
}

func (m *Model) renderStatus() string {
	if !m.completed {
		return m.styles.Running.Render(fmt.Sprintf("%s Running", m.spinner.View()))
	}

	switch {
	case m.runErr != nil:
		return m.styles.Failed.Render("Run failed: " + m.runErr.Error())
	case m.summary == nil:
		return m.styles.Failed.Render("Run finished without results")
	case m.summary.Interrupted():
		return m.styles.Skipped.Render("Run interrupted")
	case m.summary.TimedOut():
		return m.styles.Failed.Render("Global timeout exceeded")
	case !m.summary.Success():
		return m.styles.Failed.Render(fmt.Sprintf("Completed with %d failed, %d skipped (%.1f%% success)",
			m.summary.Failed(), m.summary.Skipped()+len(m.summary.NotAttempted()), m.summary.SuccessRate()))
	default:
		return m.styles.Success.Render(fmt.Sprintf("All %d commands succeeded in %.2fs",
			m.summary.Total(), m.summary.TotalDuration().Seconds()))
	}
}
