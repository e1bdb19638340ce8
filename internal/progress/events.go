// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event represents a real-time update from batch execution.
type Event struct {
	Command   string    // Command name, empty for plan and level events
	Level     int       // Zero based level index
	Type      EventType // Event type indicating what happened
	Attempt   int       // Attempt number for command events, starting at 1
	Message   string    // Human-readable status message
	Timestamp time.Time // When the event occurred
	Data      EventData // Type-specific data
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventPlanned is emitted once before execution with the full plan.
	EventPlanned EventType = iota
	// EventLevelStarted indicates a level has been submitted to the worker pool.
	EventLevelStarted
	// EventLevelCompleted indicates every command of a level has reached a terminal state.
	EventLevelCompleted
	// EventStarted indicates a command attempt has begun.
	EventStarted
	// EventRetrying indicates an attempt failed and another will follow after the retry delay.
	EventRetrying
	// EventCompleted indicates successful completion.
	EventCompleted
	// EventFailed indicates the command failed on its final attempt.
	EventFailed
	// EventSkipped indicates the command was not run.
	EventSkipped
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventPlanned:
		return "planned"
	case EventLevelStarted:
		return "level-started"
	case EventLevelCompleted:
		return "level-completed"
	case EventStarted:
		return "started"
	case EventRetrying:
		return "retrying"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event ends a command.
func (et EventType) Terminal() bool {
	return et == EventCompleted || et == EventFailed || et == EventSkipped
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// For EventPlanned
	Levels [][]string // Command names per level

	// For EventStarted and EventRetrying
	CommandLine string        // The shell command line
	MaxAttempts int           // Total attempts allowed
	RetryDelay  time.Duration // Delay before the next attempt

	// For terminal command events
	ExitCode int           // Command exit code
	Error    error         // Error if the command failed or was skipped
	Duration time.Duration // Wall-clock duration of the final attempt

	// Running totals, set on terminal command events
	Finished int // Commands that have reached a terminal state
	Total    int // Commands in the plan
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations must not block.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events from a ChannelReporter.
type Listener interface {
	// OnEvent is called when a progress event is received.
	OnEvent(event Event)
}

// NullReporter is a no-op implementation of Reporter.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (nr *NullReporter) Report(Event) {}

// Close implements Reporter.Close by doing nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}

// Fanout sends every event to all reporters.
type Fanout []Reporter

// Report implements Reporter.
func (f Fanout) Report(event Event) {
	for _, r := range f {
		r.Report(event)
	}
}

// Close implements Reporter.
func (f Fanout) Close() {
	for _, r := range f {
		r.Close()
	}
}
