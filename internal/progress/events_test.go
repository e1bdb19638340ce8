// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		expected  string
	}{
		{name: "EventPlanned", eventType: EventPlanned, expected: "planned"},
		{name: "EventLevelStarted", eventType: EventLevelStarted, expected: "level-started"},
		{name: "EventLevelCompleted", eventType: EventLevelCompleted, expected: "level-completed"},
		{name: "EventStarted", eventType: EventStarted, expected: "started"},
		{name: "EventRetrying", eventType: EventRetrying, expected: "retrying"},
		{name: "EventCompleted", eventType: EventCompleted, expected: "completed"},
		{name: "EventFailed", eventType: EventFailed, expected: "failed"},
		{name: "EventSkipped", eventType: EventSkipped, expected: "skipped"},
		{name: "Unknown event type", eventType: EventType(999), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.String())
		})
	}
}

func TestEventType_Terminal(t *testing.T) {
	assert.True(t, EventCompleted.Terminal())
	assert.True(t, EventFailed.Terminal())
	assert.True(t, EventSkipped.Terminal())
	assert.False(t, EventStarted.Terminal())
	assert.False(t, EventRetrying.Terminal())
}

func TestNullReporter(t *testing.T) {
	reporter := NewNullReporter()
	require.NotNil(t, reporter)

	// These should not panic
	reporter.Report(Event{Command: "test", Type: EventStarted, Timestamp: time.Now()})
	reporter.Close()
}

func TestChannelReporter(t *testing.T) {
	reporter := NewChannelReporter(10)
	require.NotNil(t, reporter)

	event := Event{
		Command:   "build",
		Type:      EventStarted,
		Message:   "Test started",
		Timestamp: time.Now(),
	}

	reporter.Report(event)

	select {
	case received := <-reporter.Events():
		assert.Equal(t, event.Command, received.Command)
		assert.Equal(t, event.Type, received.Type)
		assert.Equal(t, event.Message, received.Message)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Event not received within timeout")
	}

	reporter.Close()

	// Reporting after close must not panic
	reporter.Report(Event{Type: EventCompleted, Message: "Should be dropped"})
	reporter.Close()

	_, ok := <-reporter.Events()
	assert.False(t, ok, "channel should be closed")
}

func TestChannelReporter_BufferOverflow(t *testing.T) {
	reporter := NewChannelReporter(1)

	reporter.Report(Event{Type: EventStarted, Message: "Event 1"})
	// This should not block due to the non-blocking send
	reporter.Report(Event{Type: EventCompleted, Message: "Event 2"})

	reporter.Close()

	var got []Event
	for e := range reporter.Events() {
		got = append(got, e)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "Event 1", got[0].Message)
}

func TestChannelReporter_ConcurrentReportAndClose(t *testing.T) {
	reporter := NewChannelReporter(4)

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				reporter.Report(Event{Type: EventStarted, Attempt: i})
			}
		}()
	}

	reporter.Close()
	wg.Wait()
}

type mockListener struct {
	mu     sync.Mutex
	events []Event
}

func (ml *mockListener) OnEvent(event Event) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.events = append(ml.events, event)
}

func TestChannelReporter_Listen(t *testing.T) {
	reporter := NewChannelReporter(10)
	listener := &mockListener{}

	reporter.Listen(listener)

	events := []Event{
		{Command: "a", Type: EventStarted, Message: "started"},
		{Command: "a", Type: EventCompleted, Message: "done"},
	}

	for _, event := range events {
		reporter.Report(event)
	}

	// Close waits for the listener to drain the channel
	reporter.Close()

	require.Len(t, listener.events, len(events))

	for i, expected := range events {
		assert.Equal(t, expected.Type, listener.events[i].Type)
		assert.Equal(t, expected.Message, listener.events[i].Message)
	}
}

func TestFanout(t *testing.T) {
	a := NewChannelReporter(2)
	b := NewChannelReporter(2)
	f := Fanout{a, b}

	f.Report(Event{Command: "x", Type: EventSkipped})
	f.Close()

	for _, r := range []*ChannelReporter{a, b} {
		e, ok := <-r.Events()
		require.True(t, ok)
		assert.Equal(t, "x", e.Command)
	}
}
