// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandler_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		level   slog.Level
		options *slog.HandlerOptions
		want    bool
	}{
		{
			name:    "debug level with debug handler",
			level:   slog.LevelDebug,
			options: &slog.HandlerOptions{Level: slog.LevelDebug},
			want:    true,
		},
		{
			name:    "debug level with info handler",
			level:   slog.LevelDebug,
			options: &slog.HandlerOptions{Level: slog.LevelInfo},
			want:    false,
		},
		{
			name:    "error level with warn handler",
			level:   slog.LevelError,
			options: &slog.HandlerOptions{Level: slog.LevelWarn},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPrettyHandler(tt.options)
			assert.Equal(t, tt.want, handler.Enabled(context.Background(), tt.level))
		})
	}
}

func TestPrettyHandler_WithAttrsSharesBuffer(t *testing.T) {
	handler := NewPrettyHandler(&slog.HandlerOptions{})

	withAttrs, ok := handler.WithAttrs([]slog.Attr{slog.String("key1", "value1")}).(*PrettyHandler)
	require.True(t, ok)
	assert.Same(t, handler.b, withAttrs.b)
	assert.Same(t, handler.m, withAttrs.m)

	withGroup, ok := handler.WithGroup("grp").(*PrettyHandler)
	require.True(t, ok)
	assert.Same(t, handler.b, withGroup.b)
}

func TestPrettyHandler_Handle(t *testing.T) {
	tests := []struct {
		name           string
		level          slog.Level
		message        string
		attrs          []any
		options        []Option
		expectInOutput []string
		notInOutput    []string
	}{
		{
			name:           "basic info message",
			level:          slog.LevelInfo,
			message:        "test message",
			expectInOutput: []string{"INFO:", "test message"},
			notInOutput:    []string{"{}", "\033["},
		},
		{
			name:           "debug message with attributes",
			level:          slog.LevelDebug,
			message:        "debug message",
			attrs:          []any{"command", "build", "attempt", 2},
			expectInOutput: []string{"DEBUG:", "debug message", `"command": "build"`, `"attempt": 2`},
		},
		{
			name:           "error message",
			level:          slog.LevelError,
			message:        "error message",
			expectInOutput: []string{"ERROR:", "error message"},
		},
		{
			name:           "message with empty attrs output enabled",
			level:          slog.LevelInfo,
			message:        "test message",
			options:        []Option{WithOutputEmptyAttrs()},
			expectInOutput: []string{"INFO:", "{}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			opts := append([]Option{WithDestinationWriter(&buf)}, tt.options...)
			handler := NewPrettyHandler(&slog.HandlerOptions{Level: slog.LevelDebug}, opts...)

			record := slog.NewRecord(time.Now(), tt.level, tt.message, 0)
			record.Add(tt.attrs...)

			require.NoError(t, handler.Handle(context.Background(), record))

			output := buf.String()
			for _, expected := range tt.expectInOutput {
				assert.Contains(t, output, expected)
			}

			for _, unexpected := range tt.notInOutput {
				assert.NotContains(t, output, unexpected)
			}

			assert.True(t, len(output) > 0 && output[len(output)-1] == '\n', "output should end with newline")
		})
	}
}

func TestPrettyHandler_Handle_WithReplaceAttr(t *testing.T) {
	var buf bytes.Buffer

	replaceAttr := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{}
		}

		if a.Key == "secret" {
			return slog.String("secret", "[REDACTED]")
		}

		return a
	}

	handler := NewPrettyHandler(&slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceAttr,
	}, WithDestinationWriter(&buf))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test message", 0)
	record.Add("secret", "password123", "public", "data")

	require.NoError(t, handler.Handle(context.Background(), record))

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, "password123")
	assert.Contains(t, output, "public")
	assert.Regexp(t, `^INFO: `, output)
}

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("inner failure") }
func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return f }
func (f failingHandler) WithGroup(string) slog.Handler           { return f }

func TestPrettyHandler_computeAttrs_Error(t *testing.T) {
	handler := &PrettyHandler{
		h: failingHandler{},
		b: &bytes.Buffer{},
		m: &sync.Mutex{},
	}

	_, err := handler.computeAttrs(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inner failure")
}

func TestSuppressDefaults(t *testing.T) {
	suppress := suppressDefaults(func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == "transform" {
			return slog.String("transform", "transformed")
		}

		return a
	})

	assert.True(t, suppress(nil, slog.Time(slog.TimeKey, time.Now())).Equal(slog.Attr{}))
	assert.True(t, suppress(nil, slog.Any(slog.LevelKey, slog.LevelInfo)).Equal(slog.Attr{}))
	assert.True(t, suppress(nil, slog.String(slog.MessageKey, "m")).Equal(slog.Attr{}))
	assert.True(t, suppress([]string{"grp"}, slog.String(slog.MessageKey, "m")).Equal(slog.String(slog.MessageKey, "m")))
	assert.True(t, suppress(nil, slog.String("transform", "x")).Equal(slog.String("transform", "transformed")))
}
