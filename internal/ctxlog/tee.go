// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

var _ slog.Handler = (*TeeHandler)(nil)

// TeeHandler sends each record to every handler that is enabled for its level.
type TeeHandler struct {
	handlers []slog.Handler
}

// NewTeeHandler creates a handler fanning out to the given handlers.
func NewTeeHandler(handlers ...slog.Handler) *TeeHandler {
	return &TeeHandler{handlers: handlers}
}

// Enabled reports whether any of the handlers is enabled for the level.
func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle passes a clone of the record to each enabled handler and joins their errors.
func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error

	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}

		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithAttrs(attrs)
	}

	return &TeeHandler{handlers: out}
}

// WithGroup implements slog.Handler.
func (t *TeeHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithGroup(name)
	}

	return &TeeHandler{handlers: out}
}

// Options configures NewLogger.
type Options struct {
	Console io.Writer    // Pretty console destination, nil disables console logging
	File    io.Writer    // Plain text log destination, nil disables file logging
	Level   slog.Leveler // Minimum level, defaults to LevelVar
	Colour  bool         // Colour the console output
}

// NewLogger builds a logger writing to the console, a log file, both, or neither.
func NewLogger(opts Options) *slog.Logger {
	level := opts.Level
	if level == nil {
		level = LevelVar
	}

	var handlers []slog.Handler

	if opts.Console != nil {
		po := []Option{WithDestinationWriter(opts.Console)}
		if opts.Colour {
			po = append(po, WithColour())
		}

		handlers = append(handlers, NewPrettyHandler(&slog.HandlerOptions{Level: level}, po...))
	}

	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, &slog.HandlerOptions{Level: level}))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.DiscardHandler)
	case 1:
		return slog.New(handlers[0])
	default:
		return slog.New(NewTeeHandler(handlers...))
	}
}
