// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog provides a context-aware logger built on log/slog.
//
// The default is a pretty console handler writing to stderr. The level comes from the
// environment variable named after the executable, e.g. BATCHRUNNER_LOG_LEVEL, and
// defaults to WARN. NewLogger combines the console handler with a plain text log file.
package ctxlog
