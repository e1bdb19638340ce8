// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color decorates console output with ANSI escape codes.
// Color is enabled when stdout is a terminal, unless NO_COLOR is set; FORCE_COLOR enables it regardless.
package color
