// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries live execution events from the batch executor to the console or the TUI.
// Reporting never blocks execution: events that cannot be delivered are dropped.
package progress
