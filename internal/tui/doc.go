// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a live terminal view of a batch run. Commands are grouped by
// execution level and show their state, attempt count and elapsed time as progress
// events arrive. Pressing q or ctrl+c while the batch is running interrupts it.
package tui
