// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package registry holds the set of command specifications for one batch and exposes lookup by name.
// Insertion order is preserved because it decides the display order of commands within a level.
package registry
