// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runbatch executes an execution plan level by level.
//
// Each level runs concurrently on a shared, bounded worker pool and is followed by a barrier.
// Every command attempt is one shell subprocess in its own process group, with a timeout,
// captured output and a retry state machine. Results flow over a channel to a single
// aggregator goroutine; the Summary computes statistics from them on demand.
package runbatch
