// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
)

// Aggregator collects results on a single goroutine that owns the collection.
// Producers send with Add; Close stops the goroutine and returns what was collected.
type Aggregator struct {
	in       chan *Result
	done     chan struct{}
	results  map[string]*Result
	rejected []string
	ctx      context.Context
}

// NewAggregator starts the collecting goroutine. The buffer sizes the input channel.
func NewAggregator(ctx context.Context, buffer int) *Aggregator {
	a := &Aggregator{
		in:      make(chan *Result, max(buffer, 1)),
		done:    make(chan struct{}),
		results: make(map[string]*Result, buffer),
		ctx:     ctx,
	}

	go a.loop()

	return a
}

// Add hands a result to the aggregator. It must not be called after Close.
func (a *Aggregator) Add(r *Result) {
	a.in <- r
}

// Close waits for all sent results to be stored and returns them keyed by name,
// together with the names of rejected duplicates.
func (a *Aggregator) Close() (map[string]*Result, []string) {
	close(a.in)
	<-a.done

	return a.results, a.rejected
}

func (a *Aggregator) loop() {
	defer close(a.done)

	for r := range a.in {
		if _, dup := a.results[r.Name]; dup {
			ctxlog.Error(a.ctx, "duplicate result rejected", "command", r.Name)
			a.rejected = append(a.rejected, r.Name)

			continue
		}

		a.results[r.Name] = r
	}
}
