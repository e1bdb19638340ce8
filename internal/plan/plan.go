// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package plan turns a validated command registry into ordered execution levels.
// Every command appears in exactly one level and all of its dependencies appear in strictly earlier levels.
package plan

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/DonkRonk17/batchrunner/internal/validate"
)

// ErrUnplannable is returned when the registry fails validation and cannot be levelled.
var ErrUnplannable = errors.New("command registry cannot be planned")

// Level is a set of commands that may run concurrently.
type Level struct {
	Index    int      // Zero based position of the level in the plan
	Commands []string // Command names in registry insertion order
}

// ExecutionPlan is the ordered list of levels for one run.
type ExecutionPlan struct {
	Levels []Level
}

// Build validates the registry and assigns each command to a level using Kahn's algorithm.
// The level of a command is the length of the longest dependency chain ending at it.
func Build(reg *registry.Registry) (*ExecutionPlan, error) {
	if err := validate.Validate(reg); err != nil {
		return nil, errors.Join(ErrUnplannable, err)
	}

	names := reg.Names()
	indegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	level := make(map[string]int, len(names))

	for _, name := range names {
		spec, _ := reg.Lookup(name)

		deps := slices.Compact(slices.Sorted(slices.Values(spec.DependsOn)))
		indegree[name] = len(deps)

		for _, d := range deps {
			dependents[d] = append(dependents[d], name)
		}
	}

	queue := make([]string, 0, len(names))

	for _, name := range names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	processed := 0

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		processed++

		for _, d := range dependents[n] {
			level[d] = max(level[d], level[n]+1)

			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	// Unreachable once validation has rejected cycles.
	if processed != len(names) {
		return nil, fmt.Errorf("%w: %d of %d commands could not be levelled", ErrUnplannable, len(names)-processed, len(names))
	}

	depth := 0
	for _, name := range names {
		depth = max(depth, level[name]+1)
	}

	p := &ExecutionPlan{Levels: make([]Level, depth)}
	for i := range p.Levels {
		p.Levels[i].Index = i
	}

	for _, name := range names {
		l := level[name]
		p.Levels[l].Commands = append(p.Levels[l].Commands, name)
	}

	return p, nil
}

// Parallel returns a single level holding every command of the registry, ignoring dependencies.
// It is the plan for the flat parallel form.
func Parallel(reg *registry.Registry) *ExecutionPlan {
	if reg.Len() == 0 {
		return &ExecutionPlan{}
	}

	return &ExecutionPlan{
		Levels: []Level{{Index: 0, Commands: reg.Names()}},
	}
}

// Sequential returns one single-command level per command, in registry order.
// It is the plan for the flat sequential form.
func Sequential(reg *registry.Registry) *ExecutionPlan {
	return Serialize(Parallel(reg))
}

// Serialize splits every level into single-command levels, preserving order.
func Serialize(p *ExecutionPlan) *ExecutionPlan {
	out := &ExecutionPlan{Levels: make([]Level, 0, p.CommandCount())}

	for _, l := range p.Levels {
		for _, name := range l.Commands {
			out.Levels = append(out.Levels, Level{
				Index:    len(out.Levels),
				Commands: []string{name},
			})
		}
	}

	return out
}

// Len returns the number of levels.
func (p *ExecutionPlan) Len() int {
	return len(p.Levels)
}

// CommandCount returns the total number of commands across all levels.
func (p *ExecutionPlan) CommandCount() int {
	n := 0
	for _, l := range p.Levels {
		n += len(l.Commands)
	}

	return n
}

// LevelOf returns the level index of the named command, or -1.
func (p *ExecutionPlan) LevelOf(name string) int {
	for _, l := range p.Levels {
		if slices.Contains(l.Commands, name) {
			return l.Index
		}
	}

	return -1
}

// Names returns every command name in plan order.
func (p *ExecutionPlan) Names() []string {
	out := make([]string, 0, p.CommandCount())
	for _, l := range p.Levels {
		out = append(out, l.Commands...)
	}

	return out
}
