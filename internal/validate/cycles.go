// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package validate

import (
	"slices"
	"strings"

	"github.com/DonkRonk17/batchrunner/internal/registry"
)

type visitColour int

const (
	white visitColour = iota // not visited
	grey                     // on the current DFS path
	black                    // fully explored
)

// findCycles runs a coloured depth-first search from every command in insertion order.
// Each returned cycle starts and ends with the same name, following dependsOn edges.
// A cycle is reported once regardless of which member the search entered it from.
func findCycles(reg *registry.Registry) [][]string {
	colour := make(map[string]visitColour, reg.Len())
	reported := make(map[string]struct{})
	path := make([]string, 0, reg.Len())

	var cycles [][]string

	var visit func(name string)
	visit = func(name string) {
		colour[name] = grey
		path = append(path, name)

		for _, dep := range edges(reg, name) {
			switch colour[dep] {
			case white:
				visit(dep)
			case grey:
				start := slices.Index(path, dep)
				members := slices.Clone(path[start:])

				key := cycleKey(members)
				if _, ok := reported[key]; ok {
					continue
				}

				reported[key] = struct{}{}
				cycles = append(cycles, append(members, dep))
			case black:
			}
		}

		path = path[:len(path)-1]
		colour[name] = black
	}

	for _, name := range reg.Names() {
		if name == "" || colour[name] != white {
			continue
		}

		visit(name)
	}

	return cycles
}

// cycleKey rotates the members so the smallest name is first, giving one key per cycle.
func cycleKey(members []string) string {
	if len(members) == 0 {
		return ""
	}

	start := 0

	for i, m := range members {
		if m < members[start] {
			start = i
		}
	}

	rotated := slices.Concat(members[start:], members[:start])

	return strings.Join(rotated, "\x00")
}
