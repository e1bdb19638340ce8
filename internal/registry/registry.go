// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package registry

import (
	"fmt"
	"iter"
	"slices"
)

// flatNameFormat names commands from the flat form, which carries no names of its own.
const flatNameFormat = "cmd-%d"

// Registry holds the command specs of one batch in insertion order.
// Duplicate names are kept so that validation can report them; lookups resolve to the first entry.
type Registry struct {
	specs []CommandSpec
	index map[string]int
}

// New creates a registry from the given specs, preserving their order.
func New(specs ...CommandSpec) *Registry {
	r := &Registry{
		specs: make([]CommandSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	for _, s := range specs {
		r.Add(s)
	}

	return r
}

// FromCommandLines creates a registry from bare command strings.
// Commands are named cmd-1, cmd-2, ... and have no dependencies.
func FromCommandLines(lines []string) *Registry {
	r := New()
	for i, l := range lines {
		r.Add(CommandSpec{
			Name:    fmt.Sprintf(flatNameFormat, i+1),
			Command: l,
		})
	}

	return r
}

// Add appends a copy of the spec to the registry.
func (r *Registry) Add(spec CommandSpec) {
	if _, ok := r.index[spec.Name]; !ok {
		r.index[spec.Name] = len(r.specs)
	}

	r.specs = append(r.specs, spec.Clone())
}

// Lookup returns the spec with the given name.
func (r *Registry) Lookup(name string) (CommandSpec, bool) {
	i, ok := r.index[name]
	if !ok {
		return CommandSpec{}, false
	}

	return r.specs[i].Clone(), true
}

// Has reports whether a command with the given name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Len returns the number of specs, including duplicates.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Names returns the command names in insertion order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		names = append(names, s.Name)
	}

	return names
}

// All iterates over the specs in insertion order. The yielded values are copies.
func (r *Registry) All() iter.Seq2[int, CommandSpec] {
	return func(yield func(int, CommandSpec) bool) {
		for i, s := range r.specs {
			if !yield(i, s.Clone()) {
				return
			}
		}
	}
}

// Specs returns a copy of all specs in insertion order.
func (r *Registry) Specs() []CommandSpec {
	out := make([]CommandSpec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s.Clone())
	}

	return out
}

// Position returns the insertion index of the named command, or -1.
func (r *Registry) Position(name string) int {
	i, ok := r.index[name]
	if !ok {
		return -1
	}

	return i
}

// Map applies fn to every spec and returns the resulting registry.
// It is used to apply batch-wide defaults without mutating the original.
func (r *Registry) Map(fn func(CommandSpec) CommandSpec) *Registry {
	out := New()
	for s := range slices.Values(r.specs) {
		out.Add(fn(s.Clone()))
	}

	return out
}
