// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package validate checks a command registry for dependency problems before anything is executed.
// It reports unknown dependencies, self-dependencies, duplicate names, missing fields and cycles.
package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/hashicorp/go-multierror"
)

const cycleSeparator = " -> "

// Kind identifies the class of a ValidationError.
type Kind int

const (
	// KindUnknownDependency means a dependency names a command that does not exist.
	KindUnknownDependency Kind = iota
	// KindSelfDependency means a command depends on itself.
	KindSelfDependency
	// KindCycle means a closed chain of dependencies exists.
	KindCycle
	// KindDuplicateName means two commands share a name.
	KindDuplicateName
	// KindEmptyName means a command has no name.
	KindEmptyName
	// KindEmptyCommand means a command has no command line.
	KindEmptyCommand
)

var (
	// ErrUnknownDependency is the sentinel for KindUnknownDependency.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrSelfDependency is the sentinel for KindSelfDependency.
	ErrSelfDependency = errors.New("self dependency")
	// ErrCycle is the sentinel for KindCycle.
	ErrCycle = errors.New("circular dependency detected")
	// ErrDuplicateName is the sentinel for KindDuplicateName.
	ErrDuplicateName = errors.New("duplicate command name")
	// ErrEmptyName is the sentinel for KindEmptyName.
	ErrEmptyName = errors.New("command name is empty")
	// ErrEmptyCommand is the sentinel for KindEmptyCommand.
	ErrEmptyCommand = errors.New("command line is empty")
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindUnknownDependency:
		return "UnknownDependency"
	case KindSelfDependency:
		return "SelfDependency"
	case KindCycle:
		return "Cycle"
	case KindDuplicateName:
		return "DuplicateName"
	case KindEmptyName:
		return "EmptyName"
	case KindEmptyCommand:
		return "EmptyCommand"
	default:
		return "Unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnknownDependency:
		return ErrUnknownDependency
	case KindSelfDependency:
		return ErrSelfDependency
	case KindCycle:
		return ErrCycle
	case KindDuplicateName:
		return ErrDuplicateName
	case KindEmptyName:
		return ErrEmptyName
	case KindEmptyCommand:
		return ErrEmptyCommand
	default:
		return nil
	}
}

// ValidationError describes one problem found in a command registry.
type ValidationError struct {
	Kind       Kind
	Command    string   // The offending command, empty for cycles
	Dependency string   // The unresolved dependency, for KindUnknownDependency
	Cycle      []string // The closed chain, first name repeated at the end, for KindCycle
	Position   int      // Insertion index of the offending command, -1 for cycles
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindUnknownDependency:
		return fmt.Sprintf("%s: command %q depends on %q", ErrUnknownDependency, e.Command, e.Dependency)
	case KindSelfDependency:
		return fmt.Sprintf("%s: command %q depends on itself", ErrSelfDependency, e.Command)
	case KindCycle:
		return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Cycle, cycleSeparator))
	case KindDuplicateName:
		return fmt.Sprintf("%s: %q", ErrDuplicateName, e.Command)
	case KindEmptyName:
		return fmt.Sprintf("%s: command at position %d", ErrEmptyName, e.Position+1)
	case KindEmptyCommand:
		return fmt.Sprintf("%s: command %q", ErrEmptyCommand, e.Command)
	default:
		return "unknown validation error"
	}
}

// Unwrap returns the sentinel error for the kind, so errors.Is works against it.
func (e *ValidationError) Unwrap() error {
	return e.Kind.sentinel()
}

// Result is the outcome of validating a registry.
type Result struct {
	Errors []*ValidationError
}

// Valid reports whether no problems were found.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns all validation errors aggregated into one error, or nil when valid.
func (r Result) Err() error {
	var merr *multierror.Error
	for _, e := range r.Errors {
		merr = multierror.Append(merr, e)
	}

	if merr == nil {
		return nil
	}

	merr.ErrorFormat = formatErrors

	return merr.ErrorOrNil()
}

// OfKind returns the errors of the given kind.
func (r Result) OfKind(k Kind) []*ValidationError {
	var out []*ValidationError

	for _, e := range r.Errors {
		if e.Kind == k {
			out = append(out, e)
		}
	}

	return out
}

// Validate checks the registry and returns nil or the aggregated validation errors.
func Validate(reg *registry.Registry) error {
	return Check(reg).Err()
}

// Errors extracts the individual validation errors from an error returned by Validate.
func Errors(err error) []*ValidationError {
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]*ValidationError, 0, len(merr.Errors))

		for _, e := range merr.Errors {
			var ve *ValidationError
			if errors.As(e, &ve) {
				out = append(out, ve)
			}
		}

		return out
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return []*ValidationError{ve}
	}

	return nil
}

// Check validates the registry. It never executes anything.
func Check(reg *registry.Registry) Result {
	var res Result

	seen := make(map[string]struct{}, reg.Len())

	for i, spec := range reg.All() {
		if spec.Name == "" {
			res.Errors = append(res.Errors, &ValidationError{Kind: KindEmptyName, Position: i})
			continue
		}

		if strings.TrimSpace(spec.Command) == "" {
			res.Errors = append(res.Errors, &ValidationError{Kind: KindEmptyCommand, Command: spec.Name, Position: i})
		}

		if _, dup := seen[spec.Name]; dup {
			res.Errors = append(res.Errors, &ValidationError{Kind: KindDuplicateName, Command: spec.Name, Position: i})
			continue
		}

		seen[spec.Name] = struct{}{}

		for _, dep := range spec.DependsOn {
			switch {
			case dep == spec.Name:
				res.Errors = append(res.Errors, &ValidationError{Kind: KindSelfDependency, Command: spec.Name, Position: i})
			case !reg.Has(dep):
				res.Errors = append(res.Errors, &ValidationError{
					Kind:       KindUnknownDependency,
					Command:    spec.Name,
					Dependency: dep,
					Position:   i,
				})
			}
		}
	}

	for _, c := range findCycles(reg) {
		res.Errors = append(res.Errors, &ValidationError{Kind: KindCycle, Cycle: c, Position: -1})
	}

	return res
}

func formatErrors(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, "  * "+e.Error())
	}

	return fmt.Sprintf("%d validation errors occurred:\n%s", len(errs), strings.Join(lines, "\n"))
}

// edges returns the resolvable, de-duplicated dependencies of a command.
// Self references and unknown names are reported elsewhere and excluded from the traversal.
func edges(reg *registry.Registry, name string) []string {
	spec, ok := reg.Lookup(name)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(spec.DependsOn))

	for _, dep := range spec.DependsOn {
		if dep == name || !reg.Has(dep) || slices.Contains(out, dep) {
			continue
		}

		out = append(out, dep)
	}

	return out
}
