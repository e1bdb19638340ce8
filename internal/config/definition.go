// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNoCommands is returned when a configuration defines no commands.
	ErrNoCommands = errors.New("no commands specified")
	// ErrInvalidDuration is returned when a duration field cannot be parsed.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidSettings is returned when a batch setting has an unsupported value.
	ErrInvalidSettings = errors.New("invalid batch settings")
)

// Definition represents the root configuration structure of a batch file.
type Definition struct {
	// Name is the descriptive name of the batch.
	Name string `yaml:"name,omitempty" hcl:"name,optional" docdesc:"Descriptive name of the batch"`
	// Description is free text describing the batch.
	Description string `yaml:"description,omitempty" hcl:"description,optional" docdesc:"Free text describing the batch"`
	// Settings are run-wide options. Command line flags take precedence.
	Settings *Settings `yaml:"settings,omitempty" hcl:"settings,block" docdesc:"Run-wide options, command line flags take precedence"`
	// Defaults are applied to every command that does not set the field itself.
	Defaults *CommandDefaults `yaml:"defaults,omitempty" hcl:"defaults,block" docdesc:"Policies applied to every command that does not set them"`
	// Commands are the units of work, in order.
	Commands []CommandDefinition `yaml:"commands" hcl:"command,block" docdesc:"Commands to run, in order"`
}

// Settings are the run-wide options a batch file may carry.
type Settings struct {
	OnFailure          string `yaml:"on_failure,omitempty" hcl:"on_failure,optional" docdesc:"Batch failure strategy" docenum:"abort,continue"`
	MaxWorkers         int    `yaml:"max_workers,omitempty" hcl:"max_workers,optional" docdesc:"Maximum number of commands running at once"`
	GlobalTimeout      string `yaml:"global_timeout,omitempty" hcl:"global_timeout,optional" docdesc:"Deadline for the whole run" doctype:"duration"`
	StrictDependencies bool   `yaml:"strict_dependencies,omitempty" hcl:"strict_dependencies,optional" docdesc:"Skip commands whose dependencies did not succeed"`
}

// CommandDefaults are the per-command policies a batch file may set once for all commands.
type CommandDefaults struct {
	WorkingDir    string            `yaml:"working_dir,omitempty" hcl:"working_dir,optional" docdesc:"Working directory"`
	Env           map[string]string `yaml:"env,omitempty" hcl:"env,optional" docdesc:"Environment variables added to the process environment"`
	IsolateEnv    bool              `yaml:"isolate_env,omitempty" hcl:"isolate_env,optional" docdesc:"Start from an empty environment instead of the process environment"`
	Timeout       string            `yaml:"timeout,omitempty" hcl:"timeout,optional" docdesc:"Timeout per attempt, zero for none" doctype:"duration"`
	RetryCount    int               `yaml:"retry_count,omitempty" hcl:"retry_count,optional" docdesc:"Retries after the first attempt"`
	RetryDelay    string            `yaml:"retry_delay,omitempty" hcl:"retry_delay,optional" docdesc:"Delay between attempts" doctype:"duration"`
	OnFailure     string            `yaml:"on_failure,omitempty" hcl:"on_failure,optional" docdesc:"Failure strategy, the batch strategy when empty" docenum:"abort,continue,retry"`
	RetryFallback string            `yaml:"retry_fallback,omitempty" hcl:"retry_fallback,optional" docdesc:"Strategy once retries are exhausted" docenum:"abort,continue"`
}

// CommandDefinition is the file form of a registry.CommandSpec.
// Durations accept Go duration strings ("1m30s") or a number of seconds.
type CommandDefinition struct {
	Name          string            `yaml:"name" hcl:"name,label" docdesc:"Unique name of the command"`
	Command       string            `yaml:"command" hcl:"command,optional" docdesc:"Shell command line"`
	DependsOn     []string          `yaml:"depends_on,omitempty" hcl:"depends_on,optional" docdesc:"Names of commands that must finish first"`
	WorkingDir    string            `yaml:"working_dir,omitempty" hcl:"working_dir,optional" docdesc:"Working directory"`
	Env           map[string]string `yaml:"env,omitempty" hcl:"env,optional" docdesc:"Environment variables added to the process environment"`
	IsolateEnv    bool              `yaml:"isolate_env,omitempty" hcl:"isolate_env,optional" docdesc:"Start from an empty environment instead of the process environment"`
	Timeout       string            `yaml:"timeout,omitempty" hcl:"timeout,optional" docdesc:"Timeout per attempt, zero for none" doctype:"duration"`
	RetryCount    int               `yaml:"retry_count,omitempty" hcl:"retry_count,optional" docdesc:"Retries after the first attempt"`
	RetryDelay    string            `yaml:"retry_delay,omitempty" hcl:"retry_delay,optional" docdesc:"Delay between attempts" doctype:"duration"`
	OnFailure     string            `yaml:"on_failure,omitempty" hcl:"on_failure,optional" docdesc:"Failure strategy, the batch strategy when empty" docenum:"abort,continue,retry"`
	RetryFallback string            `yaml:"retry_fallback,omitempty" hcl:"retry_fallback,optional" docdesc:"Strategy once retries are exhausted" docenum:"abort,continue"`
}

// Registry converts the definition into a command registry, applying Defaults.
// Every conversion error is reported, not only the first.
func (d *Definition) Registry() (*registry.Registry, error) {
	return d.RegistryWith(CommandDefaults{})
}

// RegistryWith is Registry with fallback filling whatever neither a command nor Defaults set.
// An explicit zero in the file, such as timeout: 0, counts as set.
func (d *Definition) RegistryWith(fallback CommandDefaults) (*registry.Registry, error) {
	if len(d.Commands) == 0 {
		return nil, ErrNoCommands
	}

	var result error

	defs := fallback
	if d.Defaults != nil {
		defs = d.Defaults.Over(fallback)
	}

	reg := registry.New()

	for i, c := range d.Commands {
		spec, err := c.withDefaults(defs).spec()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("command %d (%q): %w", i+1, c.Name, err))
			continue
		}

		reg.Add(spec)
	}

	if result != nil {
		return nil, result
	}

	return reg, nil
}

// Over returns d with the fields it leaves empty taken from lower. Env maps are merged with d winning.
func (d CommandDefaults) Over(lower CommandDefaults) CommandDefaults {
	d.WorkingDir = firstNonEmpty(d.WorkingDir, lower.WorkingDir)
	d.Timeout = firstNonEmpty(d.Timeout, lower.Timeout)
	d.RetryDelay = firstNonEmpty(d.RetryDelay, lower.RetryDelay)
	d.OnFailure = firstNonEmpty(d.OnFailure, lower.OnFailure)
	d.RetryFallback = firstNonEmpty(d.RetryFallback, lower.RetryFallback)
	d.IsolateEnv = d.IsolateEnv || lower.IsolateEnv

	if d.RetryCount == 0 {
		d.RetryCount = lower.RetryCount
	}

	if len(lower.Env) > 0 {
		env := maps.Clone(lower.Env)
		maps.Copy(env, d.Env)
		d.Env = env
	}

	return d
}

// withDefaults fills the zero fields of c from defs. Env maps are merged with c winning.
func (c CommandDefinition) withDefaults(defs CommandDefaults) CommandDefinition {
	c.WorkingDir = firstNonEmpty(c.WorkingDir, defs.WorkingDir)
	c.Timeout = firstNonEmpty(c.Timeout, defs.Timeout)
	c.RetryDelay = firstNonEmpty(c.RetryDelay, defs.RetryDelay)
	c.OnFailure = firstNonEmpty(c.OnFailure, defs.OnFailure)
	c.RetryFallback = firstNonEmpty(c.RetryFallback, defs.RetryFallback)
	c.IsolateEnv = c.IsolateEnv || defs.IsolateEnv

	if c.RetryCount == 0 {
		c.RetryCount = defs.RetryCount
	}

	if len(defs.Env) > 0 {
		env := maps.Clone(defs.Env)
		maps.Copy(env, c.Env)
		c.Env = env
	}

	return c
}

func (c CommandDefinition) spec() (registry.CommandSpec, error) {
	var result error

	timeout, err := ParseDuration(c.Timeout)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("timeout: %w", err))
	}

	delay, err := ParseDuration(c.RetryDelay)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("retry_delay: %w", err))
	}

	strategy, err := registry.NewFailureStrategy(c.OnFailure)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("on_failure %q: %w", c.OnFailure, err))
	}

	fallback, err := registry.NewFailureStrategy(c.RetryFallback)
	if err == nil && fallback == registry.FailureStrategyRetry {
		err = registry.ErrFailureStrategyUnknown
	}

	if err != nil {
		result = multierror.Append(result, fmt.Errorf("retry_fallback %q: %w", c.RetryFallback, err))
	}

	if c.RetryCount < 0 {
		result = multierror.Append(result, fmt.Errorf("retry_count must not be negative, got %d", c.RetryCount))
	}

	if result != nil {
		return registry.CommandSpec{}, result
	}

	return registry.CommandSpec{
		Name:            c.Name,
		Command:         c.Command,
		DependsOn:       c.DependsOn,
		WorkingDir:      c.WorkingDir,
		Env:             c.Env,
		IsolateEnv:      c.IsolateEnv,
		Timeout:         timeout,
		RetryCount:      c.RetryCount,
		RetryDelay:      delay,
		FailureStrategy: strategy,
		RetryFallback:   fallback,
	}, nil
}

// AbortOnFailure resolves the batch default failure strategy. ok is false when the file does not set one.
func (s *Settings) AbortOnFailure() (abort bool, ok bool, err error) {
	if s == nil || s.OnFailure == "" {
		return false, false, nil
	}

	fs, err := registry.NewFailureStrategy(s.OnFailure)

	switch {
	case err != nil:
	case fs == registry.FailureStrategyAbort:
		return true, true, nil
	case fs == registry.FailureStrategyContinue:
		return false, true, nil
	}

	return false, false, fmt.Errorf("%w: on_failure must be abort or continue, got %q", ErrInvalidSettings, s.OnFailure)
}

// ParseDuration parses a Go duration string or a plain number of seconds. The empty string is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDuration, s)
		}

		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	if d < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDuration, s)
	}

	return d, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}

	return b
}
