// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

const commentPrefix = "#"

var (
	// ErrInvalidYaml is returned when a YAML or JSON document cannot be decoded.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrInvalidHCL is returned when an HCL document cannot be parsed or decoded.
	ErrInvalidHCL = errors.New("invalid HCL")
)

// Source is a parsed batch file. Exactly one of Definition and Lines is set.
type Source struct {
	Name       string      // Where the source was read from
	Definition *Definition // Structured form
	Lines      []string    // Flat form
}

// Flat reports whether the source is a plain list of command lines.
func (s *Source) Flat() bool {
	return s.Definition == nil
}

// Registry converts the source into a command registry.
func (s *Source) Registry() (*registry.Registry, error) {
	return s.RegistryWith(CommandDefaults{})
}

// RegistryWith converts the source into a command registry, taking the policies the source
// does not set from fallback. Flat sources set none.
func (s *Source) RegistryWith(fallback CommandDefaults) (*registry.Registry, error) {
	if !s.Flat() {
		return s.Definition.RegistryWith(fallback)
	}

	if len(s.Lines) == 0 {
		return nil, ErrNoCommands
	}

	base, err := CommandDefinition{}.withDefaults(fallback).spec()
	if err != nil {
		return nil, err
	}

	return registry.FromCommandLines(s.Lines).Map(func(c registry.CommandSpec) registry.CommandSpec {
		spec := base.Clone()
		spec.Name, spec.Command = c.Name, c.Command

		return spec
	}), nil
}

// ParseYAML decodes a YAML or JSON document. A top-level list of strings is the flat form,
// anything else must be a Definition. Unknown fields are rejected.
func ParseYAML(data []byte) (*Source, error) {
	var lines []string
	if err := yaml.Unmarshal(data, &lines); err == nil {
		return &Source{Lines: trimLines(lines)}, nil
	}

	def := new(Definition)
	if err := yaml.UnmarshalWithOptions(data, def, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidYaml, yaml.FormatError(err, false, true))
	}

	return &Source{Definition: def}, nil
}

// ParseHCL decodes an HCL document. Expressions may use the env object and a set of string and
// collection functions, for example upper(env.USER) or join(" ", ["a", "b"]).
func ParseHCL(data []byte, filename string) (*Source, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.Join(ErrInvalidHCL, diags)
	}

	def := new(Definition)
	if diags := gohcl.DecodeBody(file.Body, evalContext(), def); diags.HasErrors() {
		return nil, errors.Join(ErrInvalidHCL, diags)
	}

	return &Source{Definition: def}, nil
}

// ParseLines reads the flat text form: one command per line, ignoring blank lines and # comments.
func ParseLines(data []byte) []string {
	var out []string

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), len(data)+1)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		out = append(out, line)
	}

	return out
}

func trimLines(lines []string) []string {
	out := make([]string, 0, len(lines))

	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}

	return out
}

// evalContext is the HCL evaluation context: env.NAME for the process environment plus string functions.
func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !hclsyntax.ValidIdentifier(k) {
			continue
		}

		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
		Functions: map[string]function.Function{
			"chomp":     stdlib.ChompFunc,
			"coalesce":  stdlib.CoalesceFunc,
			"concat":    stdlib.ConcatFunc,
			"format":    stdlib.FormatFunc,
			"join":      stdlib.JoinFunc,
			"lower":     stdlib.LowerFunc,
			"replace":   stdlib.ReplaceFunc,
			"split":     stdlib.SplitFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"upper":     stdlib.UpperFunc,
		},
	}
}
