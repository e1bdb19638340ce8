// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"testing"

	"github.com/DonkRonk17/batchrunner/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spec(name string, deps ...string) registry.CommandSpec {
	return registry.CommandSpec{
		Name:      name,
		Command:   "echo " + name,
		DependsOn: deps,
	}
}

func TestCheck_Valid(t *testing.T) {
	reg := registry.New(
		spec("a"),
		spec("b", "a"),
		spec("c", "a"),
		spec("d", "b", "c"),
	)

	res := Check(reg)
	assert.True(t, res.Valid())
	require.NoError(t, res.Err())
	require.NoError(t, Validate(reg))
}

func TestCheck_Empty(t *testing.T) {
	assert.True(t, Check(registry.New()).Valid())
}

func TestCheck_TwoNodeCycle(t *testing.T) {
	reg := registry.New(
		spec("A", "B"),
		spec("B", "A"),
	)

	err := Validate(reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "A")
	assert.Contains(t, err.Error(), "B")

	cycles := Check(reg).OfKind(KindCycle)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "A"}, cycles[0].Cycle)
	assert.Equal(t, "circular dependency detected: A -> B -> A", cycles[0].Error())
}

func TestCheck_CycleReportedOnce(t *testing.T) {
	reg := registry.New(
		spec("a", "c"),
		spec("b", "a"),
		spec("c", "b"),
		spec("d", "a"),
	)

	cycles := Check(reg).OfKind(KindCycle)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "c", "b", "a"}, cycles[0].Cycle)
}

func TestCheck_DisjointCycles(t *testing.T) {
	reg := registry.New(
		spec("a", "b"),
		spec("b", "a"),
		spec("x", "y"),
		spec("y", "x"),
		spec("z"),
	)

	res := Check(reg)
	assert.Len(t, res.OfKind(KindCycle), 2)
	assert.Len(t, res.Errors, 2)
}

func TestCheck_SelfDependency(t *testing.T) {
	reg := registry.New(spec("a", "a"))

	err := Validate(reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSelfDependency)
	assert.NotErrorIs(t, err, ErrCycle)

	errs := Errors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, KindSelfDependency, errs[0].Kind)
	assert.Equal(t, "a", errs[0].Command)
}

func TestCheck_UnknownDependency(t *testing.T) {
	reg := registry.New(spec("build", "fetch"))

	errs := Errors(Validate(reg))
	require.Len(t, errs, 1)
	assert.Equal(t, KindUnknownDependency, errs[0].Kind)
	assert.Equal(t, "build", errs[0].Command)
	assert.Equal(t, "fetch", errs[0].Dependency)
	assert.ErrorIs(t, errs[0], ErrUnknownDependency)
}

func TestCheck_DuplicateName(t *testing.T) {
	reg := registry.New(spec("a"), spec("a"))

	errs := Errors(Validate(reg))
	require.Len(t, errs, 1)
	assert.Equal(t, KindDuplicateName, errs[0].Kind)
	assert.Equal(t, 1, errs[0].Position)
}

func TestCheck_MissingFields(t *testing.T) {
	reg := registry.New(
		registry.CommandSpec{Command: "echo nameless"},
		registry.CommandSpec{Name: "blank", Command: "   "},
	)

	res := Check(reg)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, KindEmptyName, res.Errors[0].Kind)
	assert.Equal(t, KindEmptyCommand, res.Errors[1].Kind)
	assert.ErrorIs(t, res.Err(), ErrEmptyName)
	assert.ErrorIs(t, res.Err(), ErrEmptyCommand)
}

func TestCheck_MultipleProblemsAggregated(t *testing.T) {
	reg := registry.New(
		spec("a", "missing"),
		spec("b", "b"),
		spec("c", "d"),
		spec("d", "c"),
	)

	err := Validate(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 validation errors occurred")

	kinds := make([]Kind, 0, 3)
	for _, e := range Errors(err) {
		kinds = append(kinds, e.Kind)
	}

	assert.Equal(t, []Kind{KindUnknownDependency, KindSelfDependency, KindCycle}, kinds)
}

func TestErrors_NonValidationError(t *testing.T) {
	assert.Nil(t, Errors(nil))
	assert.Nil(t, Errors(errors.New("boom")))
}

func TestCycleKey_RotationInvariant(t *testing.T) {
	assert.Equal(t, cycleKey([]string{"b", "c", "a"}), cycleKey([]string{"a", "b", "c"}))
	assert.NotEqual(t, cycleKey([]string{"a", "c", "b"}), cycleKey([]string{"a", "b", "c"}))
}
