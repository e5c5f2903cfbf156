// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package model ties registry/expr/compose/instr/depsolve/order/codegen
// together into a compiled, runnable simulation: Compile runs the full
// pipeline once per source tree, and Store/API/Runtime expose the resulting
// schedule for repeated execution. Grounded on the teacher's top-level
// wiring in pkg/corset (a Compile entry point that threads a diag.Stream
// through every pass and only returns once every pass has succeeded).
package model

import (
	"math"

	"github.com/mobius-lang/simc/internal/fr"
	"github.com/mobius-lang/simc/registry"
)

// externalFunc is the signature a host-registered external computation
// implements; model.Store dispatches instr.ExternalComputation instructions
// to a name-keyed table of these.
type externalFunc func(args []float64) (float64, error)

// Store is the dense, by-id value backing store codegen.Walker executes
// against. Values are field-element-encoded (see internal/fr.Value) so that
// every quantity in the store has the exact same representation a zk-style
// trace column would, even though this simulator never produces a proof.
type Store struct {
	reg *registry.Registry

	current  []fr.Value
	previous []fr.Value
	nan      []bool

	indexSetSizes map[registry.ID]int
	externals     map[string]externalFunc

	year, month, day, dayOfYear int
	stepSeconds                 float64
}

// NewStore allocates a store sized to the registry's current entity count.
func NewStore(reg *registry.Registry) *Store {
	n := reg.Arena.Count() + 1

	return &Store{
		reg:           reg,
		current:       make([]fr.Value, n),
		previous:      make([]fr.Value, n),
		nan:           make([]bool, n),
		indexSetSizes: make(map[registry.ID]int),
		externals:     make(map[string]externalFunc),
	}
}

// Get returns id's current value, or NaN if it was cleared and never
// recomputed this step.
func (s *Store) Get(id registry.ID) float64 {
	if id == registry.Invalid || int(id) >= len(s.current) {
		return math.NaN()
	}

	if s.nan[id] {
		return math.NaN()
	}

	return s.current[id].ToFloat()
}

// Set stores v at id. A NaN v marks the slot cleared (matches instr.ClearStateVar).
func (s *Store) Set(id registry.ID, v float64) {
	if id == registry.Invalid || int(id) >= len(s.current) {
		return
	}

	if math.IsNaN(v) {
		s.nan[id] = true
		return
	}

	s.nan[id] = false
	s.current[id] = fr.FromFloat(v)
}

// GetLast returns id's value as of the end of the previous step.
func (s *Store) GetLast(id registry.ID) float64 {
	if id == registry.Invalid || int(id) >= len(s.previous) {
		return math.NaN()
	}

	return s.previous[id].ToFloat()
}

// Advance copies current into previous, the per-step bookkeeping last()
// relies on.
func (s *Store) Advance() {
	copy(s.previous, s.current)
}

// Now returns the current simulated calendar instant, set by Runtime.Run.
func (s *Store) Now() (int, int, int, int, float64) {
	return s.year, s.month, s.day, s.dayOfYear, s.stepSeconds
}

// SetClock updates the calendar fields TimeAttr/TimeStepLength read.
func (s *Store) SetClock(year, month, day, dayOfYear int, stepSeconds float64) {
	s.year, s.month, s.day, s.dayOfYear = year, month, day, dayOfYear
	s.stepSeconds = stepSeconds
}

// IndexSetSize reports how many instances a connection-bound index set
// iterates, as registered by SetIndexSetSize during compilation.
func (s *Store) IndexSetSize(id registry.ID) int {
	return s.indexSetSizes[id]
}

// SetIndexSetSize records an index set's instance count.
func (s *Store) SetIndexSetSize(id registry.ID, size int) {
	s.indexSetSizes[id] = size
}

// RegisterExternal binds a host-implemented external computation by name,
// the mechanism spec.md's external_computation/special_computation merge
// (compose.ExternalComputation) relies on for values simc itself cannot
// derive (e.g. a table lookup or a foreign numerical routine).
func (s *Store) RegisterExternal(name string, fn func(args []float64) (float64, error)) {
	s.externals[name] = fn
}

// ExternalCompute dispatches to a registered external implementation.
func (s *Store) ExternalCompute(name string, args []float64) (float64, error) {
	fn, ok := s.externals[name]
	if !ok {
		return 0, &UnregisteredExternalError{Name: name}
	}

	return fn(args)
}

// UnregisteredExternalError reports a call to an external_computation name
// the embedding application never registered.
type UnregisteredExternalError struct {
	Name string
}

func (e *UnregisteredExternalError) Error() string {
	return "model: no external computation registered for " + e.Name
}
