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

package model

import (
	"fmt"
	"time"

	"github.com/mobius-lang/simc/registry"
)

// API is the host-facing surface of a compiled Runtime: run the simulation,
// get/set parameters and time series by entity id, and look up entity
// metadata -- the "compiled model API" named in spec.md §6. Parameter and
// series storage here is a flat per-entity scalar (the same Store array
// codegen.Walker reads/writes), a deliberate simplification of the original's
// per-index-tuple contiguous arrays: this simulator does not materialize
// distinct storage per connection/index-set instance, only per declared
// variable, so the index argument below is accepted for API-shape fidelity
// but does not yet select among multiple stored instances.
type API struct {
	rt *Runtime
}

// NewAPI wraps a compiled Runtime for host use.
func NewAPI(rt *Runtime) *API {
	return &API{rt: rt}
}

// Cancelled reports that Run's timeout elapsed at a time-step boundary.
type Cancelled struct {
	Steps int
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("model: run cancelled after %d steps", e.Steps)
}

// Run advances the simulation steps times, calling progress after each
// completed step. If timeoutMs elapses, Run stops at the next step boundary
// and returns *Cancelled with the number of steps actually completed
// (already-computed steps are preserved, matching spec.md §7's "a runtime
// failure... terminates the simulation at the offending step").
func (a *API) Run(steps, timeoutMs int, progress func(step int)) error {
	var deadline time.Time

	hasDeadline := timeoutMs > 0
	if hasDeadline {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}

	for step := 0; step < steps; step++ {
		if hasDeadline && time.Now().After(deadline) {
			return &Cancelled{Steps: step}
		}

		if err := a.rt.Walker.Run(a.rt.Schedule, a.rt.Instrs); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}

		a.rt.Store.Advance()

		if progress != nil {
			progress(step + 1)
		}
	}

	return nil
}

// ParamGet returns a parameter's current stored value.
func (a *API) ParamGet(id registry.ID, _ int) float64 {
	return a.rt.Store.Get(id)
}

// ParamSet stores a parameter value, seeding the store the first time a
// parameter without a declared default is addressed.
func (a *API) ParamSet(id registry.ID, _ int, v float64) {
	a.rt.Store.Set(id, v)
}

// SeriesGet returns a time series's current stored value.
func (a *API) SeriesGet(id registry.ID, _ int) float64 {
	return a.rt.Store.Get(id)
}

// SeriesSet stores a time series value for the current step.
func (a *API) SeriesSet(id registry.ID, _ int, v float64) {
	a.rt.Store.Set(id, v)
}

// EntityMetadata describes one registry entity for host introspection:
// name, kind and (where applicable) declared unit.
type EntityMetadata struct {
	ID   registry.ID
	Kind string
	Name string
	Unit string
}

// Entity returns id's metadata, or false if id is not a valid entity in
// this runtime's registry.
func (a *API) Entity(id registry.ID) (EntityMetadata, bool) {
	if id == registry.Invalid || int(id) > a.rt.Model.Reg.Arena.Count() {
		return EntityMetadata{}, false
	}

	e := a.rt.Model.Reg.Arena.Get(id)
	meta := EntityMetadata{ID: id, Kind: e.Kind.String(), Name: e.Name}

	if p, ok := a.rt.Model.Parameters[id]; ok {
		meta.Unit = p.Unit.String()
	} else if s, ok := a.rt.Model.Series[id]; ok {
		meta.Unit = s.Unit.String()
	}

	return meta, true
}

// Enumerate lists every declared entity of the given kind.
func (a *API) Enumerate(kind registry.Kind) []EntityMetadata {
	var out []EntityMetadata

	for _, e := range a.rt.Model.Reg.Arena.All() {
		if e.Kind != kind || !e.Declared {
			continue
		}

		meta, _ := a.Entity(e.ID)
		out = append(out, meta)
	}

	return out
}

// IndexSetCardinality returns the declared size of an index set.
func (a *API) IndexSetCardinality(id registry.ID) (int, bool) {
	size, ok := a.rt.Model.IndexSets[id]
	return size, ok
}

// DeserializeVariable resolves a fully-qualified serial name (e.g.
// "farm.tank.level") back to its entity id, the round-trip API spec.md §8's
// "Serialize(id)→deserialize" law exercises.
func (a *API) DeserializeVariable(serialName string) (registry.ID, bool) {
	return a.rt.Model.Reg.Global.LookupSerial(serialName)
}
