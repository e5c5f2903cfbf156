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

// Package registry implements the scope & registry component (C2): stable
// id allocation, handle/serial-name resolution, redeclaration and
// import-cycle detection. Graph edges between entities live elsewhere (the
// dependency analyser); this package only owns the id arena and the scope
// tree, per the "cyclic graph of state variables" design note -- all
// cross-references are ids, never pointers.
package registry

import "github.com/mobius-lang/simc/source"

// Kind classifies an entity by what it declares.
type Kind uint8

// The full set of classified entity kinds named in the data model.
const (
	KindCompartment Kind = iota
	KindQuantity
	KindProperty
	KindParameter
	KindParameterGroup
	KindUnit
	KindFunction
	KindConstant
	KindIndexSet
	KindConnection
	KindSolver
	KindModuleTemplate
	KindModuleInstance
	KindLibrary
	KindDiscreteOrder
	KindFlux
	KindLocationAlias
	KindExternalComputation
)

var kindNames = [...]string{
	"compartment", "quantity", "property", "parameter", "parameter_group",
	"unit", "function", "constant", "index_set", "connection", "solver",
	"module_template", "module_instance", "library", "discrete_order",
	"flux", "location_alias", "external_computation",
}

// String renders the entity kind's diagnostic name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "unknown"
}

// ID is a stable identifier, unique across the process, for one entity.
type ID uint32

// Invalid is the zero-value sentinel id; ids returned by the registry are
// always non-zero so this can be used as "no entity".
const Invalid ID = 0

// Entity is a globally unique object of a classified kind. It carries the
// source location (for diagnostics), a human-readable name, the scope in
// which it was declared, and the declared flag which distinguishes a fully
// declared entity from a forward reference created purely so later code can
// refer to it.
type Entity struct {
	ID       ID
	Kind     Kind
	Name     string
	Scope    *Scope
	Location source.Span
	File     *source.File
	Declared bool
}

// Arena owns every entity created during a single compilation pass, keyed by
// id. It is the sole place entities are allocated; every other structure
// refers to entities only by ID.
type Arena struct {
	entities []*Entity
}

// NewArena constructs an empty entity arena. Index 0 is reserved for
// Invalid, so the first real entity gets id 1.
func NewArena() *Arena {
	return &Arena{entities: make([]*Entity, 1, 64)}
}

// Alloc creates a new entity of the given kind in the given scope, returning
// its freshly allocated id. The entity starts out not-declared; callers call
// Declare once the corresponding source declaration is processed.
func (a *Arena) Alloc(kind Kind, name string, scope *Scope) *Entity {
	id := ID(len(a.entities))
	e := &Entity{ID: id, Kind: kind, Name: name, Scope: scope}
	a.entities = append(a.entities, e)

	return e
}

// Get returns the entity for a given id. Panics on an invalid id, since
// every id in a live compilation pass must resolve to a real entity --
// violating this is an internal-error-class bug, not a user error.
func (a *Arena) Get(id ID) *Entity {
	if int(id) <= 0 || int(id) >= len(a.entities) {
		panic("registry: invalid entity id")
	}

	return a.entities[id]
}

// Count returns the number of entities allocated so far (excluding the
// reserved Invalid slot).
func (a *Arena) Count() int {
	return len(a.entities) - 1
}

// All returns every allocated entity, in allocation order.
func (a *Arena) All() []*Entity {
	return a.entities[1:]
}

// Undeclared returns every entity that was referenced but never declared --
// reported as an error at the end of scope processing per spec.md §4.2.
func (a *Arena) Undeclared() []*Entity {
	var out []*Entity

	for _, e := range a.entities[1:] {
		if !e.Declared {
			out = append(out, e)
		}
	}

	return out
}
