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
package expr

import (
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/registry"
	"github.com/mobius-lang/simc/units"
)

// Permissions are the four permission flags threaded through resolution,
// controlling which directives are legal in a given body (e.g. `in_flux` is
// only legal while composing an in_flux aggregate's own code, `result` is
// only legal inside an externally-linked computation's argument list).
type Permissions struct {
	AllowInFlux    bool
	AllowNoOverride bool
	AllowResult    bool
	AllowLast      bool
}

// localVar is one entry of the in-scope local-variable stack.
type localVar struct {
	name  string
	ty    Type
	index uint
}

// Context carries everything needed to resolve one expression node: the
// current scope, the implicit in_location (the variable being computed,
// used to disambiguate relative identifier chains), the set of parameters
// eligible to be baked as literals, an expected unit for implicit
// conversions, the four permission flags, and (for simplified parameter-only
// contexts) an ordered list of admissible symbol names.
type Context struct {
	Scope        *registry.Scope
	InLocation   loc.Location
	Bakeable     map[registry.ID]bool
	ExpectedUnit *units.Standard
	Perms        Permissions
	// AdmissibleSymbols, when non-empty, restricts identifier resolution to
	// exactly this list. The composer never sets it, so every context it
	// builds resolves identifiers without this restriction.
	AdmissibleSymbols []string

	locals []localVar
	// blockStart is the index in locals at which the current block's own
	// declarations begin.
	blockStart int
	tags   map[string]uint
	nextTag uint
}

// NewContext constructs a root resolution context for a given in_location.
func NewContext(scope *registry.Scope, in loc.Location) *Context {
	return &Context{
		Scope:      scope,
		InLocation: in,
		Bakeable:   make(map[registry.ID]bool),
		tags:       make(map[string]uint),
	}
}

// WithExpectedUnit returns a derived context carrying an expected unit for
// implicit target-conversions (used when resolving the right-hand side of an
// assignment, or the argument to an `auto` conversion).
func (c *Context) WithExpectedUnit(u units.Standard) *Context {
	n := *c
	n.ExpectedUnit = &u

	return &n
}

// WithPermissions returns a derived context with the given permission flags,
// leaving everything else (including the local-variable stack) shared.
func (c *Context) WithPermissions(p Permissions) *Context {
	n := *c
	n.Perms = p

	return &n
}

// NestedBlock returns a derived context for a fresh block: local-variable
// declarations inside it will not be visible once the block exits, but reads
// of already-bound locals still see them (the enclosing blocks' locals are
// copied into the new context, the same way the teacher's
// LocalScope.NestedScope clones its maps).
func (c *Context) NestedBlock() *Context {
	n := *c
	n.locals = append([]localVar{}, c.locals...)
	n.blockStart = len(n.locals)

	return &n
}

// DeclareLocal registers a new local variable in the *current* block,
// failing if a local of that name is already bound in this exact block
// (shadowing across nested blocks is fine; within one block it is not).
func (c *Context) DeclareLocal(name string, ty Type) (uint, bool) {
	for _, l := range c.locals[c.blockStart:] {
		if l.name == name {
			return 0, false
		}
	}

	idx := uint(len(c.locals))
	c.locals = append(c.locals, localVar{name, ty, idx})

	return idx, true
}

// LookupLocal finds a local variable by name, searching from the innermost
// binding outward (later entries shadow earlier ones of the same name
// across block boundaries, which DeclareLocal's same-block check permits).
func (c *Context) LookupLocal(name string) (Type, uint, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return c.locals[i].ty, c.locals[i].index, true
		}
	}

	return Type{}, 0, false
}

// NewTag allocates a fresh scope id for an IterateTag label.
func (c *Context) NewTag(label string) uint {
	id := c.nextTag
	c.nextTag++

	if c.tags == nil {
		c.tags = make(map[string]uint)
	}

	c.tags[label] = id

	return id
}

// LookupTag resolves a previously declared IterateTag label.
func (c *Context) LookupTag(label string) (uint, bool) {
	id, ok := c.tags[label]
	return id, ok
}

// IsAdmissible reports whether a given symbol name may be referenced under
// this context's restricted admissible-symbols list. An empty list means no
// restriction is in effect.
func (c *Context) IsAdmissible(name string) bool {
	if len(c.AdmissibleSymbols) == 0 {
		return true
	}

	for _, s := range c.AdmissibleSymbols {
		if s == name {
			return true
		}
	}

	return false
}
