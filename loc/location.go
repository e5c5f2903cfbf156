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

// Package loc implements variable locations and restrictions, the small
// value types shared by the typed expression tree (C3), the variable
// composer (C4), the instruction builder (C5) and the code-gen walker (C8).
// Kept as its own package (rather than folded into registry or model) so
// that every later component can depend on it without creating an import
// cycle back into the expression tree.
package loc

import "github.com/mobius-lang/simc/registry"

// MaxDepth is K, the maximum number of component ids in a location tuple:
// a compartment followed by up to five nested quantities.
const MaxDepth = 6

// RestrictionKind selects a position along a connection.
type RestrictionKind uint8

// The restriction kinds named in the data model: none plus five positions.
const (
	RestrictionNone RestrictionKind = iota
	RestrictionTop
	RestrictionBottom
	RestrictionAbove
	RestrictionBelow
	RestrictionSpecific
)

// Restriction attaches a connection id and a kind to a location.
type Restriction struct {
	Connection registry.ID
	Kind       RestrictionKind
	// Index is only meaningful when Kind == RestrictionSpecific.
	Index int
}

// IsSet reports whether this restriction actually restricts anything.
func (r Restriction) IsSet() bool {
	return r.Kind != RestrictionNone
}

// Form distinguishes the three shapes a variable location may take.
type Form uint8

const (
	// FormOut is the sink/source pseudo-location used by fluxes that
	// originate or terminate outside the modeled system.
	FormOut Form = iota
	// FormLocated is a concrete component tuple.
	FormLocated
	// FormConnectionBound is a concrete tuple further qualified by a
	// restriction referencing a connection.
	FormConnectionBound
)

// Location is an ordered tuple of at most MaxDepth component ids: a
// compartment optionally followed by nested quantities, or the Out
// pseudo-location, optionally qualified by a restriction.
type Location struct {
	Form         Form
	Components   []registry.ID // first is always a compartment when Form != FormOut
	Restriction  Restriction
}

// Out is the singleton sink/source location.
func Out() Location {
	return Location{Form: FormOut}
}

// New constructs a located (unrestricted) location from a component chain.
// WellFormed should be checked by the caller at declaration time.
func New(components ...registry.ID) Location {
	return Location{Form: FormLocated, Components: components}
}

// WithRestriction returns a copy of this location qualified by the given
// restriction, promoting it to FormConnectionBound.
func (l Location) WithRestriction(r Restriction) Location {
	n := l
	n.Restriction = r

	if r.IsSet() {
		n.Form = FormConnectionBound
	}

	return n
}

// IsOut reports whether this is the sink/source pseudo-location.
func (l Location) IsOut() bool {
	return l.Form == FormOut
}

// Depth returns the number of components in the tuple (0 for Out).
func (l Location) Depth() int {
	return len(l.Components)
}

// WellFormed reports whether the first component is a compartment and every
// later component is a quantity, per the data-model invariant. The arena is
// required to look up each component's kind.
func (l Location) WellFormed(arena *registry.Arena) bool {
	if l.Form == FormOut {
		return true
	}

	if len(l.Components) == 0 || len(l.Components) > MaxDepth {
		return false
	}

	if arena.Get(l.Components[0]).Kind != registry.KindCompartment {
		return false
	}

	for _, c := range l.Components[1:] {
		if arena.Get(c).Kind != registry.KindQuantity {
			return false
		}
	}

	return true
}

// Equal compares two locations for equality, including their restriction
// (Design Note: "Equality on locations compares the pair").
func (l Location) Equal(o Location) bool {
	if l.Form != o.Form || len(l.Components) != len(o.Components) {
		return false
	}

	for i := range l.Components {
		if l.Components[i] != o.Components[i] {
			return false
		}
	}

	return l.Restriction == o.Restriction
}

// Key returns a comparable value suitable for use as a map key, since slices
// themselves are not comparable.
func (l Location) Key() string {
	b := make([]byte, 0, 4*len(l.Components)+8)

	for _, c := range l.Components {
		b = append(b, byte(c), byte(c>>8), byte(c>>16), byte(c>>24))
	}

	b = append(b, byte(l.Restriction.Connection), byte(l.Restriction.Kind), byte(l.Restriction.Index))

	return string(b)
}

// Parent returns the location with its final (innermost) component removed,
// used by the variable composer to process locations in nesting-depth order
// (parents before children).
func (l Location) Parent() (Location, bool) {
	if len(l.Components) <= 1 {
		return Location{}, false
	}

	n := l
	n.Components = append([]registry.ID{}, l.Components[:len(l.Components)-1]...)

	return n, true
}
