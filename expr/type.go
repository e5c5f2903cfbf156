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

// Package expr implements the typed expression tree (C3): resolving
// identifiers, type-checking, inserting casts, inlining user functions and
// checking units. Per the design note on dynamic dispatch over expression
// kinds, the tree is a tagged variant (one Go type per node kind, joined by
// the Expr interface) rather than a class hierarchy, so that a single
// recursive walker can switch over Expr.Kind().
package expr

import "github.com/mobius-lang/simc/units"

// Scalar is the dimensionless value-kind lattice: real dominates integer
// dominates boolean when operands of mixed scalar kind are unified.
type Scalar uint8

const (
	Bool Scalar = iota
	Int
	Real
)

// String renders the scalar kind's name.
func (s Scalar) String() string {
	switch s {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Real:
		return "real"
	default:
		return "?"
	}
}

// Dominant returns whichever of a, b is higher in the real > int > bool
// lattice.
func Dominant(a, b Scalar) Scalar {
	if a > b {
		return a
	}

	return b
}

// Type is the resolved type of an expression node: a scalar kind plus,
// unless the scalar is Bool, a standard-form unit. Tuple types carry a
// per-slot Type instead.
type Type struct {
	Scalar Scalar
	Unit   units.Standard
	// Tuple holds per-slot types when this is a tuple type; nil otherwise.
	Tuple []Type
}

// IsTuple reports whether this is a tuple type.
func (t Type) IsTuple() bool { return t.Tuple != nil }

// Dimensionless constructs a scalar type with the fully dimensionless unit.
func Dimensionless(s Scalar) Type {
	return Type{Scalar: s, Unit: dimensionlessStandard()}
}

func dimensionlessStandard() units.Standard {
	std, _ := units.Standardize(units.NewDeclared())
	return std
}

// SameUnit reports whether two types share a unit, modulo the literal-0 rule
// handled separately by the resolver (a bare integer literal 0 matches any
// unit).
func (t Type) SameUnit(o Type) bool {
	return units.MatchExact(t.Unit, o.Unit)
}

// SubtypeOf determines whether a value of type t can be used where a value
// of type o is expected: same unit, and t's scalar is no more general than
// o's (an Int can be used as a Real parameter, but not vice versa).
func (t Type) SubtypeOf(o Type) bool {
	if t.IsTuple() != o.IsTuple() {
		return false
	}

	if t.IsTuple() {
		if len(t.Tuple) != len(o.Tuple) {
			return false
		}

		for i := range t.Tuple {
			if !t.Tuple[i].SubtypeOf(o.Tuple[i]) {
				return false
			}
		}

		return true
	}

	if o.Scalar == Bool || t.Scalar == Bool {
		return t.Scalar == o.Scalar
	}

	return t.Scalar <= o.Scalar && t.SameUnit(o)
}
