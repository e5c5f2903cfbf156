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

// Package compose implements the variable composer (C4): turning declared
// compartments, quantities, parameters, connections and variable equations
// into a flat table of state variables ready for instruction synthesis.
// Kind/Flags are grounded directly on State_Var::Type and State_Var::Flags
// in the original implementation's state_variable.h, merging its
// special_computation/external_computation split into one
// ExternalComputation kind (an explicitly resolved open question: the
// original drifted between the two names for what is structurally one
// thing -- a variable whose value is produced by an opaque foreign
// evaluator).
package compose

import (
	"github.com/mobius-lang/simc/expr"
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/registry"
	"github.com/mobius-lang/simc/units"
)

// Kind classifies how a state variable's value is produced.
type Kind uint8

const (
	// Declared is an ordinary variable computed directly from its Code body.
	Declared Kind = iota
	// RegularAggregate sums a quantity across every matching declared
	// variable nested beneath it (e.g. a compartment-level total).
	RegularAggregate
	// InFluxAggregate sums the discrete/connection fluxes directed at this
	// location.
	InFluxAggregate
	// ConnectionAggregate sums a per-connection quantity across every
	// instance of that connection touching this location.
	ConnectionAggregate
	// DissolvedFlux is a flux derived from a dissolved substance's
	// concentration and its carrier's own flux.
	DissolvedFlux
	// DissolvedConc derives a concentration from a dissolved amount and its
	// carrier's volume.
	DissolvedConc
	// ExternalComputation is produced by an opaque foreign evaluator rather
	// than compiled code.
	ExternalComputation
)

// String renders the variable kind's diagnostic name.
func (k Kind) String() string {
	switch k {
	case Declared:
		return "declared"
	case RegularAggregate:
		return "regular_aggregate"
	case InFluxAggregate:
		return "in_flux_aggregate"
	case ConnectionAggregate:
		return "connection_aggregate"
	case DissolvedFlux:
		return "dissolved_flux"
	case DissolvedConc:
		return "dissolved_conc"
	case ExternalComputation:
		return "external_computation"
	default:
		return "unknown"
	}
}

// Flags are the per-variable bits carried alongside Kind, mirroring
// State_Var::Flags in the original.
type Flags uint8

const (
	// HasAggregate marks a variable that some aggregate elsewhere sums over.
	HasAggregate Flags = 1 << iota
	// IsFlux marks a variable that moves a quantity between two locations
	// (or a location and Out) rather than holding a standing value.
	IsFlux
	// ClearSeriesToNaN marks an aggregate whose accumulator must be reset to
	// NaN (rather than 0) before each time step, so an aggregate with no
	// contributions this step reads as "no data" rather than "zero".
	ClearSeriesToNaN
	// Invalid marks a variable the validity sweep rejected (missing code
	// body) -- kept in the table
	// rather than dropped so diagnostics can still name it.
	Invalid
)

// Has reports whether every bit in want is set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Variable is one row of the composed state-variable table.
type Variable struct {
	ID       registry.ID
	Kind     Kind
	Flags    Flags
	Location loc.Location
	Unit     units.Standard
	// Code is the main computation body; nil only for a not-yet-resolved or
	// Invalid-flagged entry.
	Code expr.Expr
	// Override is the optional override body; when present and it does not
	// evaluate to NoOverride at runtime, its value is used instead of Code.
	Override expr.Expr
	Discrete bool
}
