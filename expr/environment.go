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

// SymbolKind classifies what an identifier chain's head resolved to.
type SymbolKind uint8

const (
	SymNone SymbolKind = iota
	SymParam
	SymSeries
	SymStateVar
	SymConnection
	SymConstant
)

// Environment is the set of lookups the resolver needs but which are owned
// by the variable composer / model store rather than the expression tree
// itself -- kept as an interface so expr has no import-time dependency on
// compose or model (avoiding a cycle, since those packages hold typed
// expression bodies).
type Environment interface {
	// Lookup resolves a bare identifier head (already stripped of any
	// restriction suffix) within scope, relative to inLoc where relevant.
	Lookup(scope *registry.Scope, inLoc loc.Location, name string) (SymbolKind, registry.ID, loc.Location, bool)
	// Unit returns the declared unit for a resolved symbol.
	Unit(kind SymbolKind, id registry.ID, l loc.Location) units.Standard
	// ConstantValue returns a constant's folded literal value.
	ConstantValue(id registry.ID) (Type, Literal)
	// ParamValue returns a parameter's current value, used only when the
	// parameter is listed as bakeable in the context.
	ParamValue(id registry.ID) (float64, bool)
	// Function resolves a callee name to a function binding.
	Function(scope *registry.Scope, name string) (*FunctionBinding, bool)
	// ConnectionIndexSet returns the index set a connection is bound over,
	// used to validate/attach restriction suffixes.
	ConnectionIndexSet(connection registry.ID) registry.ID
}
