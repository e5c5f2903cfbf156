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
package ast

// DeclKind tags the top-level declaration forms the (out-of-scope) parser
// may produce; compose.Composer is the first stage that interprets them.
type DeclKind uint8

const (
	DeclCompartment DeclKind = iota
	DeclQuantity
	DeclParameter
	DeclConnection
	DeclVariable
	DeclSolver
	DeclIndexSet
	DeclFunction
	DeclConstant
	DeclLibraryInclude
)

// Declaration is a top-level tree node; every concrete declaration kind
// below also satisfies Node so a Tree's Declarations slice can mix them
// freely with the library-include form.
type Declaration interface {
	Node
	DeclKind() DeclKind
}

// CompartmentDecl declares a compartment, optionally nesting child
// compartments/quantities inline.
type CompartmentDecl struct {
	Base
	Handle     string
	SerialName string
	Children   []Node
}

func (d *CompartmentDecl) Kind() NodeKind  { return NodeBlock }
func (d *CompartmentDecl) DeclKind() DeclKind { return DeclCompartment }

// QuantityDecl declares a quantity nested under a compartment.
type QuantityDecl struct {
	Base
	Handle     string
	SerialName string
}

func (d *QuantityDecl) Kind() NodeKind     { return NodeBlock }
func (d *QuantityDecl) DeclKind() DeclKind { return DeclQuantity }

// ParameterDecl declares a scalar input parameter.
type ParameterDecl struct {
	Base
	Handle     string
	SerialName string
	Unit       *UnitExpr
	Default    Node // nil if the parameter has no default
}

func (d *ParameterDecl) Kind() NodeKind     { return NodeBlock }
func (d *ParameterDecl) DeclKind() DeclKind { return DeclParameter }

// ConnectionDecl declares a connection topology joining compartments.
type ConnectionDecl struct {
	Base
	Handle     string
	SerialName string
	// Topology names the connection's structure: "all_to_all", "grid1d", or
	// "directed_graph" (spec.md §3).
	Topology string
	IndexSet string // handle of the index set this connection is bound over
}

func (d *ConnectionDecl) Kind() NodeKind     { return NodeBlock }
func (d *ConnectionDecl) DeclKind() DeclKind { return DeclConnection }

// VariableKindName names the state-variable kind a VariableDecl introduces,
// mirroring State_Var::Type in the original implementation (merging its
// special_computation/external_computation split into one kind, per the
// resolved open question).
type VariableKindName string

const (
	VarDeclared            VariableKindName = "declared"
	VarRegularAggregate    VariableKindName = "regular_aggregate"
	VarInFluxAggregate     VariableKindName = "in_flux_aggregate"
	VarConnectionAggregate VariableKindName = "connection_aggregate"
	VarDissolvedFlux       VariableKindName = "dissolved_flux"
	VarDissolvedConc       VariableKindName = "dissolved_conc"
	VarExternalComputation VariableKindName = "external_computation"
)

// VariableDecl declares a state variable's location, unit and computation
// body (and, for overridable variables, an override body).
type VariableDecl struct {
	Base
	Location   []string // dotted handle path to the owning compartment/quantity
	VarKind    VariableKindName
	Unit       *UnitExpr
	Code       Node
	Override   Node // nil if not overridable
	Discrete   bool // true for a discrete (event-driven) flux
}

func (d *VariableDecl) Kind() NodeKind     { return NodeBlock }
func (d *VariableDecl) DeclKind() DeclKind { return DeclVariable }

// SolverDecl declares an ODE solver binding for a compartment/quantity
// subtree.
type SolverDecl struct {
	Base
	Handle    string
	Algorithm string // e.g. "euler", "rk4"
	StepExpr  Node   // step size in seconds; nil uses the model default
}

func (d *SolverDecl) Kind() NodeKind     { return NodeBlock }
func (d *SolverDecl) DeclKind() DeclKind { return DeclSolver }

// IndexSetDecl declares a named index set used to parameterize aggregates
// and connections.
type IndexSetDecl struct {
	Base
	Handle     string
	SerialName string
	Size       Node // an expression evaluating to the index set's cardinality
}

func (d *IndexSetDecl) Kind() NodeKind     { return NodeBlock }
func (d *IndexSetDecl) DeclKind() DeclKind { return DeclIndexSet }

// FunctionDecl declares an in-language or linked (host) function.
type FunctionDecl struct {
	Base
	Handle     string
	ParamNames []string
	ParamUnits []*UnitExpr
	ResultUnit *UnitExpr
	Body       Node // nil for a linked (host) function
}

func (d *FunctionDecl) Kind() NodeKind     { return NodeBlock }
func (d *FunctionDecl) DeclKind() DeclKind { return DeclFunction }

// ConstantDecl declares a named constant value.
type ConstantDecl struct {
	Base
	Handle     string
	SerialName string
	Unit       *UnitExpr
	Value      Node
}

func (d *ConstantDecl) Kind() NodeKind     { return NodeBlock }
func (d *ConstantDecl) DeclKind() DeclKind { return DeclConstant }

// LibraryIncludeDecl requests that another source file's declarations be
// imported into the current scope, resolved through a Loader.
type LibraryIncludeDecl struct {
	Base
	Path            string
	AllowParameters bool
}

func (d *LibraryIncludeDecl) Kind() NodeKind     { return NodeBlock }
func (d *LibraryIncludeDecl) DeclKind() DeclKind { return DeclLibraryInclude }
