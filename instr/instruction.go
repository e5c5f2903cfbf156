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

// Package instr implements the instruction builder (C5): lowering each
// composed state variable into one or more executable instructions plus the
// dependency edges that depsolve (C6) and order (C7) need to schedule them.
// Grounded on the teacher's instruction-emission idiom in
// pkg/schema/builder.go, where a single high-level constraint expands into
// several concrete low-level entries carrying explicit operand references
// rather than nested trees -- the same flattening this package performs for
// aggregate/discrete-flux variables.
package instr

import (
	"github.com/mobius-lang/simc/compose"
	"github.com/mobius-lang/simc/expr"
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/registry"
)

// Kind tags the operation a single instruction performs at run time.
type Kind uint8

const (
	// ComputeStateVar evaluates Code and stores it at Target.
	ComputeStateVar Kind = iota
	// ClearStateVar resets Target to NaN before an aggregate accumulates into
	// it, so an aggregate untouched this step reads as "no data".
	ClearStateVar
	// SubtractDiscreteFluxFromSource decrements a discrete flux's source
	// quantity by the flux's computed amount.
	SubtractDiscreteFluxFromSource
	// AddDiscreteFluxToTarget increments a discrete flux's target quantity by
	// the flux's computed amount.
	AddDiscreteFluxToTarget
	// AddToAggregate accumulates Code's value into Target (a
	// regular_aggregate or in_flux_aggregate).
	AddToAggregate
	// AddToConnectionAggregate accumulates Code's value into Target once per
	// instance of the connection this variable is bound over.
	AddToConnectionAggregate
	// ExternalComputation invokes an opaque foreign evaluator and stores its
	// result(s) at Target.
	ExternalComputation
)

// String renders the instruction kind's diagnostic name.
func (k Kind) String() string {
	switch k {
	case ComputeStateVar:
		return "compute_state_var"
	case ClearStateVar:
		return "clear_state_var"
	case SubtractDiscreteFluxFromSource:
		return "subtract_discrete_flux_from_source"
	case AddDiscreteFluxToTarget:
		return "add_discrete_flux_to_target"
	case AddToAggregate:
		return "add_to_aggregate"
	case AddToConnectionAggregate:
		return "add_to_connection_aggregate"
	case ExternalComputation:
		return "external_computation"
	default:
		return "unknown"
	}
}

// Dependency is one edge an instruction's Code reads before it can run.
// Weak marks a last()-wrapped reference: it reads the previous time step's
// value and therefore never forces ordering within the current step.
type Dependency struct {
	Target registry.ID
	Weak   bool
}

// Instruction is one scheduled unit of work the code-gen walker (C8)
// executes in group order.
type Instruction struct {
	// Seq is this instruction's position in emission order, used as a stable
	// node index by depsolve/order.
	Seq int
	Kind
	// Variable is the composed state variable this instruction was emitted
	// for.
	Variable registry.ID
	Target   loc.Location
	Code     expr.Expr
	Deps     []Dependency
	// SolverLabel is the solver this instruction's state variable is
	// integrated under, propagated by depsolve along strong edges; zero
	// (registry.Invalid) until propagation runs.
	SolverLabel registry.ID
	// IndexSet is non-zero for an instruction bound to iterate over a
	// connection's index set; depsolve's index-set inference reads it as a
	// seed. Builder.Build leaves it zero, so a built AddToConnectionAggregate
	// iterates over no instances.
	IndexSet registry.ID
}

// Builder lowers a composed Model's variable table into an instruction list.
type Builder struct {
	instrs []*Instruction
}

// NewBuilder constructs an empty instruction builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build emits instructions for every valid (non-Invalid) variable in m, in
// the composer's nesting-depth order, so the emitted sequence already
// respects the "aggregates after contributors" ordering at a coarse grain;
// depsolve and order refine this into the true dependency-respecting
// schedule.
func (b *Builder) Build(m *compose.Model) []*Instruction {
	for _, v := range m.Variables {
		if v.Flags.Has(compose.Invalid) {
			continue
		}

		b.emit(v)
	}

	return b.instrs
}

func (b *Builder) emit(v *compose.Variable) {
	deps := collectDependencies(v.Code)

	switch v.Kind {
	case compose.RegularAggregate, compose.InFluxAggregate:
		b.append(ClearStateVar, v, nil, nil)
		b.append(AddToAggregate, v, v.Code, deps)
	case compose.ConnectionAggregate:
		b.append(ClearStateVar, v, nil, nil)
		b.append(AddToConnectionAggregate, v, v.Code, deps)
	case compose.DissolvedFlux:
		if v.Discrete {
			b.append(SubtractDiscreteFluxFromSource, v, v.Code, deps)
			b.append(AddDiscreteFluxToTarget, v, v.Code, deps)
		} else {
			b.append(ComputeStateVar, v, v.Code, deps)
		}
	case compose.ExternalComputation:
		b.append(ExternalComputation, v, v.Code, deps)
	default:
		b.append(ComputeStateVar, v, v.Code, deps)
	}
}

func (b *Builder) append(kind Kind, v *compose.Variable, code expr.Expr, deps []Dependency) {
	b.instrs = append(b.instrs, &Instruction{
		Seq:      len(b.instrs),
		Kind:     kind,
		Variable: v.ID,
		Target:   v.Location,
		Code:     code,
		Deps:     deps,
	})
}

// collectDependencies walks a resolved expression tree gathering every
// state-variable reference it reads, tagging last()-wrapped reads as weak.
func collectDependencies(e expr.Expr) []Dependency {
	var deps []Dependency
	walkDeps(e, &deps)

	return deps
}

func walkDeps(e expr.Expr, out *[]Dependency) {
	if e == nil {
		return
	}

	switch n := e.(type) {
	case *expr.StateVarRef:
		if len(n.Location.Components) > 0 {
			*out = append(*out, Dependency{Target: n.Location.Components[len(n.Location.Components)-1], Weak: n.Last})
		}
	case *expr.Cast:
		walkDeps(n.Operand, out)
	case *expr.UnOp:
		walkDeps(n.Operand, out)
	case *expr.BinOp:
		walkDeps(n.Left, out)
		walkDeps(n.Right, out)
	case *expr.IfChain:
		for _, br := range n.Branches {
			walkDeps(br.Condition, out)
			walkDeps(br.Value, out)
		}
	case *expr.Block:
		for _, s := range n.Statements {
			walkDeps(s, out)
		}
	case *expr.IntrinsicCall:
		for _, a := range n.Args {
			walkDeps(a, out)
		}
	case *expr.LinkedCall:
		for _, a := range n.Args {
			walkDeps(a, out)
		}
	case *expr.ExternalComputation:
		for _, a := range n.Args {
			walkDeps(a, out)
		}
	case *expr.Tuple:
		for _, el := range n.Elements {
			walkDeps(el, out)
		}
	case *expr.TupleUnpack:
		walkDeps(n.Value, out)
	case *expr.TupleAccess:
		walkDeps(n.Value, out)
	case *expr.LocalDecl:
		walkDeps(n.Value, out)
	case *expr.Reassign:
		walkDeps(n.Value, out)
	case *expr.ConvertFactor:
		walkDeps(n.Operand, out)
	case *expr.ConvertOffset:
		walkDeps(n.Operand, out)
	}
}
