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

// Package depsolve implements the dependency/solver propagation pass (C6):
// it turns the instruction builder's per-instruction Dependency lists into a
// full strong/weak dependency graph keyed by instruction index, infers each
// instruction's index-set signature by fixed-point iteration, and propagates
// solver labels along strong edges so every integrated quantity ends up
// assigned to exactly one solver. The bitset-backed signature representation
// mirrors the teacher's column/register index-set bookkeeping in
// pkg/schema (e.g. ColumnSet-style bit-per-member sets), adapted here from
// zkEVM column membership to ODE solver/index-set membership.
package depsolve

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/mobius-lang/simc/diag"
	"github.com/mobius-lang/simc/instr"
	"github.com/mobius-lang/simc/registry"
)

// maxFixedPointIterations bounds the index-set-inference fixed-point loop,
// matching spec.md §6's documented 100-iteration cap for a pass that could
// otherwise loop forever over a malformed (circularly inferred) model.
const maxFixedPointIterations = 100

// Graph is the dependency graph over an instruction list: Strong[i] holds
// every instruction index i's Code must read before it runs; Weak[i] holds
// last()-sourced reads that do not constrain same-step ordering.
type Graph struct {
	Strong [][]int
	Weak   [][]int

	// IndexSets holds each instruction's inferred index-set membership
	// signature, one bit per index-set entity id touched (directly or
	// transitively) by that instruction.
	IndexSets []*bitset.BitSet

	// SolverOf maps a state variable's entity id to the solver it was
	// propagated to; registry.Invalid if unresolved (no integrated quantity
	// reaches it via a strong edge).
	SolverOf map[registry.ID]registry.ID
}

// byVariable indexes instructions by the state-variable id they target, used
// to translate an Instruction.Deps[i].Target entity reference into a node
// index in the instruction graph.
type byVariable map[registry.ID][]int

// Build constructs the dependency graph from instrs, then runs index-set
// inference and solver propagation. solverOfVariable supplies the
// user-declared solver binding for each integrated (Declared, differential)
// state variable, the seed solver propagation spreads outward from.
func Build(instrs []*instr.Instruction, solverOfVariable map[registry.ID]registry.ID, stream *diag.Stream) *Graph {
	g := &Graph{
		Strong:    make([][]int, len(instrs)),
		Weak:      make([][]int, len(instrs)),
		IndexSets: make([]*bitset.BitSet, len(instrs)),
		SolverOf:  make(map[registry.ID]registry.ID),
	}

	byVar := indexByVariable(instrs)

	for i, in := range instrs {
		g.IndexSets[i] = bitset.New(64)

		for _, dep := range in.Deps {
			targets, ok := byVar[dep.Target]
			if !ok {
				continue
			}

			for _, t := range targets {
				if dep.Weak {
					g.Weak[i] = append(g.Weak[i], t)
				} else {
					g.Strong[i] = append(g.Strong[i], t)
				}
			}
		}
	}

	inferIndexSets(instrs, g, byVar)
	propagateSolvers(instrs, g, solverOfVariable, stream)

	return g
}

func indexByVariable(instrs []*instr.Instruction) byVariable {
	m := make(byVariable, len(instrs))

	for i, in := range instrs {
		m[in.Variable] = append(m[in.Variable], i)

		// A Dependency names the last component of the location it reads,
		// so an instruction is also reachable through its Target's last
		// component.
		if n := len(in.Target.Components); n > 0 && in.Target.Components[n-1] != in.Variable {
			last := in.Target.Components[n-1]
			m[last] = append(m[last], i)
		}
	}

	return m
}

// inferIndexSets propagates each instruction's IndexSet annotation to every
// strong dependent, by fixed-point iteration: an instruction that strongly
// reads another inherits every index set the read instruction carries. The
// instruction builder leaves IndexSet zero, so only instructions constructed
// with an explicit IndexSet seed this pass.
func inferIndexSets(instrs []*instr.Instruction, g *Graph, byVar byVariable) {
	for i, in := range instrs {
		if in.IndexSet != registry.Invalid {
			g.IndexSets[i].Set(uint(in.IndexSet))
		}
	}

	for iter := 0; iter < maxFixedPointIterations; iter++ {
		changed := false

		for i := range instrs {
			for _, dep := range g.Strong[i] {
				before := g.IndexSets[i].Count()
				g.IndexSets[i].InPlaceUnion(g.IndexSets[dep])

				if g.IndexSets[i].Count() != before {
					changed = true
				}
			}
		}

		if !changed {
			return
		}
	}
}

// propagateSolvers assigns every instruction's state variable to a solver,
// starting from the explicitly declared solver bindings and spreading along
// strong dependency edges: an instruction with no solver of its own inherits
// the solver of an instruction that strongly reads it, so a quantity that
// feeds a solver-integrated variable is itself scheduled under that solver.
func propagateSolvers(instrs []*instr.Instruction, g *Graph, seed map[registry.ID]registry.ID, stream *diag.Stream) {
	for v, s := range seed {
		g.SolverOf[v] = s
	}

	for i, in := range instrs {
		if s, ok := g.SolverOf[in.Variable]; ok {
			in.SolverLabel = s
		}
	}

	for iter := 0; iter < maxFixedPointIterations; iter++ {
		changed := false

		for i, in := range instrs {
			if in.SolverLabel == registry.Invalid {
				continue
			}

			for _, dep := range g.Strong[i] {
				if d := instrs[dep]; d.SolverLabel == registry.Invalid {
					d.SolverLabel = in.SolverLabel
					g.SolverOf[d.Variable] = in.SolverLabel
					changed = true
				}
			}
		}

		if !changed {
			break
		}
	}

	for _, in := range instrs {
		if in.SolverLabel == registry.Invalid {
			stream.Log("instruction for variable %d has no reachable solver binding", in.Variable)
		}
	}
}
