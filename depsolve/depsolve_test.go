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
package depsolve

import (
	"testing"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/compose"
	"github.com/mobius-lang/simc/diag"
	"github.com/mobius-lang/simc/instr"
	"github.com/mobius-lang/simc/registry"
)

func ident(name string) *ast.Identifier {
	return &ast.Identifier{Path: []ast.PathSegment{{Name: name}}}
}

// TestBuildCollectsStrongEdge checks that a declared variable reading another
// state variable directly (no last()) produces a strong dependency edge.
func TestBuildCollectsStrongEdge(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.CompartmentDecl{Handle: "sink", SerialName: "sink"},
			&ast.VariableDecl{Location: []string{"tank"}, VarKind: ast.VarDeclared, Code: &ast.Literal{LitKind: ast.LitReal, Real: 1.0}},
			&ast.VariableDecl{Location: []string{"sink"}, VarKind: ast.VarDeclared, Code: ident("tank")},
		},
	}

	c := compose.NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compose errors: %v", errs)
	}

	instrs := instr.NewBuilder().Build(m)
	if len(instrs) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(instrs))
	}

	stream := diag.NewStream()
	g := Build(instrs, map[registry.ID]registry.ID{}, stream)

	if len(g.Strong[1]) != 1 || g.Strong[1][0] != 0 {
		t.Fatalf("expected instruction 1 to strongly depend on instruction 0, got %#v", g.Strong[1])
	}

	if len(g.Weak[1]) != 0 {
		t.Fatalf("expected no weak deps, got %#v", g.Weak[1])
	}
}

// TestPropagateSolversSpreadsAlongStrongEdges ensures a contributor to a
// solver-bound variable inherits that solver via strong-edge propagation.
func TestPropagateSolversSpreadsAlongStrongEdges(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.CompartmentDecl{Handle: "sink", SerialName: "sink"},
			&ast.VariableDecl{Location: []string{"tank"}, VarKind: ast.VarDeclared, Code: &ast.Literal{LitKind: ast.LitReal, Real: 1.0}},
			&ast.VariableDecl{Location: []string{"sink"}, VarKind: ast.VarDeclared, Code: ident("tank")},
		},
	}

	c := compose.NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compose errors: %v", errs)
	}

	instrs := instr.NewBuilder().Build(m)

	seedSolver := registry.ID(99)
	seed := map[registry.ID]registry.ID{instrs[1].Variable: seedSolver}

	stream := diag.NewStream()

	g := Build(instrs, seed, stream)

	if instrs[0].SolverLabel != seedSolver {
		t.Fatalf("expected contributor instruction to inherit seeded solver, got %v", instrs[0].SolverLabel)
	}

	if g.SolverOf[instrs[0].Variable] != seedSolver {
		t.Fatalf("expected SolverOf map to record propagated solver, got %v", g.SolverOf[instrs[0].Variable])
	}
}

// TestInferIndexSetsUnionsAlongStrongEdges checks that an instruction's
// IndexSet annotation propagates to its strong dependents.
func TestInferIndexSetsUnionsAlongStrongEdges(t *testing.T) {
	instrs := []*instr.Instruction{
		{Seq: 0, Variable: 1, IndexSet: registry.ID(5)},
		{Seq: 1, Variable: 2, Deps: []instr.Dependency{{Target: 1}}},
	}

	stream := diag.NewStream()
	g := Build(instrs, map[registry.ID]registry.ID{}, stream)

	if !g.IndexSets[1].Test(5) {
		t.Fatal("expected dependent instruction's index set to include bit 5 via strong-edge union")
	}
}
