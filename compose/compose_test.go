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
package compose

import (
	"testing"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/registry"
)

func ident(name string) *ast.Identifier {
	return &ast.Identifier{Path: []ast.PathSegment{{Name: name}}}
}

// TestComposeBasicModel declares a compartment, a parameter and a single
// declared state variable computed directly from that parameter, mirroring
// the smallest end-to-end shape named in spec.md §8.
func TestComposeBasicModel(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.ParameterDecl{Handle: "rate", SerialName: "rate"},
			&ast.VariableDecl{
				Location: []string{"tank"},
				VarKind:  ast.VarDeclared,
				Code:     ident("rate"),
			},
		},
	}

	c := NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if len(m.Variables) != 1 {
		t.Fatalf("expected exactly one composed variable, got %d", len(m.Variables))
	}

	v := m.Variables[0]
	if v.Kind != Declared {
		t.Fatalf("expected Declared kind, got %v", v.Kind)
	}

	if v.Flags.Has(Invalid) {
		t.Fatalf("variable unexpectedly flagged invalid")
	}

	if v.Code == nil {
		t.Fatal("expected a resolved code body")
	}

	if len(m.Parameters) != 1 {
		t.Fatalf("expected exactly one declared parameter, got %d", len(m.Parameters))
	}
}

// TestComposeRejectsUnresolvedLocation ensures a variable declared against an
// undeclared location component is rejected rather than silently dropped.
func TestComposeRejectsUnresolvedLocation(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.VariableDecl{
				Location: []string{"nonexistent"},
				VarKind:  ast.VarDeclared,
				Code:     &ast.Literal{LitKind: ast.LitReal, Real: 1.0},
			},
		},
	}

	c := NewComposer()

	_, errs := c.Compose(tree, nil)
	if len(errs) == 0 {
		t.Fatal("expected an error for an undeclared location component")
	}
}

// TestComposeInFluxAggregateRequiresPermission exercises that the composer
// threads the in_flux permission flag correctly: an in_flux_aggregate body
// may call in_flux(...), an ordinary declared variable may not.
func TestComposeInFluxAggregateRequiresPermission(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.VariableDecl{
				Location: []string{"tank"},
				VarKind:  ast.VarDeclared,
				Code:     &ast.Call{Callee: "in_flux", Args: []ast.Node{ident("tank")}},
			},
		},
	}

	c := NewComposer()

	_, errs := c.Compose(tree, nil)
	if len(errs) == 0 {
		t.Fatal("expected in_flux to be rejected outside an in_flux_aggregate body")
	}
}

// TestComposeOrdersByNestingDepth checks that a variable located at a deeper
// nesting depth sorts after its parent's own variable.
func TestComposeOrdersByNestingDepth(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.QuantityDecl{Handle: "salt", SerialName: "tank.salt"},
			&ast.VariableDecl{
				Location: []string{"tank", "salt"},
				VarKind:  ast.VarDeclared,
				Code:     &ast.Literal{LitKind: ast.LitReal, Real: 1.0},
			},
			&ast.VariableDecl{
				Location: []string{"tank"},
				VarKind:  ast.VarDeclared,
				Code:     &ast.Literal{LitKind: ast.LitReal, Real: 2.0},
			},
		},
	}

	c := NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if len(m.Variables) != 2 {
		t.Fatalf("expected 2 variables, got %d", len(m.Variables))
	}

	if m.Variables[0].Location.Depth() > m.Variables[1].Location.Depth() {
		t.Fatal("expected variables sorted by ascending nesting depth")
	}
}

// TestComposeIndexSetRecordsCardinality checks that an index_set declaration's
// Size expression is resolved and recorded in Model.IndexSets.
func TestComposeIndexSetRecordsCardinality(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.IndexSetDecl{
				Handle:     "farms",
				SerialName: "farms",
				Size:       &ast.Literal{LitKind: ast.LitInt, Int: 5},
			},
		},
	}

	c := NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	id, ok := m.Reg.Global.LookupHandle("farms")
	if !ok {
		t.Fatal("expected index set to be declared")
	}

	if size := m.IndexSets[id]; size != 5 {
		t.Fatalf("expected cardinality 5, got %d", size)
	}
}

// TestComposeSolverBindsNearestEnclosingScope checks that a solver declared
// inside a compartment's children binds with that compartment as its Scope,
// while a top-level solver declaration binds model-wide.
func TestComposeSolverBindsNearestEnclosingScope(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{
				Handle:     "tank",
				SerialName: "tank",
				Children: []ast.Node{
					&ast.SolverDecl{Handle: "tank_solver", Algorithm: "euler"},
				},
			},
			&ast.SolverDecl{Handle: "default_solver", Algorithm: "rk4"},
		},
	}

	c := NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if len(m.Solvers) != 2 {
		t.Fatalf("expected 2 solver bindings, got %d", len(m.Solvers))
	}

	tankID, ok := m.Reg.Global.LookupHandle("tank")
	if !ok {
		t.Fatal("expected tank compartment to be declared")
	}

	var tankBound, defaultBound bool

	for _, sb := range m.Solvers {
		switch sb.Algorithm {
		case "euler":
			tankBound = sb.Scope == tankID
		case "rk4":
			defaultBound = sb.Scope == registry.Invalid
		}
	}

	if !tankBound {
		t.Fatal("expected the nested solver to bind to the enclosing tank compartment")
	}

	if !defaultBound {
		t.Fatal("expected the top-level solver to bind model-wide (Scope == registry.Invalid)")
	}

	tankLoc := loc.New(tankID)

	sb, ok := m.SolverFor(tankLoc)
	if !ok || sb.Algorithm != "euler" {
		t.Fatalf("expected SolverFor(tank) to prefer the nearest enclosing binding, got %+v (ok=%v)", sb, ok)
	}
}
