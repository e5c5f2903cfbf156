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
package instr

import (
	"testing"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/compose"
)

func ident(name string) *ast.Identifier {
	return &ast.Identifier{Path: []ast.PathSegment{{Name: name}}}
}

func TestBuildEmitsOneInstructionPerDeclaredVariable(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.ParameterDecl{Handle: "rate", SerialName: "rate"},
			&ast.VariableDecl{Location: []string{"tank"}, VarKind: ast.VarDeclared, Code: ident("rate")},
		},
	}

	c := compose.NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compose errors: %v", errs)
	}

	instrs := NewBuilder().Build(m)
	if len(instrs) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(instrs))
	}

	if instrs[0].Kind != ComputeStateVar {
		t.Fatalf("expected ComputeStateVar, got %v", instrs[0].Kind)
	}
}

func TestBuildEmitsClearBeforeAggregate(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.VariableDecl{
				Location: []string{"tank"},
				VarKind:  ast.VarRegularAggregate,
				Code:     &ast.Literal{LitKind: ast.LitReal, Real: 0},
			},
		},
	}

	c := compose.NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compose errors: %v", errs)
	}

	instrs := NewBuilder().Build(m)
	if len(instrs) != 2 {
		t.Fatalf("expected 2 instructions (clear + accumulate), got %d", len(instrs))
	}

	if instrs[0].Kind != ClearStateVar || instrs[1].Kind != AddToAggregate {
		t.Fatalf("expected [ClearStateVar, AddToAggregate], got [%v, %v]", instrs[0].Kind, instrs[1].Kind)
	}
}

func TestCollectDependenciesFindsLastAsWeak(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.VariableDecl{
				Location: []string{"tank"},
				VarKind:  ast.VarDeclared,
				Code:     &ast.Call{Callee: "last", Args: []ast.Node{ident("tank")}},
			},
		},
	}

	c := compose.NewComposer()

	m, errs := c.Compose(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compose errors: %v", errs)
	}

	instrs := NewBuilder().Build(m)
	if len(instrs) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(instrs))
	}

	if len(instrs[0].Deps) != 1 || !instrs[0].Deps[0].Weak {
		t.Fatalf("expected exactly one weak dependency, got %#v", instrs[0].Deps)
	}
}
