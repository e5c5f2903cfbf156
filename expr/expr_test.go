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
	"testing"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/registry"
	"github.com/mobius-lang/simc/units"
)

// fakeEnv is a minimal Environment stub backing the resolver tests below; it
// knows about exactly one parameter "p" and one state variable "x".
type fakeEnv struct {
	paramID, stateID registry.ID
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{paramID: 1, stateID: 2}
}

func (f *fakeEnv) Lookup(scope *registry.Scope, inLoc loc.Location, name string) (SymbolKind, registry.ID, loc.Location, bool) {
	switch name {
	case "p":
		return SymParam, f.paramID, loc.Location{}, true
	case "x":
		return SymStateVar, f.stateID, loc.Location{}, true
	default:
		return SymNone, 0, loc.Location{}, false
	}
}

func (f *fakeEnv) Unit(kind SymbolKind, id registry.ID, l loc.Location) units.Standard {
	std, _ := units.Standardize(units.NewDeclared())
	return std
}

func (f *fakeEnv) ConstantValue(id registry.ID) (Type, Literal) {
	return Dimensionless(Real), Literal{}
}

func (f *fakeEnv) ParamValue(id registry.ID) (float64, bool) { return 0, false }

func (f *fakeEnv) Function(scope *registry.Scope, name string) (*FunctionBinding, bool) {
	return nil, false
}

func (f *fakeEnv) ConnectionIndexSet(connection registry.ID) registry.ID { return 0 }

func ident(name string) *ast.Identifier {
	return &ast.Identifier{Path: []ast.PathSegment{{Name: name}}}
}

func lit(v int64) *ast.Literal {
	return &ast.Literal{LitKind: ast.LitInt, Int: v}
}

func TestResolveParamRef(t *testing.T) {
	r := NewResolver(newFakeEnv())
	ctx := NewContext(registry.NewGlobalScope(), loc.Out())

	e, errs := r.Resolve(ctx, ident("p"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if _, ok := e.(*ParamRef); !ok {
		t.Fatalf("expected *ParamRef, got %T", e)
	}
}

func TestResolveUnresolvedIdentifierFails(t *testing.T) {
	r := NewResolver(newFakeEnv())
	ctx := NewContext(registry.NewGlobalScope(), loc.Out())

	_, errs := r.Resolve(ctx, ident("nope"))
	if len(errs) == 0 {
		t.Fatal("expected an error for an unresolved identifier")
	}
}

func TestResolveArithRequiresMatchingUnits(t *testing.T) {
	r := NewResolver(newFakeEnv())
	ctx := NewContext(registry.NewGlobalScope(), loc.Out())

	bin := &ast.BinaryOp{Op: "+", Left: ident("p"), Right: lit(1)}

	e, errs := r.Resolve(ctx, bin)
	if len(errs) != 0 {
		t.Fatalf("literal 0/1-compatible add should still type-check via dominance, got errs: %v", errs)
	}

	if e.Type().Scalar != Real {
		t.Fatalf("expected dominant scalar Real, got %v", e.Type().Scalar)
	}
}

func TestResolveLastRequiresPermission(t *testing.T) {
	r := NewResolver(newFakeEnv())
	ctx := NewContext(registry.NewGlobalScope(), loc.Out())

	call := &ast.Call{Callee: "last", Args: []ast.Node{ident("x")}}

	_, errs := r.Resolve(ctx, call)
	if len(errs) == 0 {
		t.Fatal("expected last() to be rejected without AllowLast")
	}

	ctx = ctx.WithPermissions(Permissions{AllowLast: true})

	e, errs := r.Resolve(ctx, call)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	sv, ok := e.(*StateVarRef)
	if !ok || !sv.Last {
		t.Fatalf("expected a Last-flagged StateVarRef, got %#v", e)
	}
}

func TestResolveIntrinsicArityError(t *testing.T) {
	r := NewResolver(newFakeEnv())
	ctx := NewContext(registry.NewGlobalScope(), loc.Out())

	call := &ast.Call{Callee: "sqrt", Args: []ast.Node{lit(1), lit(2)}}

	_, errs := r.Resolve(ctx, call)
	if len(errs) == 0 {
		t.Fatal("expected an arity error for sqrt/2")
	}
}

func TestResolveIfChainRequiresSharedUnit(t *testing.T) {
	r := NewResolver(newFakeEnv())
	ctx := NewContext(registry.NewGlobalScope(), loc.Out())

	chain := &ast.IfChain{Branches: []ast.IfBranch{
		{Condition: &ast.Literal{LitKind: ast.LitBool, Bool: true}, Value: ident("p")},
		{Condition: nil, Value: lit(0)},
	}}

	_, errs := r.Resolve(ctx, chain)
	if len(errs) != 0 {
		t.Fatalf("literal 0 fallback should be exempt from the shared-unit check, got: %v", errs)
	}
}

func TestPruneFoldsConstantArithmetic(t *testing.T) {
	bin := &BinOp{
		Base: Base{Ty: Dimensionless(Int)},
		Op:   "+",
		Left: &Literal{Base: Base{Ty: Dimensionless(Int)}, IntVal: 2},
		Right: &Literal{Base: Base{Ty: Dimensionless(Int)}, IntVal: 3},
	}

	got := Prune(bin)

	lit, ok := got.(*Literal)
	if !ok || lit.IntVal != 5 {
		t.Fatalf("expected folded literal 5, got %#v", got)
	}
}

func TestPruneDropsUnusedLocal(t *testing.T) {
	block := &Block{
		Base: Base{Ty: Dimensionless(Int)},
		Statements: []Expr{
			&LocalDecl{Base: Base{Ty: Dimensionless(Int)}, Name: "unused", Index: 0,
				Value: &Literal{Base: Base{Ty: Dimensionless(Int)}, IntVal: 1}},
			&Literal{Base: Base{Ty: Dimensionless(Int)}, IntVal: 9},
		},
	}

	got := Prune(block).(*Block)

	if len(got.Statements) != 1 {
		t.Fatalf("expected the unused local declaration to be dropped, got %d statements", len(got.Statements))
	}
}

func TestInlineCacheRejectsRecursion(t *testing.T) {
	c := NewInlineCache()

	if err := c.Enter("f"); err != nil {
		t.Fatalf("first Enter should succeed: %v", err)
	}

	if err := c.Enter("f"); err == nil {
		t.Fatal("expected recursive Enter to fail")
	}

	c.Leave("f")

	if err := c.Enter("f"); err != nil {
		t.Fatalf("Enter after Leave should succeed: %v", err)
	}
}
