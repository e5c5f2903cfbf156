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

package model

import (
	"testing"
	"time"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/ode"
	"github.com/mobius-lang/simc/registry"
)

func ident(name string) *ast.Identifier {
	return &ast.Identifier{Path: []ast.PathSegment{{Name: name}}}
}

// TestCompileMinimalQuantity mirrors spec.md §8 scenario 1: a single
// compartment/quantity pair with a constant declared variable compiles to
// one instruction group with one instruction, and running one step leaves
// the variable at its declared value.
func TestCompileMinimalQuantity(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "a", SerialName: "a"},
			&ast.QuantityDecl{Handle: "x", SerialName: "a.x"},
			&ast.VariableDecl{
				Location: []string{"a", "x"},
				VarKind:  ast.VarDeclared,
				Unit:     &ast.UnitExpr{},
				Code:     &ast.Literal{LitKind: ast.LitReal, Real: 1.0},
			},
		},
	}

	rt, errs := Compile(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}

	if len(rt.Instrs) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(rt.Instrs))
	}

	if len(rt.Schedule.Groups) != 1 || len(rt.Schedule.Groups[0].Members) != 1 {
		t.Fatalf("expected a single group with a single member, got %+v", rt.Schedule.Groups)
	}

	api := NewAPI(rt)
	if err := api.Run(1, 0, nil); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	v := rt.Instrs[0].Variable
	if got := rt.Store.Get(v); got != 1.0 {
		t.Fatalf("expected stored value 1.0, got %v", got)
	}
}

// TestCompileUnitMismatchFails mirrors spec.md §8 scenario 5: a declared
// unit that disagrees with the code body's inferred unit is a model_building
// error naming both standard forms, not a silently accepted compile.
func TestCompileUnitMismatchFails(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "a", SerialName: "a"},
			&ast.QuantityDecl{Handle: "x", SerialName: "a.x"},
			&ast.VariableDecl{
				Location: []string{"a", "x"},
				VarKind:  ast.VarDeclared,
				Unit:     &ast.UnitExpr{Parts: []ast.UnitPartExpr{{Prefix: "k", Symbol: "g", Num: 1, Den: 1}}},
				Code: &ast.Convert{
					Mode:       ast.ConvertForce,
					Operand:    &ast.Literal{LitKind: ast.LitReal, Real: 1.0},
					TargetUnit: &ast.UnitExpr{Parts: []ast.UnitPartExpr{{Symbol: "l", Num: 1, Den: 1}}},
				},
			},
		},
	}

	_, errs := Compile(tree, nil)
	if len(errs) == 0 {
		t.Fatal("expected a unit mismatch error")
	}
}

// TestCompileExternalComputationDispatchesToRegisteredFunction exercises the
// external_computation wiring end to end: a variable whose body calls
// external(name, args...) dispatches to a host-registered function at run
// time.
func TestCompileExternalComputationDispatchesToRegisteredFunction(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "a", SerialName: "a"},
			&ast.QuantityDecl{Handle: "x", SerialName: "a.x"},
			&ast.VariableDecl{
				Location: []string{"a", "x"},
				VarKind:  ast.VarExternalComputation,
				Unit:     &ast.UnitExpr{},
				Code: &ast.Call{Callee: "external", Args: []ast.Node{
					ident("lookup_temperature"),
					&ast.Literal{LitKind: ast.LitReal, Real: 3.0},
				}},
			},
		},
	}

	rt, errs := Compile(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}

	rt.Store.RegisterExternal("lookup_temperature", func(args []float64) (float64, error) {
		return args[0] * 2, nil
	})

	api := NewAPI(rt)
	if err := api.Run(1, 0, nil); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	v := rt.Instrs[0].Variable
	if got := rt.Store.Get(v); got != 6.0 {
		t.Fatalf("expected external computation result 6.0, got %v", got)
	}
}

// TestAPIEntityMetadataAndEnumeration checks the host-facing introspection
// surface: entity lookup, kind enumeration, and index-set cardinality.
func TestAPIEntityMetadataAndEnumeration(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "a", SerialName: "a"},
			&ast.IndexSetDecl{Handle: "farms", SerialName: "farms", Size: &ast.Literal{LitKind: ast.LitInt, Int: 3}},
		},
	}

	rt, errs := Compile(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}

	api := NewAPI(rt)

	compartments := api.Enumerate(registry.KindCompartment)
	if len(compartments) != 1 || compartments[0].Name != "a" {
		t.Fatalf("expected exactly one compartment named a, got %+v", compartments)
	}

	indexSetID, ok := rt.Model.Reg.Global.LookupHandle("farms")
	if !ok {
		t.Fatal("expected farms index set to resolve")
	}

	size, ok := api.IndexSetCardinality(indexSetID)
	if !ok || size != 3 {
		t.Fatalf("expected cardinality 3, got %d (ok=%v)", size, ok)
	}

	meta, ok := api.Entity(indexSetID)
	if !ok || meta.Kind != "index_set" {
		t.Fatalf("expected index_set metadata, got %+v (ok=%v)", meta, ok)
	}

	id, ok := api.DeserializeVariable("farms")
	if !ok || id != indexSetID {
		t.Fatalf("expected DeserializeVariable round-trip to resolve farms, got %v (ok=%v)", id, ok)
	}
}

// TestRunCancelsAtStepBoundary checks that once the deadline has passed, Run
// stops at the next step boundary and reports how many steps it actually
// completed, per spec.md §7's "terminates the simulation at the offending
// step" rather than rolling back already-computed progress.
func TestRunCancelsAtStepBoundary(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "a", SerialName: "a"},
			&ast.QuantityDecl{Handle: "x", SerialName: "a.x"},
			&ast.VariableDecl{
				Location: []string{"a", "x"},
				VarKind:  ast.VarDeclared,
				Unit:     &ast.UnitExpr{},
				Code:     &ast.Literal{LitKind: ast.LitReal, Real: 1.0},
			},
		},
	}

	rt, errs := Compile(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}

	api := NewAPI(rt)

	// A progress callback that sleeps past the 1ms deadline on its first
	// call guarantees Run observes an elapsed deadline before step 2, no
	// matter how fast the host executes a trivial step.
	progressed := 0
	err := api.Run(5, 1, func(step int) {
		progressed = step
		time.Sleep(5 * time.Millisecond)
	})

	var cancelled *Cancelled
	if err == nil {
		t.Fatal("expected a cancellation error once the deadline elapsed")
	} else if ce, ok := err.(*Cancelled); !ok {
		t.Fatalf("expected *Cancelled, got %T: %v", err, err)
	} else {
		cancelled = ce
	}

	if cancelled.Steps != progressed {
		t.Fatalf("expected Cancelled.Steps (%d) to match the last completed step (%d)", cancelled.Steps, progressed)
	}

	if cancelled.Steps >= 5 {
		t.Fatalf("expected cancellation before completing all 5 steps, got %d", cancelled.Steps)
	}
}

// TestIntegrateSolverAdvancesDissolvedVariable exercises the ode.Integrator
// wiring: a dissolved_conc variable bound to a model-wide solver with a
// declared step integrates forward by h*rate using ode.Euler.
func TestIntegrateSolverAdvancesDissolvedVariable(t *testing.T) {
	tree := &ast.Tree{
		Declarations: []ast.Node{
			&ast.CompartmentDecl{Handle: "tank", SerialName: "tank"},
			&ast.QuantityDecl{Handle: "salt", SerialName: "tank.salt"},
			&ast.SolverDecl{
				Handle:    "default_solver",
				Algorithm: "euler",
				StepExpr:  &ast.Literal{LitKind: ast.LitReal, Real: 2.0},
			},
			&ast.VariableDecl{
				Location: []string{"tank", "salt"},
				VarKind:  ast.VarDissolvedConc,
				Unit:     &ast.UnitExpr{},
				Code:     &ast.Literal{LitKind: ast.LitReal, Real: 3.0},
			},
		},
	}

	rt, errs := Compile(tree, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}

	if len(rt.Model.Solvers) != 1 || !rt.Model.Solvers[0].HasStep {
		t.Fatalf("expected one solver binding with a declared step, got %+v", rt.Model.Solvers)
	}

	sb := rt.Model.Solvers[0]

	var saltID registry.ID
	for _, v := range rt.Model.Variables {
		if v.Kind.String() == "dissolved_conc" {
			saltID = v.ID
		}
	}

	if saltID == registry.Invalid {
		t.Fatal("expected to find the dissolved_conc variable")
	}

	rt.Store.Set(saltID, 10.0)

	if err := rt.IntegrateSolver(sb, ode.Euler{}); err != nil {
		t.Fatalf("unexpected integration error: %v", err)
	}

	want := 10.0 + sb.StepSeconds*3.0
	if got := rt.Store.Get(saltID); got != want {
		t.Fatalf("expected %v after one Euler sub-step, got %v", want, got)
	}
}
