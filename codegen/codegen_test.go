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
package codegen

import (
	"bytes"
	"math"
	"testing"

	"github.com/mobius-lang/simc/expr"
	"github.com/mobius-lang/simc/instr"
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/order"
	"github.com/mobius-lang/simc/registry"
)

// fakeStore is a minimal map-backed Store for exercising the walker without
// the model package's fixed-point encoding.
type fakeStore struct {
	values   map[registry.ID]float64
	last     map[registry.ID]float64
	setSizes map[registry.ID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[registry.ID]float64{}, last: map[registry.ID]float64{}, setSizes: map[registry.ID]int{}}
}

func (f *fakeStore) Get(id registry.ID) float64 {
	v, ok := f.values[id]
	if !ok {
		return math.NaN()
	}

	return v
}

func (f *fakeStore) Set(id registry.ID, v float64)     { f.values[id] = v }
func (f *fakeStore) GetLast(id registry.ID) float64    { return f.last[id] }
func (f *fakeStore) IndexSetSize(id registry.ID) int   { return f.setSizes[id] }
func (f *fakeStore) Now() (int, int, int, int, float64) { return 2026, 1, 1, 1, 1.0 }

func (f *fakeStore) ExternalCompute(name string, args []float64) (float64, error) {
	sum := 0.0
	for _, a := range args {
		sum += a
	}

	return sum, nil
}

func lit(v float64) *expr.Literal {
	return &expr.Literal{Base: expr.Base{Ty: expr.Dimensionless(expr.Real)}, RealVal: v}
}

// TestWalkerComputesSimpleInstruction exercises the default ComputeStateVar
// path: evaluate Code, store the result at Variable.
func TestWalkerComputesSimpleInstruction(t *testing.T) {
	store := newFakeStore()
	w := NewWalker(store)

	in := &instr.Instruction{Kind: instr.ComputeStateVar, Variable: 7, Code: &expr.BinOp{
		Base: expr.Base{Ty: expr.Dimensionless(expr.Real)}, Op: "+", Left: lit(2), Right: lit(3),
	}}

	sched := &order.Schedule{Groups: []*order.Group{{Members: []int{0}}}}

	if err := w.Run(sched, []*instr.Instruction{in}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.Get(7); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

// TestWalkerClearsBeforeAggregate checks ClearStateVar sets NaN and a
// subsequent AddToAggregate starts accumulation from zero.
func TestWalkerClearsBeforeAggregate(t *testing.T) {
	store := newFakeStore()
	store.Set(9, 42) // stale value from a previous step

	w := NewWalker(store)

	clear := &instr.Instruction{Kind: instr.ClearStateVar, Variable: 9}
	add := &instr.Instruction{Kind: instr.AddToAggregate, Variable: 9, Code: lit(10)}

	sched := &order.Schedule{Groups: []*order.Group{{Members: []int{0, 1}}}}

	if err := w.Run(sched, []*instr.Instruction{clear, add}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.Get(9); got != 10 {
		t.Fatalf("expected aggregate to restart from 0 and accumulate to 10, got %v", got)
	}
}

// TestWalkerConnectionAggregateIteratesIndexSet checks that
// AddToConnectionAggregate sums Code's value once per index-set member,
// and that is_at(...) restrictions gate which member contributes.
func TestWalkerConnectionAggregateIteratesIndexSet(t *testing.T) {
	store := newFakeStore()
	store.setSizes[3] = 4

	w := NewWalker(store)

	code := &expr.IsAt{Base: expr.Base{Ty: expr.Dimensionless(expr.Bool)}, Restriction: loc.Restriction{Kind: loc.RestrictionSpecific, Index: 2}}
	in := &instr.Instruction{Kind: instr.AddToConnectionAggregate, Variable: 11, IndexSet: 3, Code: code}

	sched := &order.Schedule{Groups: []*order.Group{{Members: []int{0}}}}

	if err := w.Run(sched, []*instr.Instruction{in}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.Get(11); got != 1 {
		t.Fatalf("expected exactly one of 4 members (index 2) to match, got %v", got)
	}
}

// TestDumpSourceWritesGroupsAndInstructions exercises the textual schedule
// dump that DumpSource writes for debugging.
func TestDumpSourceWritesGroupsAndInstructions(t *testing.T) {
	in := &instr.Instruction{Seq: 0, Kind: instr.ComputeStateVar, Variable: 1}
	sched := &order.Schedule{Groups: []*order.Group{{Members: []int{0}}}}

	var buf bytes.Buffer

	if err := DumpSource(&buf, sched, []*instr.Instruction{in}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if buf.Len() == 0 {
		t.Fatal("expected non-empty dump output")
	}
}
