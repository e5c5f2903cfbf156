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

// Package codegen implements the code-generation/execution pass (C8): a
// direct tree-walking evaluator that runs an ordered instruction schedule
// against a Store, plus a textual dump of the same schedule for debugging
// and for the external JIT emitter boundary (jit.Emitter consumes a Program,
// whose Dump produces this rendering). Grounded on the teacher's split between a concrete
// execution path and a human-readable trace dump: pkg/air evaluates
// constraints directly over column data, and a separate print path renders
// the same structures as readable text. This package keeps that split:
// Walker executes, DumpSource renders, using the bavard-generated label
// table in internal/codegen/template for each instruction kind's phrase.
package codegen

import (
	"fmt"
	"io"
	"math"

	"github.com/mobius-lang/simc/expr"
	"github.com/mobius-lang/simc/instr"
	"github.com/mobius-lang/simc/internal/codegen/template"
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/order"
	"github.com/mobius-lang/simc/registry"
)

// Store is the runtime value backing store the walker reads and writes.
// model.Store implements this against a gnark-crypto fixed-point Value
// array; tests may supply a plain map-backed fake.
type Store interface {
	Get(id registry.ID) float64
	Set(id registry.ID, v float64)
	GetLast(id registry.ID) float64
	// ExternalCompute invokes the named foreign evaluator (an
	// ExternalComputation instruction's payload) and returns its result.
	ExternalCompute(name string, args []float64) (float64, error)
	// Now returns the current simulated instant's calendar fields, used by
	// TimeAttr/TimeStepLength nodes.
	Now() (year, month, day, dayOfYear int, stepSeconds float64)
	// IndexSetSize returns how many instances a connection-bound index set
	// iterates over, used to drive AddToConnectionAggregate's per-instance
	// accumulation loop.
	IndexSetSize(id registry.ID) int
}

// localFrame is the evaluator's lexical scope for LocalDecl/LocalRef/
// Reassign, a flat slice indexed by the resolver-assigned Index (blocks
// never shadow, so a single growable slice suffices), plus the current
// connection-instance index an is_at(...) restriction check compares
// against when this instruction iterates an index set.
type localFrame struct {
	values []float64
	idx    int
	hasIdx bool
}

func (f *localFrame) ensure(idx uint) {
	for uint(len(f.values)) <= idx {
		f.values = append(f.values, 0)
	}
}

func (f *localFrame) get(idx uint) float64 {
	f.ensure(idx)
	return f.values[idx]
}

func (f *localFrame) set(idx uint, v float64) {
	f.ensure(idx)
	f.values[idx] = v
}

// Walker executes an ordered Schedule's instructions against a Store.
type Walker struct {
	store Store
}

// NewWalker constructs a walker bound to store.
func NewWalker(store Store) *Walker {
	return &Walker{store: store}
}

// Eval interprets a single resolved expression against the walker's store in
// a fresh local frame, exposed so a continuous integrator (ode.Integrator)
// can evaluate a dissolved variable's rate-of-change expression directly,
// outside the discrete instruction schedule.
func (w *Walker) Eval(e expr.Expr) (float64, error) {
	return w.eval(e, &localFrame{})
}

// Run executes every instruction in sched, group by group, in member order
// within each group (groups exist only to document independence; a
// single-threaded walker may simply flatten them, but running group-by-group
// keeps the door open for a future concurrent walker without changing this
// package's contract).
func (w *Walker) Run(sched *order.Schedule, instrs []*instr.Instruction) error {
	for _, grp := range sched.Groups {
		for _, seq := range grp.Members {
			if err := w.step(instrs[seq]); err != nil {
				return fmt.Errorf("instruction %d (%s): %w", seq, instrs[seq].Kind, err)
			}
		}
	}

	return nil
}

func (w *Walker) step(in *instr.Instruction) error {
	switch in.Kind {
	case instr.ClearStateVar:
		w.store.Set(in.Variable, math.NaN())
		return nil
	case instr.AddToAggregate:
		frame := &localFrame{}

		v, err := w.eval(in.Code, frame)
		if err != nil {
			return err
		}

		prev := w.store.Get(in.Variable)
		if math.IsNaN(prev) {
			prev = 0
		}

		w.store.Set(in.Variable, prev+v)

		return nil
	case instr.AddToConnectionAggregate:
		size := w.store.IndexSetSize(in.IndexSet)

		prev := w.store.Get(in.Variable)
		if math.IsNaN(prev) {
			prev = 0
		}

		for i := 0; i < size; i++ {
			frame := &localFrame{idx: i, hasIdx: true}

			v, err := w.eval(in.Code, frame)
			if err != nil {
				return err
			}

			prev += v
		}

		w.store.Set(in.Variable, prev)

		return nil
	case instr.SubtractDiscreteFluxFromSource, instr.AddDiscreteFluxToTarget:
		frame := &localFrame{}

		v, err := w.eval(in.Code, frame)
		if err != nil {
			return err
		}

		if in.Kind == instr.SubtractDiscreteFluxFromSource {
			v = -v
		}

		w.store.Set(in.Variable, w.store.Get(in.Variable)+v)

		return nil
	case instr.ExternalComputation:
		ext, ok := in.Code.(*expr.ExternalComputation)
		if !ok {
			return fmt.Errorf("external_computation instruction carries non-ExternalComputation code")
		}

		frame := &localFrame{}

		args := make([]float64, len(ext.Args))

		for i, a := range ext.Args {
			v, err := w.eval(a, frame)
			if err != nil {
				return err
			}

			args[i] = v
		}

		result, err := w.store.ExternalCompute(ext.Name, args)
		if err != nil {
			return err
		}

		w.store.Set(in.Variable, result)

		return nil
	default:
		frame := &localFrame{}

		v, err := w.eval(in.Code, frame)
		if err != nil {
			return err
		}

		w.store.Set(in.Variable, v)

		return nil
	}
}

// eval interprets a single resolved expression node against frame and the
// walker's store, returning its scalar value (booleans as 0/1).
func (w *Walker) eval(e expr.Expr, frame *localFrame) (float64, error) {
	switch n := e.(type) {
	case nil:
		return 0, nil
	case *expr.Literal:
		switch n.Type().Scalar {
		case expr.Bool:
			if n.BoolVal {
				return 1, nil
			}

			return 0, nil
		case expr.Int:
			return float64(n.IntVal), nil
		default:
			return n.RealVal, nil
		}
	case *expr.Cast:
		return w.eval(n.Operand, frame)
	case *expr.LocalRef:
		return frame.get(n.Index), nil
	case *expr.LocalDecl:
		v, err := w.eval(n.Value, frame)
		if err != nil {
			return 0, err
		}

		frame.set(n.Index, v)

		return v, nil
	case *expr.Reassign:
		v, err := w.eval(n.Value, frame)
		if err != nil {
			return 0, err
		}

		frame.set(n.Index, v)

		return v, nil
	case *expr.ParamRef:
		if n.Baked {
			return n.Value, nil
		}

		return w.store.Get(n.Param), nil
	case *expr.SeriesRef:
		return w.store.Get(n.Series), nil
	case *expr.StateVarRef:
		id := lastComponent(n)

		if n.Last {
			return w.store.GetLast(id), nil
		}

		return w.store.Get(id), nil
	case *expr.ConstantRef:
		return w.store.Get(n.Constant), nil
	case *expr.NoOverride:
		return math.NaN(), nil
	case *expr.IsAt:
		if !frame.hasIdx {
			return 0, nil
		}

		switch n.Restriction.Kind {
		case loc.RestrictionSpecific:
			return boolf(frame.idx == n.Restriction.Index), nil
		case loc.RestrictionNone:
			return 1, nil
		default:
			// Top/Bottom/Above/Below require the connection's adjacency
			// topology, which this evaluator does not model; treat as
			// unmatched rather than silently matching every instance.
			return 0, nil
		}
	case *expr.TimeAttr:
		y, mo, d, doy, _ := w.store.Now()

		switch n.Attr {
		case expr.TimeYear:
			return float64(y), nil
		case expr.TimeMonth:
			return float64(mo), nil
		case expr.TimeDayOfMonth:
			return float64(d), nil
		default:
			return float64(doy), nil
		}
	case *expr.TimeStepLength:
		_, _, _, _, step := w.store.Now()
		return step, nil
	case *expr.BinOp:
		return w.evalBinOp(n, frame)
	case *expr.UnOp:
		v, err := w.eval(n.Operand, frame)
		if err != nil {
			return 0, err
		}

		switch n.Op {
		case "-":
			return -v, nil
		case "!":
			if v == 0 {
				return 1, nil
			}

			return 0, nil
		default:
			return 0, fmt.Errorf("unknown unary operator %q", n.Op)
		}
	case *expr.IfChain:
		for _, br := range n.Branches {
			if br.Condition == nil {
				return w.eval(br.Value, frame)
			}

			c, err := w.eval(br.Condition, frame)
			if err != nil {
				return 0, err
			}

			if c != 0 {
				return w.eval(br.Value, frame)
			}
		}

		return math.NaN(), nil
	case *expr.Block:
		var last float64

		for _, s := range n.Statements {
			v, err := w.eval(s, frame)
			if err != nil {
				return 0, err
			}

			last = v
		}

		return last, nil
	case *expr.IntrinsicCall:
		return w.evalIntrinsic(n, frame)
	case *expr.LinkedCall:
		args := make([]float64, len(n.Args))

		for i, a := range n.Args {
			v, err := w.eval(a, frame)
			if err != nil {
				return 0, err
			}

			args[i] = v
		}

		return w.store.ExternalCompute(n.Name, args)
	case *expr.ConvertFactor:
		v, err := w.eval(n.Operand, frame)
		if err != nil {
			return 0, err
		}

		return v * n.Factor, nil
	case *expr.ConvertOffset:
		v, err := w.eval(n.Operand, frame)
		if err != nil {
			return 0, err
		}

		return v + n.Offset, nil
	case *expr.NoOp:
		return 0, nil
	default:
		return 0, fmt.Errorf("codegen: unsupported expression node %T", e)
	}
}

func lastComponent(n *expr.StateVarRef) registry.ID {
	if len(n.Location.Components) == 0 {
		return registry.Invalid
	}

	return n.Location.Components[len(n.Location.Components)-1]
}

func (w *Walker) evalBinOp(n *expr.BinOp, frame *localFrame) (float64, error) {
	l, err := w.eval(n.Left, frame)
	if err != nil {
		return 0, err
	}

	r, err := w.eval(n.Right, frame)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		return l / r, nil
	case "//":
		return math.Trunc(l / r), nil
	case "%":
		return math.Mod(l, r), nil
	case "^":
		return math.Pow(l, r), nil
	case "<":
		return boolf(l < r), nil
	case ">":
		return boolf(l > r), nil
	case "<=":
		return boolf(l <= r), nil
	case ">=":
		return boolf(l >= r), nil
	case "=":
		return boolf(l == r), nil
	case "!=":
		return boolf(l != r), nil
	case "&":
		return boolf(l != 0 && r != 0), nil
	case "|":
		return boolf(l != 0 || r != 0), nil
	default:
		return 0, fmt.Errorf("unknown binary operator %q", n.Op)
	}
}

func boolf(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

func (w *Walker) evalIntrinsic(n *expr.IntrinsicCall, frame *localFrame) (float64, error) {
	args := make([]float64, len(n.Args))

	for i, a := range n.Args {
		v, err := w.eval(a, frame)
		if err != nil {
			return 0, err
		}

		args[i] = v
	}

	switch n.Name {
	case "min":
		m := args[0]
		for _, v := range args[1:] {
			if v < m {
				m = v
			}
		}

		return m, nil
	case "max":
		m := args[0]
		for _, v := range args[1:] {
			if v > m {
				m = v
			}
		}

		return m, nil
	case "sqrt":
		return math.Sqrt(args[0]), nil
	case "abs":
		return math.Abs(args[0]), nil
	case "floor":
		return math.Floor(args[0]), nil
	case "ceil":
		return math.Ceil(args[0]), nil
	case "exp":
		return math.Exp(args[0]), nil
	case "ln":
		return math.Log(args[0]), nil
	case "sin":
		return math.Sin(args[0]), nil
	case "cos":
		return math.Cos(args[0]), nil
	default:
		return 0, fmt.Errorf("unknown intrinsic %q", n.Name)
	}
}

// Program bundles a scheduled instruction list into the one value the
// external JIT emitter boundary (jit.Emitter) consumes, so the emitter never
// needs to import order/instr directly.
type Program struct {
	Schedule *order.Schedule
	Instrs   []*instr.Instruction
}

// NewProgram wraps a compiled schedule for handoff to a jit.Emitter.
func NewProgram(sched *order.Schedule, instrs []*instr.Instruction) Program {
	return Program{Schedule: sched, Instrs: instrs}
}

// Dump renders p the same way DumpSource does, the textual form a jit.Emitter
// may choose to compile instead of walking Program's structured fields.
func (p Program) Dump(w io.Writer) error {
	return DumpSource(w, p.Schedule, p.Instrs)
}

// DumpSource renders sched as readable text, one line per instruction naming
// its kind, target variable and dependency ids, grouped under a "Group N:"
// heading -- the debug trace Program.Dump also writes.
func DumpSource(w io.Writer, sched *order.Schedule, instrs []*instr.Instruction) error {
	for gi, grp := range sched.Groups {
		if _, err := fmt.Fprintf(w, "// Group %d:\n", gi); err != nil {
			return err
		}

		for _, seq := range grp.Members {
			in := instrs[seq]
			if _, err := fmt.Fprintf(w, "//   [%d] %s (%s) var=%d deps=%v solver=%d\n",
				in.Seq, in.Kind, template.LoopBodyLabel(in.Kind.String()), in.Variable, depTargets(in.Deps), in.SolverLabel); err != nil {
				return err
			}
		}
	}

	return nil
}

func depTargets(deps []instr.Dependency) []registry.ID {
	out := make([]registry.ID, len(deps))
	for i, d := range deps {
		out[i] = d.Target
	}

	return out
}
