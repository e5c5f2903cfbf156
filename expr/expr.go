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
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/registry"
	"github.com/mobius-lang/simc/source"
)

// Kind tags every typed-expression node kind. Per the "dynamic dispatch over
// expression kinds" design note, sub-cases carry only their own payload
// (no inheritance); a single switch over Kind() drives every recursive
// walker (evaluator, pretty-printer, index-set inference).
type Kind uint8

const (
	KindLiteral Kind = iota
	KindCast
	KindLocalRef
	KindLocalDecl
	KindReassign
	KindParamRef
	KindSeriesRef
	KindStateVarRef
	KindConnectionRef
	KindConstantRef
	KindNoOverride
	KindIsAt
	KindTimeAttr
	KindTimeStepLength
	KindBinary
	KindUnary
	KindIfChain
	KindBlock
	KindIntrinsicCall
	KindLinkedCall
	KindConvertFactor
	KindConvertOffset
	KindTuple
	KindTupleUnpack
	KindTupleAccess
	KindNoOp
	KindExternalComputation
)

// Expr is a single node of the typed, resolved expression tree.
type Expr interface {
	Kind() Kind
	Type() Type
	Span() source.Span
}

// Base carries the fields common to every typed node.
type Base struct {
	Ty  Type
	Loc source.Span
}

func (b Base) Type() Type          { return b.Ty }
func (b Base) Span() source.Span   { return b.Loc }

// Literal is a resolved constant value.
type Literal struct {
	Base
	IntVal  int64
	RealVal float64
	BoolVal bool
}

func (l *Literal) Kind() Kind { return KindLiteral }

// IsZero reports whether this literal is the integer/real constant 0, which
// the unit-checking rules for `+ - % =` treat as matching any unit.
func (l *Literal) IsZero() bool {
	return (l.Ty.Scalar == Int && l.IntVal == 0) || (l.Ty.Scalar == Real && l.RealVal == 0)
}

// Cast wraps a value to widen its scalar kind (bool->int->real), inserted
// automatically wherever binary/unary operators unify mismatched operand
// kinds.
type Cast struct {
	Base
	Operand Expr
}

func (c *Cast) Kind() Kind { return KindCast }

// LocalRef reads a previously bound local variable or function parameter.
type LocalRef struct {
	Base
	Name  string
	Index uint
}

func (l *LocalRef) Kind() Kind { return KindLocalRef }

// LocalDecl declares name := Value in the current block; rejects shadowing
// within the same block.
type LocalDecl struct {
	Base
	Name  string
	Index uint
	Value Expr
}

func (l *LocalDecl) Kind() Kind { return KindLocalDecl }

// Reassign rebinds an existing local found through enclosing blocks.
type Reassign struct {
	Base
	Name  string
	Index uint
	Value Expr
}

func (r *Reassign) Kind() Kind { return KindReassign }

// ParamRef reads a parameter, optionally baked to a literal at resolve time.
type ParamRef struct {
	Base
	Param registry.ID
	Baked bool
	Value float64 // only meaningful when Baked
}

func (p *ParamRef) Kind() Kind { return KindParamRef }

// SeriesRef reads an input time series.
type SeriesRef struct {
	Base
	Series registry.ID
}

func (s *SeriesRef) Kind() Kind { return KindSeriesRef }

// StateVarRef reads a state variable, possibly relative to the enclosing
// in_location.
type StateVarRef struct {
	Base
	Location loc.Location
	Last     bool // true when this came from a last(...) directive
}

func (s *StateVarRef) Kind() Kind { return KindStateVarRef }

// ConnectionRef reads a connection entity by id (used as an argument to
// in_flux/out_flux/aggregate directives and restriction suffixes).
type ConnectionRef struct {
	Base
	Connection registry.ID
}

func (c *ConnectionRef) Kind() Kind { return KindConnectionRef }

// ConstantRef reads a named constant.
type ConstantRef struct {
	Base
	Constant registry.ID
}

func (c *ConstantRef) Kind() Kind { return KindConstantRef }

// NoOverride is the sentinel value an override body may return to mean "use
// the main computation instead".
type NoOverride struct{ Base }

func (n *NoOverride) Kind() Kind { return KindNoOverride }

// IsAt evaluates whether the current index equals the position named by a
// restriction.
type IsAt struct {
	Base
	Restriction loc.Restriction
}

func (i *IsAt) Kind() Kind { return KindIsAt }

// TimeAttrKind distinguishes the supported calendar attributes.
type TimeAttrKind uint8

const (
	TimeYear TimeAttrKind = iota
	TimeMonth
	TimeDayOfMonth
	TimeDayOfYear
)

// TimeAttr reads a calendar component of the current simulated instant.
type TimeAttr struct {
	Base
	Attr TimeAttrKind
}

func (t *TimeAttr) Kind() Kind { return KindTimeAttr }

// TimeStepLength reads time_step_length_in_seconds.
type TimeStepLength struct{ Base }

func (t *TimeStepLength) Kind() Kind { return KindTimeStepLength }

// BinOp is a resolved binary operator; Op is one of
// `| & < > <= >= = != + - * / % ^ //`.
type BinOp struct {
	Base
	Op          string
	Left, Right Expr
}

func (b *BinOp) Kind() Kind { return KindBinary }

// UnOp is a resolved unary operator `- !`.
type UnOp struct {
	Base
	Op      string
	Operand Expr
}

func (u *UnOp) Kind() Kind { return KindUnary }

// IfBranch pairs a (already boolean-cast) condition with its value.
type IfBranch struct {
	Condition Expr // nil for the final fallback branch
	Value     Expr
}

// IfChain is the resolved `a if c, b if c2, ... otherwise` conditional.
type IfChain struct {
	Base
	Branches []IfBranch
}

func (i *IfChain) Kind() Kind { return KindIfChain }

// Block sequences statements; its type is the type of the last child.
type Block struct {
	Base
	Statements []Expr
}

func (b *Block) Kind() Kind { return KindBlock }

// IntrinsicCall invokes a compiler-recognized intrinsic operator/function
// directly (e.g. min, max, sqrt), compiling to a direct op rather than an
// inlined block.
type IntrinsicCall struct {
	Base
	Name string
	Args []Expr
}

func (c *IntrinsicCall) Kind() Kind { return KindIntrinsicCall }

// LinkedCall invokes a foreign (host-linked) function by name; the typed
// tree carries only the name and resolved argument expressions, since the
// actual implementation lives outside the compiler.
type LinkedCall struct {
	Base
	Name string
	Args []Expr
}

func (c *LinkedCall) Kind() Kind { return KindLinkedCall }

// ConvertFactor multiplies Operand by a compile-time-computed scalar
// conversion factor (the `=>`/`-->>` checked and auto forms once resolved).
type ConvertFactor struct {
	Base
	Operand Expr
	Factor  float64
}

func (c *ConvertFactor) Kind() Kind { return KindConvertFactor }

// ConvertOffset applies an additive conversion (the `==>` form, used for
// °C<->K), preserved as an offset rather than folded into a factor.
type ConvertOffset struct {
	Base
	Operand Expr
	Offset  float64
}

func (c *ConvertOffset) Kind() Kind { return KindConvertOffset }

// Tuple is a fixed-arity aggregate of typed values.
type Tuple struct {
	Base
	Elements []Expr
}

func (t *Tuple) Kind() Kind { return KindTuple }

// TupleUnpack destructures Value into n local bindings matching its
// per-slot units.
type TupleUnpack struct {
	Base
	Names   []string
	Indices []uint
	Value   Expr
}

func (t *TupleUnpack) Kind() Kind { return KindTupleUnpack }

// TupleAccess reads one slot of a tuple-valued expression.
type TupleAccess struct {
	Base
	Value Expr
	Index int
}

func (t *TupleAccess) Kind() Kind { return KindTupleAccess }

// NoOp is inserted by pruning wherever a statement evaluates to nothing of
// use (e.g. a trivial conversion with factor 1, or an aggregator compute
// stub with no body).
type NoOp struct{ Base }

func (n *NoOp) Kind() Kind { return KindNoOp }

// ExternalComputation marks a variable whose value is produced by an opaque
// foreign evaluator rather than compiled code. Merges what the original
// source calls "special_computation" and "external_computation" into one
// kind (spec.md §9 open question), carrying argument and result offsets
// resolved later by the code-gen walker.
type ExternalComputation struct {
	Base
	Name string
	Args []Expr
}

func (e *ExternalComputation) Kind() Kind { return KindExternalComputation }
