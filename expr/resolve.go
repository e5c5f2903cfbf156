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
	"fmt"
	"math/big"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/diag"
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/units"
)

// Resolver performs the recursive walk described in spec.md §4.3: consuming
// an abstract node and a resolution context, producing a typed expression
// plus any fatal diagnostics. One Resolver is constructed per compilation
// and shared across every variable's code body, so the inline cache actually
// amortizes repeated calls to the same function.
type Resolver struct {
	Env    Environment
	Inline *InlineCache
}

// NewResolver constructs a resolver bound to a given environment.
func NewResolver(env Environment) *Resolver {
	return &Resolver{Env: env, Inline: NewInlineCache()}
}

// Resolve is the single recursive entry point; every node kind is handled
// by its own rule below, matching spec.md §4.3 exactly.
func (r *Resolver) Resolve(ctx *Context, n ast.Node) (Expr, []error) {
	switch node := n.(type) {
	case *ast.Literal:
		return r.resolveLiteral(node)
	case *ast.Identifier:
		return r.resolveIdentifier(ctx, node)
	case *ast.Call:
		return r.resolveCall(ctx, node)
	case *ast.UnaryOp:
		return r.resolveUnary(ctx, node)
	case *ast.BinaryOp:
		return r.resolveBinary(ctx, node)
	case *ast.Block:
		return r.resolveBlock(ctx, node)
	case *ast.IfChain:
		return r.resolveIfChain(ctx, node)
	case *ast.LocalDecl:
		return r.resolveLocalDecl(ctx, node)
	case *ast.Reassign:
		return r.resolveReassign(ctx, node)
	case *ast.Convert:
		return r.resolveConvert(ctx, node)
	case *ast.IterateTag:
		return r.resolveIterateTag(ctx, node)
	case *ast.IterateRef:
		return r.resolveIterateRef(ctx, node)
	case *ast.Tuple:
		return r.resolveTuple(ctx, node)
	case *ast.Unpack:
		return r.resolveUnpack(ctx, node)
	default:
		return nil, []error{diag.New(diag.Internal, "unhandled node kind %T", n)}
	}
}

func (r *Resolver) resolveLiteral(n *ast.Literal) (Expr, []error) {
	switch n.LitKind {
	case ast.LitInt:
		return &Literal{Base: Base{Ty: Dimensionless(Int), Loc: n.Span()}, IntVal: n.Int}, nil
	case ast.LitReal:
		return &Literal{Base: Base{Ty: Dimensionless(Real), Loc: n.Span()}, RealVal: n.Real}, nil
	case ast.LitBool:
		return &Literal{Base: Base{Ty: Dimensionless(Bool), Loc: n.Span()}, BoolVal: n.Bool}, nil
	default:
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "unsupported literal kind")}
	}
}

// resolveIdentifier looks up the head of a dotted chain: a local variable,
// parameter, series, state variable (possibly relative to in_location),
// connection, constant, `no_override`, `is_at`, a time attribute, or
// `time_step_length_in_seconds`. A bracketed suffix `[connection, kind]`
// attaches a restriction.
func (r *Resolver) resolveIdentifier(ctx *Context, n *ast.Identifier) (Expr, []error) {
	if len(n.Path) == 0 {
		return nil, []error{diag.At(diag.Internal, nil, n.Span(), "empty identifier chain")}
	}

	head := n.Path[0].Name

	switch head {
	case "no_override":
		if !ctx.Perms.AllowNoOverride {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "no_override is not permitted here")}
		}

		return &NoOverride{Base{Ty: Dimensionless(Real), Loc: n.Span()}}, nil
	case "time_step_length_in_seconds":
		return &TimeStepLength{Base{Ty: Dimensionless(Real), Loc: n.Span()}}, nil
	case "year", "month", "day_of_month", "day_of_year":
		return r.resolveTimeAttr(n, head)
	}

	if !ctx.IsAdmissible(head) {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "symbol %q is not admissible in this context", head)}
	}

	if ty, idx, ok := ctx.LookupLocal(head); ok {
		return &LocalRef{Base{Ty: ty, Loc: n.Span()}, head, idx}, nil
	}

	kind, id, resolvedLoc, ok := r.Env.Lookup(ctx.Scope, ctx.InLocation, head)
	if !ok {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "unresolved identifier %q", head)}
	}

	restriction, errs := r.resolveRestriction(ctx, n)
	if len(errs) > 0 {
		return nil, errs
	}

	switch kind {
	case SymParam:
		u := r.Env.Unit(SymParam, id, loc.Location{})
		p := &ParamRef{Base: Base{Ty: Type{Scalar: Real, Unit: u}, Loc: n.Span()}, Param: id}

		if ctx.Bakeable[id] {
			if v, ok := r.Env.ParamValue(id); ok {
				p.Baked, p.Value = true, v
			}
		}

		return p, nil
	case SymSeries:
		u := r.Env.Unit(SymSeries, id, loc.Location{})
		return &SeriesRef{Base{Ty: Type{Scalar: Real, Unit: u}, Loc: n.Span()}, id}, nil
	case SymStateVar:
		l := resolvedLoc.WithRestriction(restriction)
		u := r.Env.Unit(SymStateVar, id, l)

		return &StateVarRef{Base: Base{Ty: Type{Scalar: Real, Unit: u}, Loc: n.Span()}, Location: l}, nil
	case SymConnection:
		return &ConnectionRef{Base{Ty: Dimensionless(Int), Loc: n.Span()}, id}, nil
	case SymConstant:
		ty, lit := r.Env.ConstantValue(id)
		_ = lit

		return &ConstantRef{Base{Ty: ty, Loc: n.Span()}, id}, nil
	default:
		return nil, []error{diag.At(diag.Internal, nil, n.Span(), "unresolved symbol kind for %q", head)}
	}
}

func (r *Resolver) resolveTimeAttr(n *ast.Identifier, head string) (Expr, []error) {
	var k TimeAttrKind

	switch head {
	case "year":
		k = TimeYear
	case "month":
		k = TimeMonth
	case "day_of_month":
		k = TimeDayOfMonth
	case "day_of_year":
		k = TimeDayOfYear
	}

	return &TimeAttr{Base{Ty: Dimensionless(Int), Loc: n.Span()}, k}, nil
}

// resolveRestriction attaches a `[connection, kind]` bracketed suffix found
// on the chain's first segment, if any.
func (r *Resolver) resolveRestriction(ctx *Context, n *ast.Identifier) (loc.Restriction, []error) {
	seg := n.Path[0]
	if seg.RestrictionConn == "" {
		return loc.Restriction{}, nil
	}

	connKind, connID, _, ok := r.Env.Lookup(ctx.Scope, ctx.InLocation, seg.RestrictionConn)
	if !ok || connKind != SymConnection {
		return loc.Restriction{}, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "unresolved connection %q in restriction", seg.RestrictionConn)}
	}

	var rk loc.RestrictionKind

	switch seg.RestrictionKind {
	case "top":
		rk = loc.RestrictionTop
	case "bottom":
		rk = loc.RestrictionBottom
	case "above":
		rk = loc.RestrictionAbove
	case "below":
		rk = loc.RestrictionBelow
	default:
		rk = loc.RestrictionSpecific
	}

	return loc.Restriction{Connection: connID, Kind: rk}, nil
}

func (r *Resolver) resolveUnary(ctx *Context, n *ast.UnaryOp) (Expr, []error) {
	operand, errs := r.Resolve(ctx, n.Operand)
	if len(errs) > 0 {
		return nil, errs
	}

	switch n.Op {
	case "-":
		if operand.Type().Scalar == Bool {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "cannot negate a boolean")}
		}

		return &UnOp{Base{Ty: operand.Type(), Loc: n.Span()}, n.Op, operand}, nil
	case "!":
		if operand.Type().Scalar != Bool {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "! requires a boolean operand")}
		}

		return &UnOp{Base{Ty: Dimensionless(Bool), Loc: n.Span()}, n.Op, operand}, nil
	default:
		return nil, []error{diag.At(diag.Internal, nil, n.Span(), "unhandled unary operator %q", n.Op)}
	}
}

var booleanOps = map[string]bool{"|": true, "&": true}
var comparisonOps = map[string]bool{"<": true, ">": true, "<=": true, ">=": true, "=": true, "!=": true}
var arithOps = map[string]bool{"+": true, "-": true, "%": true}
var mulDivOps = map[string]bool{"*": true, "/": true}

func (r *Resolver) resolveBinary(ctx *Context, n *ast.BinaryOp) (Expr, []error) {
	left, errs := r.Resolve(ctx, n.Left)
	if len(errs) > 0 {
		return nil, errs
	}

	right, errs := r.Resolve(ctx, n.Right)
	if len(errs) > 0 {
		return nil, errs
	}

	switch {
	case booleanOps[n.Op]:
		return r.resolveBooleanOp(n, left, right)
	case comparisonOps[n.Op]:
		return r.resolveComparisonOp(n, left, right)
	case arithOps[n.Op]:
		return r.resolveArithOp(n, left, right)
	case mulDivOps[n.Op]:
		return r.resolveMulDivOp(n, left, right)
	case n.Op == "^":
		return r.resolvePowerOp(n, left, right)
	case n.Op == "//":
		return r.resolveIntDivOp(n, left, right)
	default:
		return nil, []error{diag.At(diag.Internal, nil, n.Span(), "unhandled binary operator %q", n.Op)}
	}
}

func (r *Resolver) resolveBooleanOp(n *ast.BinaryOp, left, right Expr) (Expr, []error) {
	if left.Type().Scalar != Bool || right.Type().Scalar != Bool {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%q requires boolean operands", n.Op)}
	}

	return &BinOp{Base{Ty: Dimensionless(Bool), Loc: n.Span()}, n.Op, left, right}, nil
}

// unifyUnits implements the `+ - % =` rule: both operands must share a unit,
// except that a literal 0 matches any unit (the "literal-0 rule").
func unifyUnits(left, right Expr) (units.Standard, bool) {
	lz, lIsZero := left.(*Literal)
	rz, rIsZero := right.(*Literal)

	if lIsZero && lz.IsZero() {
		return right.Type().Unit, true
	}

	if rIsZero && rz.IsZero() {
		return left.Type().Unit, true
	}

	if units.MatchExact(left.Type().Unit, right.Type().Unit) {
		return left.Type().Unit, true
	}

	return units.Standard{}, false
}

func (r *Resolver) resolveComparisonOp(n *ast.BinaryOp, left, right Expr) (Expr, []error) {
	if n.Op == "=" || n.Op == "!=" {
		if _, ok := unifyUnits(left, right); !ok {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "operands of %q must share a unit", n.Op)}
		}
	} else if !units.MatchExact(left.Type().Unit, right.Type().Unit) {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "operands of %q must share a unit", n.Op)}
	}

	left, right = unifyScalar(left, right)

	return &BinOp{Base{Ty: Dimensionless(Bool), Loc: n.Span()}, n.Op, left, right}, nil
}

func (r *Resolver) resolveArithOp(n *ast.BinaryOp, left, right Expr) (Expr, []error) {
	u, ok := unifyUnits(left, right)
	if !ok {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "operands of %q must share a unit", n.Op)}
	}

	left, right = unifyScalar(left, right)
	scalar := Dominant(left.Type().Scalar, right.Type().Scalar)

	return &BinOp{Base{Ty: Type{Scalar: scalar, Unit: u}, Loc: n.Span()}, n.Op, left, right}, nil
}

func (r *Resolver) resolveMulDivOp(n *ast.BinaryOp, left, right Expr) (Expr, []error) {
	power := 1
	if n.Op == "/" {
		power = -1
	}

	u := units.Multiply(left.Type().Unit, right.Type().Unit, power)
	scalar := Dominant(left.Type().Scalar, right.Type().Scalar)

	if n.Op == "/" {
		scalar = Real
	}

	return &BinOp{Base{Ty: Type{Scalar: scalar, Unit: u}, Loc: n.Span()}, n.Op, left, right}, nil
}

func (r *Resolver) resolveIntDivOp(n *ast.BinaryOp, left, right Expr) (Expr, []error) {
	if !left.Type().Unit.IsDimensionless() || !right.Type().Unit.IsDimensionless() {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "// requires dimensionless operands")}
	}

	return &BinOp{Base{Ty: Dimensionless(Int), Loc: n.Span()}, n.Op, left, right}, nil
}

// resolvePowerOp requires a dimensionless base, or a constant rational
// exponent applied to a unit whose multiplier is 1 (units.Power enforces
// the latter).
func (r *Resolver) resolvePowerOp(n *ast.BinaryOp, left, right Expr) (Expr, []error) {
	lit, ok := right.(*Literal)
	if !ok {
		if !left.Type().Unit.IsDimensionless() {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "^ with a non-constant exponent requires a dimensionless base")}
		}

		return &BinOp{Base{Ty: Dimensionless(Real), Loc: n.Span()}, n.Op, left, right}, nil
	}

	var exponent *big.Rat

	if lit.Ty.Scalar == Int {
		exponent = big.NewRat(lit.IntVal, 1)
	} else {
		exponent = new(big.Rat).SetFloat64(lit.RealVal)
		if exponent == nil {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "^ exponent is not a finite rational number")}
		}
	}

	u, err := units.Power(left.Type().Unit, exponent)
	if err != nil {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%v", err)}
	}

	return &BinOp{Base{Ty: Type{Scalar: Real, Unit: u}, Loc: n.Span()}, n.Op, left, right}, nil
}

// unifyScalar inserts a Cast around whichever operand has the lower scalar
// kind, so both sides of a comparison/arithmetic op share a common kind.
func unifyScalar(left, right Expr) (Expr, Expr) {
	dominant := Dominant(left.Type().Scalar, right.Type().Scalar)

	if left.Type().Scalar != dominant {
		left = &Cast{Base{Ty: Type{Scalar: dominant, Unit: left.Type().Unit}, Loc: left.Span()}, left}
	}

	if right.Type().Scalar != dominant {
		right = &Cast{Base{Ty: Type{Scalar: dominant, Unit: right.Type().Unit}, Loc: right.Span()}, right}
	}

	return left, right
}

// resolveBlock resolves children in order; value type = value type of last
// child; error if any non-last child evaluates to a value (i.e. is not a
// statement with side-effect-only semantics, which in this language means
// local declarations/reassignments).
func (r *Resolver) resolveBlock(ctx *Context, n *ast.Block) (Expr, []error) {
	if len(n.Statements) == 0 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "empty block")}
	}

	inner := ctx.NestedBlock()

	var stmts []Expr

	for i, s := range n.Statements {
		e, errs := r.Resolve(inner, s)
		if len(errs) > 0 {
			return nil, errs
		}

		if i != len(n.Statements)-1 {
			switch e.Kind() {
			case KindLocalDecl, KindReassign, KindNoOp:
			default:
				return nil, []error{diag.At(diag.ModelBuilding, nil, s.Span(), "non-final statement in a block must not produce a value")}
			}
		}

		stmts = append(stmts, e)
	}

	return &Block{Base{Ty: stmts[len(stmts)-1].Type(), Loc: n.Span()}, stmts}, nil
}

// resolveIfChain requires every condition to be dimensionless boolean and
// every branch to share a unit (modulo the literal-0 rule).
func (r *Resolver) resolveIfChain(ctx *Context, n *ast.IfChain) (Expr, []error) {
	var branches []IfBranch

	var unit units.Standard

	unitSet := false

	var scalar Scalar

	for _, b := range n.Branches {
		var cond Expr

		var errs []error

		if b.Condition != nil {
			cond, errs = r.Resolve(ctx, b.Condition)
			if len(errs) > 0 {
				return nil, errs
			}

			if cond.Type().Scalar != Bool {
				return nil, []error{diag.At(diag.ModelBuilding, nil, b.Condition.Span(), "if-chain condition must be boolean")}
			}
		}

		val, errs := r.Resolve(ctx, b.Value)
		if len(errs) > 0 {
			return nil, errs
		}

		if lit, ok := val.(*Literal); !(ok && lit.IsZero()) {
			if unitSet && !units.MatchExact(unit, val.Type().Unit) {
				return nil, []error{diag.At(diag.ModelBuilding, nil, b.Value.Span(), "if-chain branches must share a unit")}
			}

			unit, unitSet = val.Type().Unit, true
		}

		scalar = Dominant(scalar, val.Type().Scalar)
		branches = append(branches, IfBranch{cond, val})
	}

	for i, b := range branches {
		if b.Value.Type().Scalar != scalar {
			branches[i].Value = &Cast{Base{Ty: Type{Scalar: scalar, Unit: b.Value.Type().Unit}, Loc: b.Value.Span()}, b.Value}
		}
	}

	return &IfChain{Base{Ty: Type{Scalar: scalar, Unit: unit}, Loc: n.Span()}, branches}, nil
}

// resolveLocalDecl rejects shadowing within the same block.
func (r *Resolver) resolveLocalDecl(ctx *Context, n *ast.LocalDecl) (Expr, []error) {
	val, errs := r.Resolve(ctx, n.Value)
	if len(errs) > 0 {
		return nil, errs
	}

	idx, ok := ctx.DeclareLocal(n.Name, val.Type())
	if !ok {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "local %q already declared in this block", n.Name)}
	}

	return &LocalDecl{Base{Ty: val.Type(), Loc: n.Span()}, n.Name, idx, val}, nil
}

// resolveReassign looks up the binding through enclosing blocks and enforces
// unit identity with the declared value.
func (r *Resolver) resolveReassign(ctx *Context, n *ast.Reassign) (Expr, []error) {
	ty, idx, ok := ctx.LookupLocal(n.Name)
	if !ok {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "reassignment of undeclared local %q", n.Name)}
	}

	val, errs := r.Resolve(ctx, n.Value)
	if len(errs) > 0 {
		return nil, errs
	}

	if !units.MatchExact(ty.Unit, val.Type().Unit) {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "reassignment of %q must preserve its unit", n.Name)}
	}

	return &Reassign{Base{Ty: ty, Loc: n.Span()}, n.Name, idx, val}, nil
}

// resolveConvert handles all four unit-conversion arrow forms.
func (r *Resolver) resolveConvert(ctx *Context, n *ast.Convert) (Expr, []error) {
	operand, errs := r.Resolve(ctx, n.Operand)
	if len(errs) > 0 {
		return nil, errs
	}

	var target units.Standard

	if n.Mode == ast.ConvertAuto {
		if ctx.ExpectedUnit == nil {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "auto conversion requires a known expected unit")}
		}

		target = *ctx.ExpectedUnit
	} else {
		decl, err := unitExprToDeclared(n.TargetUnit)
		if err != nil {
			return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "%v", err)}
		}

		std, err := units.Standardize(decl)
		if err != nil {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%v", err)}
		}

		target = std
	}

	switch n.Mode {
	case ast.ConvertForce:
		return &ConvertFactor{Base{Ty: Type{Scalar: Real, Unit: target}, Loc: n.Span()}, operand, 1.0}, nil
	case ast.ConvertCheckedAdditive:
		if offset, ok := units.MatchOffset(target, operand.Type().Unit); ok {
			return &ConvertOffset{Base{Ty: Type{Scalar: Real, Unit: target}, Loc: n.Span()}, operand, offset}, nil
		}

		fallthrough
	case ast.ConvertChecked, ast.ConvertAuto:
		factor, ok := units.Match(target, operand.Type().Unit)
		if !ok {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(),
				"no conversion factor from %v to %v", operand.Type().Unit, target)}
		}

		f, _ := factor.Float64()

		if f == 1.0 {
			return operand, nil // trivial conversion: pruned away immediately
		}

		return &ConvertFactor{Base{Ty: Type{Scalar: Real, Unit: target}, Loc: n.Span()}, operand, f}, nil
	default:
		return nil, []error{diag.At(diag.Internal, nil, n.Span(), "unhandled conversion mode")}
	}
}

func (r *Resolver) resolveIterateTag(ctx *Context, n *ast.IterateTag) (Expr, []error) {
	ctx.NewTag(n.Label)
	return r.Resolve(ctx, n.Body)
}

func (r *Resolver) resolveIterateRef(ctx *Context, n *ast.IterateRef) (Expr, []error) {
	if _, ok := ctx.LookupTag(n.Label); !ok {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "iterate tag %q not in scope", n.Label)}
	}
	// Referencing an in-scope tag evaluates to the current index of that
	// iteration; modeled as a dimensionless integer for now, refined by the
	// index-set inference pass (C6) which knows which index set this tag
	// corresponds to.
	return &Literal{Base{Ty: Dimensionless(Int), Loc: n.Span()}, 0, 0, false}, nil
}

func (r *Resolver) resolveTuple(ctx *Context, n *ast.Tuple) (Expr, []error) {
	var elems []Expr

	var types []Type

	for _, e := range n.Elements {
		re, errs := r.Resolve(ctx, e)
		if len(errs) > 0 {
			return nil, errs
		}

		elems = append(elems, re)
		types = append(types, re.Type())
	}

	return &Tuple{Base{Ty: Type{Tuple: types}, Loc: n.Span()}, elems}, nil
}

func (r *Resolver) resolveUnpack(ctx *Context, n *ast.Unpack) (Expr, []error) {
	val, errs := r.Resolve(ctx, n.Value)
	if len(errs) > 0 {
		return nil, errs
	}

	if !val.Type().IsTuple() || len(val.Type().Tuple) != len(n.Names) {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "tuple unpack arity mismatch")}
	}

	indices := make([]uint, len(n.Names))

	for i, name := range n.Names {
		idx, ok := ctx.DeclareLocal(name, val.Type().Tuple[i])
		if !ok {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "local %q already declared in this block", name)}
		}

		indices[i] = idx
	}

	return &TupleUnpack{Base{Ty: Dimensionless(Bool), Loc: n.Span()}, n.Names, indices, val}, nil
}

// resolveArgs resolves a plain argument list left-to-right, stopping at the
// first error.
func (r *Resolver) resolveArgs(ctx *Context, nodes []ast.Node) ([]Expr, []error) {
	args := make([]Expr, len(nodes))

	for i, a := range nodes {
		e, errs := r.Resolve(ctx, a)
		if len(errs) > 0 {
			return nil, errs
		}

		args[i] = e
	}

	return args, nil
}

// resolveCall dispatches a call node to its reserved directive rule, an
// intrinsic, or an ordinary (linked or declared) function.
func (r *Resolver) resolveCall(ctx *Context, n *ast.Call) (Expr, []error) {
	switch n.Callee {
	case "last":
		return r.resolveLastDirective(ctx, n)
	case "in_flux", "out_flux":
		return r.resolveFluxDirective(ctx, n)
	case "aggregate":
		return r.resolveAggregateDirective(ctx, n)
	case "result":
		return r.resolveResultDirective(ctx, n)
	case "conc":
		return r.resolveConcDirective(ctx, n)
	case "tuple":
		return r.resolveTupleDirective(ctx, n)
	case "is_at":
		return r.resolveIsAtDirective(ctx, n)
	case "external":
		return r.resolveExternalDirective(ctx, n)
	}

	if IsIntrinsic(n.Callee) {
		return r.resolveIntrinsicCall(ctx, n)
	}

	fn, ok := r.Env.Function(ctx.Scope, n.Callee)
	if !ok {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "unresolved function %q", n.Callee)}
	}

	if fn.Linked {
		return r.resolveLinkedCall(ctx, n, fn)
	}

	return r.resolveInlinedCall(ctx, n, fn)
}

// resolveLastDirective handles `last(x)`, which reads a state variable's
// value from the previous time step rather than the current one.
func (r *Resolver) resolveLastDirective(ctx *Context, n *ast.Call) (Expr, []error) {
	if !ctx.Perms.AllowLast {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "last() is not permitted here")}
	}

	if len(n.Args) != 1 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "last() takes exactly one argument")}
	}

	arg, errs := r.Resolve(ctx, n.Args[0])
	if len(errs) > 0 {
		return nil, errs
	}

	sv, ok := arg.(*StateVarRef)
	if !ok {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "last() requires a state variable reference")}
	}

	return &StateVarRef{Base: sv.Base, Location: sv.Location, Last: true}, nil
}

// resolveFluxDirective handles `in_flux(...)`/`out_flux(...)`, which sum the
// discrete/connection fluxes bound to the in_location being computed. The
// sum itself is only known once C4/C6 have built the connection topology, so
// the typed tree just carries an IntrinsicCall for the later passes to act
// on; the type is taken from the first argument (the quantity being summed).
func (r *Resolver) resolveFluxDirective(ctx *Context, n *ast.Call) (Expr, []error) {
	if !ctx.Perms.AllowInFlux {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%s is not permitted here", n.Callee)}
	}

	args, errs := r.resolveArgs(ctx, n.Args)
	if len(errs) > 0 {
		return nil, errs
	}

	if len(args) == 0 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "%s requires at least one argument", n.Callee)}
	}

	return &IntrinsicCall{Base{Ty: args[0].Type(), Loc: n.Span()}, n.Callee, args}, nil
}

// resolveAggregateDirective handles `aggregate(...)`, requesting a sum over
// an index set (e.g. all compartments bound to a connection). Like the flux
// directives, the actual summation is wired up once the index sets are
// known (C6); here we only type-check and carry the request forward.
func (r *Resolver) resolveAggregateDirective(ctx *Context, n *ast.Call) (Expr, []error) {
	args, errs := r.resolveArgs(ctx, n.Args)
	if len(errs) > 0 {
		return nil, errs
	}

	if len(args) == 0 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "aggregate requires at least one argument")}
	}

	return &IntrinsicCall{Base{Ty: args[0].Type(), Loc: n.Span()}, "aggregate", args}, nil
}

// resolveResultDirective handles `result(...)`, which is only legal inside
// the argument list passed to an externally-linked computation -- it names
// the slot of the foreign call's return tuple a given expression binds to.
func (r *Resolver) resolveResultDirective(ctx *Context, n *ast.Call) (Expr, []error) {
	if !ctx.Perms.AllowResult {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "result() is only permitted inside an external computation")}
	}

	args, errs := r.resolveArgs(ctx, n.Args)
	if len(errs) > 0 {
		return nil, errs
	}

	ty := Dimensionless(Real)
	if len(args) > 0 {
		ty = args[0].Type()
	}

	return &IntrinsicCall{Base{Ty: ty, Loc: n.Span()}, "result", args}, nil
}

// resolveConcDirective handles `conc(x)`, deriving a concentration from a
// dissolved-flux/amount state variable. The exact per-volume unit is only
// known once the composer has paired the dissolved quantity with its
// carrier's volume (C4), so the typed node here carries the amount's own
// unit as a placeholder refined downstream.
func (r *Resolver) resolveConcDirective(ctx *Context, n *ast.Call) (Expr, []error) {
	args, errs := r.resolveArgs(ctx, n.Args)
	if len(errs) > 0 {
		return nil, errs
	}

	if len(args) != 1 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "conc() takes exactly one argument")}
	}

	return &IntrinsicCall{Base{Ty: Type{Scalar: Real, Unit: args[0].Type().Unit}, Loc: n.Span()}, "conc", args}, nil
}

// resolveTupleDirective handles the call-position spelling `tuple(...)`,
// equivalent to the `(a, b, c)` literal form.
func (r *Resolver) resolveTupleDirective(ctx *Context, n *ast.Call) (Expr, []error) {
	args, errs := r.resolveArgs(ctx, n.Args)
	if len(errs) > 0 {
		return nil, errs
	}

	types := make([]Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}

	return &Tuple{Base{Ty: Type{Tuple: types}, Loc: n.Span()}, args}, nil
}

// resolveIsAtDirective handles `is_at(connection, position)`, evaluating to
// true when the current index equals the named restriction.
func (r *Resolver) resolveIsAtDirective(ctx *Context, n *ast.Call) (Expr, []error) {
	if len(n.Args) != 2 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "is_at expects a connection and a position")}
	}

	connIdent, ok := n.Args[0].(*ast.Identifier)
	if !ok || len(connIdent.Path) == 0 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "is_at's first argument must be a connection")}
	}

	kind, connID, _, ok := r.Env.Lookup(ctx.Scope, ctx.InLocation, connIdent.Path[0].Name)
	if !ok || kind != SymConnection {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "unresolved connection %q", connIdent.Path[0].Name)}
	}

	posIdent, ok := n.Args[1].(*ast.Identifier)
	if !ok || len(posIdent.Path) == 0 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "is_at's second argument must be a position keyword")}
	}

	var rk loc.RestrictionKind

	switch posIdent.Path[0].Name {
	case "top":
		rk = loc.RestrictionTop
	case "bottom":
		rk = loc.RestrictionBottom
	case "above":
		rk = loc.RestrictionAbove
	case "below":
		rk = loc.RestrictionBelow
	default:
		rk = loc.RestrictionSpecific
	}

	return &IsAt{Base{Ty: Dimensionless(Bool), Loc: n.Span()}, loc.Restriction{Connection: connID, Kind: rk}}, nil
}

// resolveExternalDirective handles `external(name, arg, ...)`, the source
// syntax for an external_computation variable's body (spec.md §9's merged
// special_computation/external_computation kind): the first argument is a
// bare token naming the host-registered evaluator, not a resolvable
// identifier, and the rest are ordinary expressions evaluated each step and
// passed as arguments to model.Store.ExternalCompute.
func (r *Resolver) resolveExternalDirective(ctx *Context, n *ast.Call) (Expr, []error) {
	if len(n.Args) == 0 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "external() requires a name followed by zero or more arguments")}
	}

	nameIdent, ok := n.Args[0].(*ast.Identifier)
	if !ok || len(nameIdent.Path) != 1 {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "external()'s first argument must be a bare external function name")}
	}

	args, errs := r.resolveArgs(ctx, n.Args[1:])
	if len(errs) > 0 {
		return nil, errs
	}

	ty := Dimensionless(Real)
	if ctx.ExpectedUnit != nil {
		ty = Type{Scalar: Real, Unit: *ctx.ExpectedUnit}
	}

	return &ExternalComputation{Base{Ty: ty, Loc: n.Span()}, nameIdent.Path[0].Name, args}, nil
}

// resolveIntrinsicCall type-checks and resolves one of the compiler's
// built-in math functions.
func (r *Resolver) resolveIntrinsicCall(ctx *Context, n *ast.Call) (Expr, []error) {
	if err := CheckArity(n.Callee, len(n.Args)); err != nil {
		return nil, []error{diag.At(diag.Parsing, nil, n.Span(), "%v", err)}
	}

	args, errs := r.resolveArgs(ctx, n.Args)
	if len(errs) > 0 {
		return nil, errs
	}

	switch n.Callee {
	case "min", "max":
		if !units.MatchExact(args[0].Type().Unit, args[1].Type().Unit) {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%s requires operands to share a unit", n.Callee)}
		}

		scalar := Dominant(args[0].Type().Scalar, args[1].Type().Scalar)

		return &IntrinsicCall{Base{Ty: Type{Scalar: scalar, Unit: args[0].Type().Unit}, Loc: n.Span()}, n.Callee, args}, nil
	case "abs":
		return &IntrinsicCall{Base{Ty: args[0].Type(), Loc: n.Span()}, n.Callee, args}, nil
	case "sqrt":
		u, err := units.Power(args[0].Type().Unit, big.NewRat(1, 2))
		if err != nil {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%v", err)}
		}

		return &IntrinsicCall{Base{Ty: Type{Scalar: Real, Unit: u}, Loc: n.Span()}, n.Callee, args}, nil
	case "exp", "ln", "sin", "cos":
		if !args[0].Type().Unit.IsDimensionless() {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%s requires a dimensionless argument", n.Callee)}
		}

		return &IntrinsicCall{Base{Ty: Dimensionless(Real), Loc: n.Span()}, n.Callee, args}, nil
	case "floor", "ceil":
		return &IntrinsicCall{Base{Ty: Type{Scalar: Int, Unit: args[0].Type().Unit}, Loc: n.Span()}, n.Callee, args}, nil
	default:
		return nil, []error{diag.At(diag.Internal, nil, n.Span(), "unhandled intrinsic %q", n.Callee)}
	}
}

// resolveLinkedCall type-checks a call to a host-linked (foreign) function;
// the typed tree keeps only its name since the implementation lives outside
// the compiler (spec.md §6).
func (r *Resolver) resolveLinkedCall(ctx *Context, n *ast.Call, fn *FunctionBinding) (Expr, []error) {
	if len(n.Args) != len(fn.Params) {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%s expects %d arguments, got %d", fn.Name, len(fn.Params), len(n.Args))}
	}

	args := make([]Expr, len(n.Args))

	for i, a := range n.Args {
		e, errs := r.Resolve(ctx, a)
		if len(errs) > 0 {
			return nil, errs
		}

		if !e.Type().SubtypeOf(fn.Params[i]) {
			return nil, []error{diag.At(diag.ModelBuilding, nil, a.Span(), "argument %d to %s has the wrong type", i+1, fn.Name)}
		}

		args[i] = e
	}

	return &LinkedCall{Base{Ty: fn.Ret, Loc: n.Span()}, fn.Name, args}, nil
}

// resolveInlinedCall resolves a declared in-language function's body once
// per concrete argument-type vector (memoized in r.Inline), then splices a
// fresh parameter-binding prologue in front of the cached body for this call
// site. Recursive functions are rejected via the cache's Enter/Leave guard.
func (r *Resolver) resolveInlinedCall(ctx *Context, n *ast.Call, fn *FunctionBinding) (Expr, []error) {
	if len(n.Args) != len(fn.Params) {
		return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%s expects %d arguments, got %d", fn.Name, len(fn.Params), len(n.Args))}
	}

	args := make([]Expr, len(n.Args))
	argTypes := make([]Type, len(n.Args))

	for i, a := range n.Args {
		e, errs := r.Resolve(ctx, a)
		if len(errs) > 0 {
			return nil, errs
		}

		if !e.Type().SubtypeOf(fn.Params[i]) {
			return nil, []error{diag.At(diag.ModelBuilding, nil, a.Span(), "argument %d to %s has the wrong type", i+1, fn.Name)}
		}

		args[i], argTypes[i] = e, e.Type()
	}

	body, ok := r.Inline.Get(fn, argTypes)
	if !ok {
		if err := r.Inline.Enter(fn.Name); err != nil {
			return nil, []error{diag.At(diag.ModelBuilding, nil, n.Span(), "%v", err)}
		}

		bodyCtx := NewContext(ctx.Scope, ctx.InLocation)
		bodyCtx.Bakeable = ctx.Bakeable

		for i, pname := range fn.ParamNames {
			bodyCtx.DeclareLocal(pname, argTypes[i])
		}

		var errs []error

		body, errs = r.Resolve(bodyCtx, fn.Body)

		r.Inline.Leave(fn.Name)

		if len(errs) > 0 {
			return nil, errs
		}

		r.Inline.Put(fn, argTypes, body)
	}

	// Splice a parameter-binding prologue in front of the cached body. The
	// prologue is built in a context isolated from ctx's own locals so that
	// its indices line up with the ones the cached body was resolved
	// against (which also started from an empty local stack).
	wrapCtx := NewContext(ctx.Scope, ctx.InLocation)
	wrapCtx.Bakeable = ctx.Bakeable

	stmts := make([]Expr, 0, len(fn.ParamNames)+1)

	for i, pname := range fn.ParamNames {
		idx, _ := wrapCtx.DeclareLocal(pname, argTypes[i])
		stmts = append(stmts, &LocalDecl{Base{Ty: argTypes[i], Loc: n.Span()}, pname, idx, args[i]})
	}

	stmts = append(stmts, body)

	return &Block{Base{Ty: body.Type(), Loc: n.Span()}, stmts}, nil
}

// UnitExprToDeclared exposes the bracketed-unit-syntax lowering rule used
// internally by Convert resolution, so other packages (compose) can turn a
// declaration's unit annotation into a standard form without duplicating the
// SI-prefix/symbol tables.
func UnitExprToDeclared(u *ast.UnitExpr) (units.Declared, error) {
	return unitExprToDeclared(u)
}

func unitExprToDeclared(u *ast.UnitExpr) (units.Declared, error) {
	if u == nil {
		return units.NewDeclared(), nil
	}

	var parts []units.Part

	for _, p := range u.Parts {
		atom, mag, err := resolveUnitSymbol(p.Prefix, p.Symbol)
		if err != nil {
			return units.Declared{}, err
		}

		den := p.Den
		if den == 0 {
			den = 1
		}

		parts = append(parts, units.Part{
			Magnitude: mag,
			Power:     big.NewRat(int64(p.Num), int64(den)),
			Atom:      atom,
		})
	}

	return units.NewDeclared(parts...), nil
}

func resolveUnitSymbol(prefix, symbol string) (units.Atom, int, error) {
	mag, ok := siPrefixes[prefix]
	if prefix != "" && !ok {
		return 0, 0, fmt.Errorf("unrecognized SI prefix %q", prefix)
	}

	atom, ok := unitSymbols[symbol]
	if !ok {
		return 0, 0, fmt.Errorf("unrecognized unit symbol %q", symbol)
	}

	return atom, mag, nil
}

var siPrefixes = map[string]int{
	"Y": 24, "Z": 21, "E": 18, "P": 15, "T": 12, "G": 9, "M": 6, "k": 3,
	"h": 2, "da": 1, "": 0, "d": -1, "c": -2, "m": -3, "u": -6, "n": -9,
	"p": -12, "f": -15, "a": -18, "z": -21, "y": -24,
}

var unitSymbols = map[string]units.Atom{
	"m": units.AtomM, "s": units.AtomS, "g": units.AtomG, "mol": units.AtomMol,
	"degC": units.AtomDegC, "deg": units.AtomDeg, "month": units.AtomMonth,
	"year": units.AtomYear, "K": units.AtomK, "A": units.AtomA, "eq": units.AtomEq,
	"N": units.AtomNewton, "J": units.AtomJoule, "W": units.AtomWatt,
	"l": units.AtomLiter, "ha": units.AtomHectare, "Pa": units.AtomPascal,
	"bar": units.AtomBar, "V": units.AtomVolt, "ohm": units.AtomOhm,
	"%": units.AtomPercent, "ton": units.AtomTon, "min": units.AtomMinute,
	"hr": units.AtomHour, "day": units.AtomDay, "week": units.AtomWeek,
}
