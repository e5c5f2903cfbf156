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

// Package ast describes the shape of the abstract declaration and
// expression tree produced by the (out-of-scope) lexer/parser, and the
// Loader interface used to resolve included library/model files. Nothing in
// this package performs lexing or parsing -- spec.md §1 places that with an
// external collaborator; this package only fixes the signatures the core
// pipeline consumes, per §6.
package ast

import "github.com/mobius-lang/simc/source"

// NodeKind tags every abstract expression node kind named by the expression
// dialect in spec.md §6.
type NodeKind uint8

const (
	NodeLiteral NodeKind = iota
	NodeIdentifier
	NodeCall
	NodeUnary
	NodeBinary
	NodeBlock
	NodeIfChain
	NodeLocalDecl
	NodeReassign
	NodeConvert
	NodeIterateTag
	NodeIterateRef
	NodeTuple
	NodeUnpack
)

// Node is a single node of the untyped, abstract expression tree exactly as
// the parser produced it. Expr.Resolve walks this tree and lowers it.
type Node interface {
	Kind() NodeKind
	Span() source.Span
}

// Base carries the fields common to every node kind.
type Base struct {
	Span_ source.Span
}

// Span implements Node.
func (b Base) Span() source.Span { return b.Span_ }

// LiteralKind distinguishes the handful of literal shapes the dialect
// supports.
type LiteralKind uint8

const (
	LitInt LiteralKind = iota
	LitReal
	LitBool
	LitDatetime
	LitString
)

// Literal is a numeric, boolean, datetime or string literal.
type Literal struct {
	Base
	LitKind LiteralKind
	Int     int64
	Real    float64
	Bool    bool
	Text    string
}

func (l *Literal) Kind() NodeKind { return NodeLiteral }

// PathSegment is one element of a dotted identifier chain, with an optional
// bracketed restriction suffix `[connection, kind]`.
type PathSegment struct {
	Name             string
	RestrictionConn  string
	RestrictionKind  string
}

// Identifier is a (possibly relative) dotted identifier chain, such as
// `a.x` or `conc(a.salt)`-style bare references.
type Identifier struct {
	Base
	Path []PathSegment
}

func (i *Identifier) Kind() NodeKind { return NodeIdentifier }

// Call is a function call; Callee is either a reserved directive name
// (`last`, `in_flux`, `out_flux`, `aggregate`, `result`, `conc`, `tuple`) or
// a user/intrinsic function name.
type Call struct {
	Base
	Callee string
	Args   []Node
}

func (c *Call) Kind() NodeKind { return NodeCall }

// UnaryOp is one of the unary operators `- !`.
type UnaryOp struct {
	Base
	Op      string
	Operand Node
}

func (u *UnaryOp) Kind() NodeKind { return NodeUnary }

// BinaryOp is one of `| & < > <= >= = != + - * / % ^ //`.
type BinaryOp struct {
	Base
	Op    string
	Left  Node
	Right Node
}

func (b *BinaryOp) Kind() NodeKind { return NodeBinary }

// Block groups a sequence of statements; its value is the value of the last
// child.
type Block struct {
	Base
	Statements []Node
}

func (b *Block) Kind() NodeKind { return NodeBlock }

// IfBranch is one `value if condition` arm of an if-chain.
type IfBranch struct {
	Condition Node // nil for the final "otherwise" branch
	Value     Node
}

// IfChain is the `a if c, b if c2, ... otherwise` conditional expression.
type IfChain struct {
	Base
	Branches []IfBranch
}

func (i *IfChain) Kind() NodeKind { return NodeIfChain }

// LocalDecl introduces a new local binding: `name := expr`.
type LocalDecl struct {
	Base
	Name  string
	Value Node
}

func (l *LocalDecl) Kind() NodeKind { return NodeLocalDecl }

// Reassign rebinds an existing local: `name <- expr`.
type Reassign struct {
	Base
	Name  string
	Value Node
}

func (r *Reassign) Kind() NodeKind { return NodeReassign }

// ConvertMode distinguishes the four unit-conversion arrow forms.
type ConvertMode uint8

const (
	// ConvertChecked requires a compile-time conversion factor (`=>`).
	ConvertChecked ConvertMode = iota
	// ConvertCheckedAdditive allows an additive (°C/K) conversion (`==>`).
	ConvertCheckedAdditive
	// ConvertForce bypasses the unit check entirely (`->>`).
	ConvertForce
	// ConvertAuto uses the expression's expected unit from context (`-->>`).
	ConvertAuto
)

// Convert is a unit-conversion expression `x => [u]` (and its ==>/->>/-->>
// variants).
type Convert struct {
	Base
	Mode     ConvertMode
	Operand  Node
	TargetUnit *UnitExpr // nil when Mode == ConvertAuto
}

func (c *Convert) Kind() NodeKind { return NodeConvert }

// UnitExpr is the bracketed unit syntax `[k g, m -3]`.
type UnitExpr struct {
	Parts []UnitPartExpr
}

// UnitPartExpr is one comma-separated part of a bracketed unit: an optional
// SI prefix, a compound-unit symbol, and an optional (possibly rational)
// exponent.
type UnitPartExpr struct {
	Prefix   string
	Symbol   string
	Num      int
	Den      int // 1 unless a rational exponent `m -3/2` was written
}

// IterateTag labels a block with a fresh scope id that an IterateRef inside
// it can refer back to.
type IterateTag struct {
	Base
	Label string
	Body  Node
}

func (t *IterateTag) Kind() NodeKind { return NodeIterateTag }

// IterateRef references an enclosing IterateTag's label.
type IterateRef struct {
	Base
	Label string
}

func (r *IterateRef) Kind() NodeKind { return NodeIterateRef }

// Tuple is a fixed-arity aggregate of values.
type Tuple struct {
	Base
	Elements []Node
}

func (t *Tuple) Kind() NodeKind { return NodeTuple }

// Unpack destructures a tuple-valued expression into n local bindings.
type Unpack struct {
	Base
	Names []string
	Value Node
}

func (u *Unpack) Kind() NodeKind { return NodeUnpack }

// Tree is the root of one parsed source file's declarations, as produced by
// the external parser. Declaration contents are left as opaque Nodes; only
// the pipeline components that need to interpret a particular declaration
// kind (compose, instr) know its shape.
type Tree struct {
	File         *source.File
	Declarations []Node
}

// Loader resolves an include/import path to normalized path + contents. The
// host supplies an implementation rooted at its standard-library path; this
// interface is the only contract the core pipeline has with file I/O.
type Loader interface {
	Load(path string, basePath string, from source.Span) (normalizedPath string, contents []byte, err error)
}
