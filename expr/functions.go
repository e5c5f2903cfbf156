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

	"github.com/mobius-lang/simc/ast"
)

// FunctionBinding represents something that can be called: an intrinsic
// (compiles to a direct op), a linked (host) function (carries only its
// name), or a declared in-language function (inlined at every call site).
type FunctionBinding struct {
	Name       string
	Intrinsic  bool
	Linked     bool
	Pure       bool
	Params     []Type
	Ret        Type
	// Body is only set for declared (in-language) functions.
	Body ast.Node
	// ParamNames names the declared function's parameters, 1-1 with Params.
	ParamNames []string
}

// inlineCacheKey identifies one (function, concrete-argument-type-vector)
// instantiation.
type inlineCacheKey struct {
	name string
	sig  string
}

func signatureOf(args []Type) string {
	s := ""
	for _, a := range args {
		s += a.Scalar.String() + "|"
	}

	return s
}

// InlineCache memoizes resolved function bodies per (function,
// argument-type-vector), avoiding quadratic code growth when the same
// function is called many times with the same argument types (spec.md §9
// Design Note "Function inlining").
type InlineCache struct {
	entries     map[inlineCacheKey]Expr
	inProgress  map[string]bool // recursion guard, keyed by function name
}

// NewInlineCache constructs an empty cache.
func NewInlineCache() *InlineCache {
	return &InlineCache{
		entries:    make(map[inlineCacheKey]Expr),
		inProgress: make(map[string]bool),
	}
}

// Get returns a previously resolved inlining, if one exists for this exact
// (function, argument types) pair.
func (c *InlineCache) Get(fn *FunctionBinding, args []Type) (Expr, bool) {
	key := inlineCacheKey{fn.Name, signatureOf(args)}
	e, ok := c.entries[key]

	return e, ok
}

// Put memoizes a freshly resolved inlining.
func (c *InlineCache) Put(fn *FunctionBinding, args []Type, body Expr) {
	key := inlineCacheKey{fn.Name, signatureOf(args)}
	c.entries[key] = body
}

// Enter marks a function as currently being inlined, returning an error if
// it is already on the call stack (a recursive user function, which is
// rejected per the Non-goals in spec.md §1: "arbitrary recursion ... [is]
// not supported").
func (c *InlineCache) Enter(name string) error {
	if c.inProgress[name] {
		return fmt.Errorf("recursive function %q is not supported", name)
	}

	c.inProgress[name] = true

	return nil
}

// Leave pops a function off the in-progress recursion guard.
func (c *InlineCache) Leave(name string) {
	delete(c.inProgress, name)
}

// intrinsicArity records the accepted argument count for each intrinsic,
// matching the expression dialect's operator/function set (spec.md §6).
var intrinsicArity = map[string][2]int{
	"min": {2, 2}, "max": {2, 2}, "abs": {1, 1}, "sqrt": {1, 1},
	"exp": {1, 1}, "ln": {1, 1}, "floor": {1, 1}, "ceil": {1, 1},
	"sin": {1, 1}, "cos": {1, 1},
}

// IsIntrinsic reports whether name names a compiler intrinsic rather than a
// user/linked function.
func IsIntrinsic(name string) bool {
	_, ok := intrinsicArity[name]
	return ok
}

// CheckArity validates the number of arguments passed to an intrinsic.
func CheckArity(name string, n int) error {
	bounds, ok := intrinsicArity[name]
	if !ok {
		return fmt.Errorf("unknown intrinsic %q", name)
	}

	if n < bounds[0] || n > bounds[1] {
		return fmt.Errorf("intrinsic %q expects %d-%d arguments, got %d", name, bounds[0], bounds[1], n)
	}

	return nil
}

// directiveNames is the set of reserved call-position directives, which
// Resolve dispatches to a dedicated rule rather than ordinary function
// lookup.
var directiveNames = map[string]bool{
	"last": true, "in_flux": true, "out_flux": true, "aggregate": true,
	"result": true, "conc": true, "tuple": true,
}

// IsDirective reports whether name is a reserved directive.
func IsDirective(name string) bool {
	return directiveNames[name]
}
