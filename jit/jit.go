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

// Package jit declares the external-collaborator boundary spec.md §1 places
// out of scope: a native-code emitter that compiles a codegen.Program into
// something faster than the tree-walking interpreter codegen.Walker already
// runs. Interface only, matching spec.md §6's "jit.Emitter -- consumes
// codegen.Program and produces an opaque handle; out of scope, interface
// only".
package jit

import "github.com/mobius-lang/simc/codegen"

// Handle is an opaque, emitter-defined result of compiling a Program (e.g. a
// loaded shared object, a compiled closure, a GPU kernel reference).
type Handle any

// Emitter compiles a scheduled program into a Handle the host can invoke
// directly, bypassing the portable but slower codegen.Walker.
type Emitter interface {
	Emit(p codegen.Program) (Handle, error)
}
