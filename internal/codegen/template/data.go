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

// Package template holds the data driving the generated loop-body label
// table (loopbody_gen.go) and the bavard-based generator that produces it
// (./gen), mirroring the teacher's field/internal/generator split: the data
// the generator consumes lives next to its output, not inside the generator
// binary itself, so the generator stays a thin bavard.Generate call.
package template

// KindSpec names one instr.Kind value and the human-readable phrase the
// JIT-boundary loop-body dump (codegen.DumpSource) prints for it.
type KindSpec struct {
	Name  string
	Label string
}

// Kinds enumerates every instr.Kind in declaration order. Keep in sync with
// instr.Kind; go:generate (see ./gen) regenerates loopbody_gen.go from this
// list.
var Kinds = []KindSpec{
	{Name: "compute_state_var", Label: "compute and store"},
	{Name: "clear_state_var", Label: "clear to NaN before accumulation"},
	{Name: "subtract_discrete_flux_from_source", Label: "subtract discrete flux from source"},
	{Name: "add_discrete_flux_to_target", Label: "add discrete flux to target"},
	{Name: "add_to_aggregate", Label: "accumulate into aggregate"},
	{Name: "add_to_connection_aggregate", Label: "accumulate into connection aggregate"},
	{Name: "external_computation", Label: "dispatch to external computation"},
}
