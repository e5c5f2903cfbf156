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

// Package ode declares the external-collaborator boundary spec.md §1 places
// out of scope: an ODE integration kernel that advances a dissolved
// quantity's state vector between the discrete steps model.Runtime computes
// (C1-C8 themselves only ever evaluate one instant at a time). A concrete
// Euler integrator is included, grounded on the original implementation's
// euler_solver (src/ode_solvers.cpp), since the interface alone would leave
// a solver() block with nothing to actually run.
package ode

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// Integrator advances a state vector forward by one sub-step of size h
// (fraction of the enclosing solver's declared step), given deriv, which
// evaluates the system's rate of change at a candidate state. Integrator
// implementations mutate state in place, matching the original solver's
// in-place x0 update.
type Integrator interface {
	Step(state []fr.Element, deriv func([]fr.Element) []fr.Element, h float64)
}

// Solver configures which Integrator and step size drive one compose.Model
// solver binding's continuous integration: FunctionID names the
// registry.ID-keyed dissolved variable set this solver owns (compose.Model's
// SolverBinding.ID), StepSeconds is the nominal sub-step size, and
// Integrator performs the actual numeric advance.
type Solver struct {
	FunctionID  string
	StepSeconds float64
	Integrator  Integrator
}
