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

package ode

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"

	simcfr "github.com/mobius-lang/simc/internal/fr"
)

// Euler is the forward-Euler integrator: one call to deriv at the current
// state, then x[i] += h*deriv(x)[i] for every component. Grounded on the
// original implementation's euler_solver (src/ode_solvers.cpp), whose inner
// loop is exactly this update applied once per sub-step.
type Euler struct{}

// Step advances state in place by one sub-step of size h.
func (Euler) Step(state []fr.Element, deriv func([]fr.Element) []fr.Element, h float64) {
	rates := deriv(state)

	for i := range state {
		x := simcfr.FromElement(state[i])
		dx := simcfr.FromElement(rates[i])
		state[i] = simcfr.FromFloat(x.ToFloat() + h*dx.ToFloat()).ToElement()
	}
}
