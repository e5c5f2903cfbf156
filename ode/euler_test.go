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
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"

	simcfr "github.com/mobius-lang/simc/internal/fr"
)

// TestEulerStepConstantDerivative checks x += h*dx for a constant-rate
// derivative, the simplest case of the original solver's inner update.
func TestEulerStepConstantDerivative(t *testing.T) {
	state := []fr.Element{simcfr.FromFloat(1.0).ToElement()}

	deriv := func(x []fr.Element) []fr.Element {
		return []fr.Element{simcfr.FromFloat(2.0).ToElement()}
	}

	Euler{}.Step(state, deriv, 0.5)

	got := simcfr.FromElement(state[0]).ToFloat()
	if got != 2.0 {
		t.Fatalf("expected 1.0 + 0.5*2.0 = 2.0, got %v", got)
	}
}

// TestEulerStepAccumulatesAcrossSubSteps mirrors euler_solver's outer loop:
// repeated sub-steps over [0,1] with a fixed h should land at x0 + dx (rate
// constant across the whole interval).
func TestEulerStepAccumulatesAcrossSubSteps(t *testing.T) {
	state := []fr.Element{simcfr.FromFloat(0.0).ToElement()}

	rate := 4.0

	deriv := func(x []fr.Element) []fr.Element {
		return []fr.Element{simcfr.FromFloat(rate).ToElement()}
	}

	h := 0.25
	for t := 0.0; t < 1.0; t += h {
		Euler{}.Step(state, deriv, h)
	}

	got := simcfr.FromElement(state[0]).ToFloat()
	if got != rate {
		t.Fatalf("expected to accumulate to %v over the unit interval, got %v", rate, got)
	}
}
