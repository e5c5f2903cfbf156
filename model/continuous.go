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

package model

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"

	"github.com/mobius-lang/simc/compose"
	simcfr "github.com/mobius-lang/simc/internal/fr"
	"github.com/mobius-lang/simc/ode"
)

// IntegrateSolver sub-steps every dissolved_flux/dissolved_conc variable
// bound to sb (compose.Model.SolverFor's result for sb's scope) forward by
// one of its declared step intervals, using integrator to advance the state
// vector between calls to the variables' own resolved code bodies as the
// derivative function. This bridges C6's solver-label propagation
// (depsolve) to the out-of-scope ode.Integrator boundary spec.md §6 names:
// the discrete instruction schedule (Runtime.Instrs/Schedule) still owns
// every other kind of variable, but a dissolved quantity's own code body is
// read as a rate of change here rather than an absolute value.
func (rt *Runtime) IntegrateSolver(sb compose.SolverBinding, integrator ode.Integrator) error {
	if !sb.HasStep {
		return fmt.Errorf("model: solver %d has no declared step size", sb.ID)
	}

	var members []*compose.Variable

	for _, v := range rt.Model.Variables {
		if v.Kind != compose.DissolvedFlux && v.Kind != compose.DissolvedConc {
			continue
		}

		if bound, ok := rt.Model.SolverFor(v.Location); ok && bound.ID == sb.ID {
			members = append(members, v)
		}
	}

	if len(members) == 0 {
		return nil
	}

	state := make([]fr.Element, len(members))
	for i, v := range members {
		state[i] = simcfr.FromFloat(rt.Store.Get(v.ID)).ToElement()
	}

	// deriv reads each member's rate from the Store rather than the candidate
	// state Euler passes in: correct for a single-call integrator like Euler,
	// but would need to write candidate values back into the Store first to
	// support a multi-call integrator (e.g. RK4).
	deriv := func(_ []fr.Element) []fr.Element {
		rates := make([]fr.Element, len(members))

		for i, v := range members {
			rate, err := rt.Walker.Eval(v.Code)
			if err != nil {
				rate = 0
			}

			rates[i] = simcfr.FromFloat(rate).ToElement()
		}

		return rates
	}

	integrator.Step(state, deriv, sb.StepSeconds)

	for i, v := range members {
		rt.Store.Set(v.ID, simcfr.FromElement(state[i]).ToFloat())
	}

	return nil
}
