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

// Package fr adapts the teacher's field-element numeric runtime value
// (field/bls12-377/element.go) into a fixed-point scalar usable for
// simulation arithmetic: model.Store uses Value exactly the way the
// teacher's trace.ArrayColumn uses fr.Element, and units.Magnitude keeps its
// own math/big.Rat representation for exact constant folding (teacher's
// pkg/util/field/internal/generator mixes big.Int/big.Rat the same way).
package fr

import (
	"math"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// scale is the fixed-point denominator Value uses to embed an IEEE-754
// float64 into the bls12-377 scalar field: nine decimal digits of fractional
// precision, which comfortably covers the dynamic range a discrete-time
// ODE simulation's state variables need while keeping every arithmetic op a
// single field multiply/add rather than a rational reduction.
const scale = 1_000_000_000

var halfModulus *big.Int

func init() {
	halfModulus = new(big.Int).Rsh(fr.Modulus(), 1)
}

// Value is a simulation-time scalar represented as a field element, the way
// the teacher represents every trace cell as an fr.Element rather than a
// native Go numeric type (pkg/schema/builder.go, field/bls12-377/element.go).
// A negative float is encoded as the field's additive inverse of its scaled
// magnitude and decoded back by comparing against the field's half-modulus,
// mirroring the signed/field-element convention the teacher's test-vector
// generator relies on for wraparound arithmetic (cmd/testgen/main.go).
type Value struct {
	elem fr.Element
}

// FromFloat encodes f as a fixed-point field element.
func FromFloat(f float64) Value {
	if math.IsNaN(f) {
		return Value{} // zero sentinel; callers track NaN separately
	}

	neg := f < 0
	if neg {
		f = -f
	}

	scaled := new(big.Int).SetInt64(int64(math.Round(f * scale)))

	var e fr.Element
	e.SetBigInt(scaled)

	if neg {
		e.Neg(&e)
	}

	return Value{elem: e}
}

// ToFloat decodes v back to a float64.
func (v Value) ToFloat() float64 {
	var bi big.Int

	v.elem.BigInt(&bi)

	neg := bi.Cmp(halfModulus) > 0
	if neg {
		bi.Sub(fr.Modulus(), &bi)
	}

	f := new(big.Float).SetInt(&bi)
	f.Quo(f, big.NewFloat(scale))

	out, _ := f.Float64()

	if neg {
		return -out
	}

	return out
}

// FromElement wraps a raw field element as a Value, for callers (e.g.
// ode.Integrator implementations) that exchange state as []fr.Element per
// spec.md §6's external-collaborator signature.
func FromElement(e fr.Element) Value {
	return Value{elem: e}
}

// ToElement unwraps v back to the raw field element it encodes.
func (v Value) ToElement() fr.Element {
	return v.elem
}

// Add returns v + o.
func (v Value) Add(o Value) Value {
	var r fr.Element
	r.Add(&v.elem, &o.elem)

	return Value{elem: r}
}

// Sub returns v - o.
func (v Value) Sub(o Value) Value {
	var r fr.Element
	r.Sub(&v.elem, &o.elem)

	return Value{elem: r}
}

// MulScalar returns v * s, where s is an ordinary float64 (e.g. a solver
// step size or a scalar gain), re-encoding the float product rather than
// performing a field multiply, since s is not itself fixed-point scaled.
func (v Value) MulScalar(s float64) Value {
	return FromFloat(v.ToFloat() * s)
}

// IsZero reports whether v encodes exactly 0.
func (v Value) IsZero() bool {
	return v.elem.IsZero()
}

// String renders v's decoded float value.
func (v Value) String() string {
	return big.NewFloat(v.ToFloat()).Text('g', -1)
}
