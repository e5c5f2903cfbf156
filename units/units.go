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

// Package units implements the unit algebra (C1): canonicalizing declared
// units to a standard form, deciding convertibility, and computing
// conversion factors between units of a model.
package units

import (
	"fmt"
	"math/big"
)

// Base identifies one of the eleven base units standard form is expressed
// over.
type Base uint8

// The eleven base units, in the fixed order the standard-form power vector
// is indexed by.
const (
	M Base = iota
	S
	G
	Mol
	DegC
	Deg
	Month
	Year
	K
	A
	Eq
	numBase
)

var baseNames = [numBase]string{"m", "s", "g", "mol", "degC", "deg", "month", "year", "K", "A", "eq"}

// String returns the conventional symbol for a base unit.
func (b Base) String() string {
	if int(b) < len(baseNames) {
		return baseNames[b]
	}

	return "?"
}

// Atom identifies a unit symbol that is not itself a base unit combination
// known at parse time -- either a base unit directly, or a compound unit
// whose expansion into base units is performed during standardization.
type Atom uint8

// The recognized compound-unit atoms. Base units double as atoms for
// convenience (their ordinal matches their Base).
const (
	AtomM Atom = iota
	AtomS
	AtomG
	AtomMol
	AtomDegC
	AtomDeg
	AtomMonth
	AtomYear
	AtomK
	AtomA
	AtomEq
	AtomNewton
	AtomJoule
	AtomWatt
	AtomLiter
	AtomHectare
	AtomPascal
	AtomBar
	AtomVolt
	AtomOhm
	AtomPercent
	AtomTon
	AtomMinute
	AtomHour
	AtomDay
	AtomWeek
)

// Part is one component of a declared unit: a magnitude (power-of-ten SI
// prefix), a rational power, and an atom.
type Part struct {
	Magnitude int
	Power     *big.Rat
	Atom      Atom
}

// Declared is a unit exactly as the user wrote it: an ordered list of parts
// plus a rational multiplier, preserving the textual structure so that
// pretty-printing can round-trip (spec.md §8 round-trip law).
type Declared struct {
	Multiplier *big.Rat
	Parts      []Part
}

// NewDeclared constructs a declared unit with multiplier 1 and the given
// parts. A nil/empty parts list is the legal dimensionless unit "[]".
func NewDeclared(parts ...Part) Declared {
	return Declared{Multiplier: big.NewRat(1, 1), Parts: parts}
}

// Standard is the canonical comparison key for a unit: an integer-power
// vector over the eleven base units, plus a rational multiplier and a
// rational magnitude-of-ten. This mirrors the original's
// `multiplier * 10^magnitude * base0^power0 * base1^power1 * ...`
// representation exactly.
type Standard struct {
	Multiplier *big.Rat
	Magnitude  *big.Rat
	Powers     [numBase]*big.Rat
}

// identityStandard returns a fresh dimensionless standard form (multiplier 1,
// magnitude 0, all powers 0).
func identityStandard() Standard {
	var s Standard

	s.Multiplier = big.NewRat(1, 1)
	s.Magnitude = big.NewRat(0, 1)

	for i := range s.Powers {
		s.Powers[i] = big.NewRat(0, 1)
	}

	return s
}

// compoundExpansion describes how a compound-unit atom not itself a base unit
// expands into base-unit powers plus an additional magnitude contribution,
// both scaled by the part's declared power. Grounded exactly on
// Unit_Data::set_standard_form in the original implementation.
type compoundExpansion struct {
	bases     map[Base]int64 // power contributed per unit of the part's power
	magnitude int64          // magnitude-of-ten contributed per unit of the part's power
}

var compoundTable = map[Atom]compoundExpansion{
	AtomNewton:  {map[Base]int64{G: 1, S: -2, M: 1}, 3},
	AtomJoule:   {map[Base]int64{G: 1, M: 2, S: -2}, 3},
	AtomWatt:    {map[Base]int64{G: 1, M: 2, S: -3}, 3},
	AtomLiter:   {map[Base]int64{M: 3}, -3},
	AtomHectare: {map[Base]int64{M: 2}, 4},
	AtomPascal:  {map[Base]int64{G: 1, M: -1, S: -2}, 3},
	AtomBar:     {map[Base]int64{G: 1, M: -1, S: -2}, 8},
	AtomVolt:    {map[Base]int64{G: 1, M: 2, S: -3, A: -1}, 3},
	AtomOhm:     {map[Base]int64{G: 1, M: 2, S: -3, A: -2}, 3},
	AtomPercent: {map[Base]int64{}, -2},
	AtomTon:     {map[Base]int64{G: 1}, 6},
}

// timeUnitMultiplier gives the exact integer multiplier and magnitude
// contribution of the non-SI time atoms, so that conversions between e.g.
// days and seconds remain exact rather than approximate.
type timeUnit struct {
	multiplier int64 // per unit of declared power's numerator (power must be integer)
	magnitude  int64
}

var timeUnitTable = map[Atom]timeUnit{
	AtomMinute: {6, 1},
	AtomHour:   {36, 2},
	AtomDay:    {864, 2},
	AtomWeek:   {6048, 2},
}

func baseOf(atom Atom) (Base, bool) {
	if int(atom) < int(numBase) {
		return Base(atom), true
	}

	return 0, false
}

// Standardize converts a declared unit into its canonical standard form.
// Standard-form reduction repeatedly strips factors of ten out of the
// multiplier into the magnitude, so that Match returns exactly 1 when two
// units are textually identical up to part ordering (spec.md §4.1).
func Standardize(d Declared) (Standard, error) {
	result := identityStandard()
	if d.Multiplier != nil {
		result.Multiplier = new(big.Rat).Set(d.Multiplier)
	}

	for _, part := range d.Parts {
		power := part.Power
		if power == nil {
			power = big.NewRat(1, 1)
		}

		if base, ok := baseOf(part.Atom); ok {
			result.Powers[base] = new(big.Rat).Add(result.Powers[base], power)
		} else if exp, ok := compoundTable[part.Atom]; ok {
			for base, coeff := range exp.bases {
				contribution := new(big.Rat).Mul(power, big.NewRat(coeff, 1))
				result.Powers[base] = new(big.Rat).Add(result.Powers[base], contribution)
			}

			magContribution := new(big.Rat).Mul(power, big.NewRat(exp.magnitude, 1))
			result.Magnitude = new(big.Rat).Add(result.Magnitude, magContribution)
		} else if tu, ok := timeUnitTable[part.Atom]; ok {
			if !power.IsInt() {
				return Standard{}, fmt.Errorf("unit standard form: can't handle roots of %s", atomName(part.Atom))
			}

			result.Powers[S] = new(big.Rat).Add(result.Powers[S], power)
			result.Magnitude = new(big.Rat).Add(result.Magnitude, new(big.Rat).Mul(power, big.NewRat(tu.magnitude, 1)))

			n := power.Num().Int64()
			factor := new(big.Int).Exp(big.NewInt(tu.multiplier), big.NewInt(absInt64(n)), nil)
			factorRat := new(big.Rat).SetInt(factor)

			if n < 0 {
				factorRat.Inv(factorRat)
			}

			result.Multiplier = new(big.Rat).Mul(result.Multiplier, factorRat)
		} else {
			return Standard{}, fmt.Errorf("unhandled unit atom %v in standard form", part.Atom)
		}

		magShift := new(big.Rat).Mul(power, big.NewRat(int64(part.Magnitude), 1))
		result.Magnitude = new(big.Rat).Add(result.Magnitude, magShift)
		reduce(&result)
	}

	return result, nil
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}

	return n
}

func atomName(a Atom) string {
	switch a {
	case AtomMinute:
		return "min"
	case AtomHour:
		return "hr"
	case AtomDay:
		return "day"
	case AtomWeek:
		return "week"
	default:
		return fmt.Sprintf("atom(%d)", a)
	}
}

// reduce strips factors of ten out of the multiplier's numerator and
// denominator into the magnitude, so the multiplier contains no factor of 10
// (spec.md §3 invariant, §8 idempotence property).
func reduce(s *Standard) {
	ten := big.NewInt(10)
	zero := big.NewInt(0)
	one := big.NewRat(1, 1)

	for {
		num := s.Multiplier.Num()

		var rem big.Int

		q := new(big.Int)

		q.DivMod(num, ten, &rem)

		if rem.Cmp(zero) != 0 || num.Cmp(zero) == 0 {
			break
		}

		s.Magnitude = new(big.Rat).Add(s.Magnitude, one)
		s.Multiplier = new(big.Rat).SetFrac(q, s.Multiplier.Denom())
	}

	for {
		den := s.Multiplier.Denom()

		var rem big.Int

		q := new(big.Int)
		q.DivMod(den, ten, &rem)

		if rem.Cmp(zero) != 0 {
			break
		}

		s.Magnitude = new(big.Rat).Sub(s.Magnitude, one)
		s.Multiplier = new(big.Rat).SetFrac(s.Multiplier.Num(), q)
	}
}

// String renders s's base-unit powers for diagnostics and host-facing entity
// metadata (e.g. model.API.Entity), e.g. "m s-2" for acceleration, "1" for
// dimensionless.
func (s Standard) String() string {
	zero := big.NewRat(0, 1)
	one := big.NewRat(1, 1)

	out := ""

	for i, p := range s.Powers {
		if p == nil || p.Cmp(zero) == 0 {
			continue
		}

		if out != "" {
			out += " "
		}

		out += baseNames[i]

		if p.Cmp(one) != 0 {
			out += p.RatString()
		}
	}

	if out == "" {
		return "1"
	}

	return out
}

// IsDimensionless reports whether every base-unit power is zero, irrespective
// of multiplier/magnitude (e.g. percent is dimensionless but not "fully"
// dimensionless).
func (s Standard) IsDimensionless() bool {
	zero := big.NewRat(0, 1)
	for _, p := range s.Powers {
		if p.Cmp(zero) != 0 {
			return false
		}
	}

	return true
}

// IsFullyDimensionless reports whether this is the plain, unscaled
// dimensionless unit: multiplier 1, magnitude 0, all powers 0.
func (s Standard) IsFullyDimensionless() bool {
	return s.IsDimensionless() && s.Multiplier.Cmp(big.NewRat(1, 1)) == 0 && s.Magnitude.Sign() == 0
}

// IsAtom reports whether this standard form is exactly a single base unit to
// the power of 1, with multiplier 1 and magnitude 0 -- used by MatchOffset to
// recognize bare °C/K.
func (s Standard) IsAtom(b Base) bool {
	one := big.NewRat(1, 1)
	zero := big.NewRat(0, 1)

	for i, p := range s.Powers {
		want := zero
		if Base(i) == b {
			want = one
		}

		if p.Cmp(want) != 0 {
			return false
		}
	}

	return true
}

func powersEqual(a, b Standard) bool {
	for i := range a.Powers {
		if a.Powers[i].Cmp(b.Powers[i]) != 0 {
			return false
		}
	}

	return true
}

// Multiply combines two standard forms, raising the right operand to the
// given integer power first (so division is Multiply(a, b, -1)).
func Multiply(a, b Standard, power int) Standard {
	var result Standard

	result.Multiplier = new(big.Rat).Mul(a.Multiplier, ratPowInt(b.Multiplier, power))
	result.Magnitude = new(big.Rat).Add(a.Magnitude, new(big.Rat).Mul(b.Magnitude, big.NewRat(int64(power), 1)))

	for i := range result.Powers {
		contribution := new(big.Rat).Mul(b.Powers[i], big.NewRat(int64(power), 1))
		result.Powers[i] = new(big.Rat).Add(a.Powers[i], contribution)
	}

	reduce(&result)

	return result
}

// ratPowInt raises a rational to an integer power (possibly negative).
func ratPowInt(r *big.Rat, power int) *big.Rat {
	if power == 0 {
		return big.NewRat(1, 1)
	}

	n := power
	if n < 0 {
		n = -n
	}

	num := new(big.Int).Exp(r.Num(), big.NewInt(int64(n)), nil)
	den := new(big.Int).Exp(r.Denom(), big.NewInt(int64(n)), nil)
	result := new(big.Rat).SetFrac(num, den)

	if power < 0 {
		result.Inv(result)
	}

	return result
}

// Power raises a standard form to a rational power. Fails if the power is
// non-integer and the multiplier is not exactly 1 (spec.md §4.1 failure
// condition: "non-integer power applied to a unit whose multiplier is not
// 1").
func Power(a Standard, power *big.Rat) (Standard, error) {
	if !power.IsInt() && a.Multiplier.Cmp(big.NewRat(1, 1)) != 0 {
		return Standard{}, fmt.Errorf("cannot take non-integer power of unit with non-unit multiplier")
	}

	var result Standard

	result.Magnitude = new(big.Rat).Mul(a.Magnitude, power)

	for i := range result.Powers {
		result.Powers[i] = new(big.Rat).Mul(a.Powers[i], power)
	}

	result.Multiplier = ratPowInt(a.Multiplier, int(power.Num().Int64()))
	reduce(&result)

	return result, nil
}

// Match determines a scalar factor such that factor·b numerically equals a,
// succeeding only if both have identical base-unit exponents (spec.md §4.1,
// §8 symmetry law).
func Match(a, b Standard) (*big.Rat, bool) {
	if !powersEqual(a, b) {
		return nil, false
	}

	factor := big.NewRat(1, 1)

	if a.Multiplier.Cmp(b.Multiplier) != 0 {
		factor = new(big.Rat).Quo(a.Multiplier, b.Multiplier)
	}

	if a.Magnitude.Cmp(b.Magnitude) != 0 {
		diff := new(big.Rat).Sub(a.Magnitude, b.Magnitude)
		factor = new(big.Rat).Mul(factor, tenPowRat(diff))
	}

	return factor, true
}

// tenPowRat computes 10^r for a rational exponent, supporting only integer
// exponents (magnitude differences are always integral by construction,
// since reduce() keeps magnitude an integer-valued rational).
func tenPowRat(r *big.Rat) *big.Rat {
	if !r.IsInt() {
		panic("internal error: non-integer magnitude difference")
	}

	n := r.Num().Int64()
	if r.Denom().Int64() != 1 {
		n = r.Num().Int64() / r.Denom().Int64()
	}

	return ratPowInt(big.NewRat(10, 1), int(n))
}

// MatchExact is Match specialised to require a conversion factor of exactly
// 1: the units are identical once standardized.
func MatchExact(a, b Standard) bool {
	factor, ok := Match(a, b)
	return ok && factor.Cmp(big.NewRat(1, 1)) == 0
}

// MatchOffset handles the additive °C<->K conversion, which Match cannot
// express since it is not a pure scalar relationship. Returns the offset o
// such that o+b == a, succeeding only when both are bare °C/K atoms with
// identical multiplier and magnitude (spec.md §4.1, §8 offset-exclusivity
// property).
func MatchOffset(a, b Standard) (float64, bool) {
	if a.Multiplier.Cmp(b.Multiplier) != 0 || a.Magnitude.Cmp(b.Magnitude) != 0 {
		return 0, false
	}

	var offset float64

	var ok bool

	switch {
	case a.IsAtom(DegC) && b.IsAtom(K):
		offset, ok = 273.15, true
	case a.IsAtom(K) && b.IsAtom(DegC):
		offset, ok = -273.15, true
	}

	if !ok {
		return 0, false
	}

	if a.Multiplier.Cmp(big.NewRat(1, 1)) != 0 {
		f, _ := a.Multiplier.Float64()
		offset *= f
	}

	if a.Magnitude.Sign() != 0 {
		m, _ := a.Magnitude.Float64()
		offset *= pow10(m)
	}

	return offset, true
}

func pow10(m float64) float64 {
	result := 1.0
	n := int(m)

	neg := n < 0
	if neg {
		n = -n
	}

	for i := 0; i < n; i++ {
		result *= 10
	}

	if neg {
		return 1 / result
	}

	return result
}
