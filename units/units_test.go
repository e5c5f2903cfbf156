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
package units

import (
	"math/big"
	"testing"
)

func mustStandardize(t *testing.T, d Declared) Standard {
	t.Helper()

	s, err := Standardize(d)
	if err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	return s
}

func TestEmptyUnitIsDimensionless(t *testing.T) {
	s := mustStandardize(t, NewDeclared())

	if !s.IsFullyDimensionless() {
		t.Fatalf("expected [] to be fully dimensionless, got %+v", s)
	}
}

func TestStandardizeIdempotent(t *testing.T) {
	kg := NewDeclared(Part{Magnitude: 3, Power: big.NewRat(1, 1), Atom: AtomG})

	once := mustStandardize(t, kg)
	asDeclared := Declared{Multiplier: once.Multiplier, Parts: []Part{
		{Magnitude: 0, Power: big.NewRat(1, 1), Atom: AtomG},
	}}
	asDeclared.Parts[0].Power = big.NewRat(1, 1)
	_ = asDeclared

	twice, err := Power(once, big.NewRat(1, 1))
	if err != nil {
		t.Fatalf("power failed: %v", err)
	}

	if twice.Multiplier.Cmp(once.Multiplier) != 0 || twice.Magnitude.Cmp(once.Magnitude) != 0 {
		t.Fatalf("standardize not idempotent under identity power: %+v vs %+v", once, twice)
	}

	// The reduced multiplier must contain no remaining factor of 10.
	if new(big.Int).Mod(once.Multiplier.Num(), big.NewInt(10)).Sign() == 0 && once.Multiplier.Num().Sign() != 0 {
		t.Fatalf("multiplier retains a factor of 10: %v", once.Multiplier)
	}
}

func TestMatchSymmetry(t *testing.T) {
	kg := mustStandardize(t, NewDeclared(Part{Magnitude: 3, Power: big.NewRat(1, 1), Atom: AtomG}))
	g := mustStandardize(t, NewDeclared(Part{Magnitude: 0, Power: big.NewRat(1, 1), Atom: AtomG}))

	f1, ok1 := Match(kg, g)
	if !ok1 {
		t.Fatalf("expected kg vs g to match")
	}

	f2, ok2 := Match(g, kg)
	if !ok2 {
		t.Fatalf("expected g vs kg to match")
	}

	product := new(big.Rat).Mul(f1, f2)
	if product.Cmp(big.NewRat(1, 1)) != 0 {
		t.Fatalf("match not symmetric: f1=%v f2=%v", f1, f2)
	}

	if f1.Cmp(big.NewRat(1000, 1)) != 0 {
		t.Fatalf("expected 1kg = 1000g, got factor %v", f1)
	}
}

func TestMatchDifferentDimensionsFails(t *testing.T) {
	g := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomG}))
	m := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomM}))

	if _, ok := Match(g, m); ok {
		t.Fatalf("expected g vs m to fail to match")
	}
}

func TestMatchOffsetCelsiusKelvin(t *testing.T) {
	c := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomDegC}))
	k := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomK}))

	offset, ok := MatchOffset(c, k)
	if !ok || offset != 273.15 {
		t.Fatalf("expected °C<-K offset 273.15, got %v (ok=%v)", offset, ok)
	}

	back, ok := MatchOffset(k, c)
	if !ok || back != -273.15 {
		t.Fatalf("expected K<-°C offset -273.15, got %v (ok=%v)", back, ok)
	}
}

func TestMatchOffsetRejectsNonAtoms(t *testing.T) {
	c := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomDegC}))
	g := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomG}))

	if _, ok := MatchOffset(c, g); ok {
		t.Fatalf("expected °C vs g to fail offset match")
	}
}

func TestNewtonExpandsToBaseUnits(t *testing.T) {
	n := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomNewton}))

	// N = (10^3 g) m s^-2
	if n.Powers[G].Cmp(big.NewRat(1, 1)) != 0 || n.Powers[M].Cmp(big.NewRat(1, 1)) != 0 ||
		n.Powers[S].Cmp(big.NewRat(-2, 1)) != 0 {
		t.Fatalf("unexpected newton powers: %+v", n.Powers)
	}

	if n.Magnitude.Cmp(big.NewRat(3, 1)) != 0 {
		t.Fatalf("expected magnitude 3 for Newton, got %v", n.Magnitude)
	}
}

func TestLiterExpandsToCubicMeters(t *testing.T) {
	l := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomLiter}))

	if l.Powers[M].Cmp(big.NewRat(3, 1)) != 0 {
		t.Fatalf("expected liter to be m^3, got %+v", l.Powers)
	}

	if l.Magnitude.Cmp(big.NewRat(-3, 1)) != 0 {
		t.Fatalf("expected liter magnitude -3, got %v", l.Magnitude)
	}
}

func TestDayToSecondsIsExact(t *testing.T) {
	day := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomDay}))
	sec := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomS}))

	factor, ok := Match(day, sec)
	if !ok {
		t.Fatalf("expected day to match seconds dimensionally")
	}

	if factor.Cmp(big.NewRat(86400, 1)) != 0 {
		t.Fatalf("expected exact 86400 second day, got %v", factor)
	}
}

func TestTonIsExactMegagram(t *testing.T) {
	ton := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomTon}))
	kg := mustStandardize(t, NewDeclared(Part{Magnitude: 3, Power: big.NewRat(1, 1), Atom: AtomG}))

	factor, ok := Match(ton, kg)
	if !ok {
		t.Fatalf("expected ton to match kg dimensionally")
	}

	if factor.Cmp(big.NewRat(1000, 1)) != 0 {
		t.Fatalf("expected 1 ton = 1000 kg, got %v", factor)
	}
}

func TestPowerRejectsNonIntegerOnScaledUnit(t *testing.T) {
	minute := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomMinute}))

	if _, err := Power(minute, big.NewRat(1, 2)); err == nil {
		t.Fatalf("expected sqrt of min to fail (multiplier 6 != 1)")
	}
}

func TestMultiplyDivide(t *testing.T) {
	m := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomM}))
	s := mustStandardize(t, NewDeclared(Part{Power: big.NewRat(1, 1), Atom: AtomS}))

	mps := Multiply(m, s, -1)

	if mps.Powers[M].Cmp(big.NewRat(1, 1)) != 0 || mps.Powers[S].Cmp(big.NewRat(-1, 1)) != 0 {
		t.Fatalf("expected m/s, got %+v", mps.Powers)
	}
}
