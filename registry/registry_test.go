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
package registry

import "testing"

func TestFindOrCreateReuses(t *testing.T) {
	r := New()

	id1, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "a", Declare: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id2, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id1 != id2 {
		t.Fatalf("expected reuse of existing entity, got %v vs %v", id1, id2)
	}
}

func TestFindOrCreateKindConflict(t *testing.T) {
	r := New()

	if _, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "a", Declare: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := r.FindOrCreate(r.Global, KindQuantity, FindOrCreateOpts{Handle: "a"}); err == nil {
		t.Fatalf("expected kind-conflict error")
	}
}

func TestFindOrCreateRedeclarationFatal(t *testing.T) {
	r := New()

	if _, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "a", Declare: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "a", Declare: true}); err == nil {
		t.Fatalf("expected redeclaration error")
	}
}

func TestForwardReferenceThenDeclare(t *testing.T) {
	r := New()

	id1, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if errs := r.CheckUndeclared(); len(errs) != 1 {
		t.Fatalf("expected one undeclared entity, got %d", len(errs))
	}

	id2, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "a", Declare: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id1 != id2 {
		t.Fatalf("expected declaration to resolve forward reference to same id")
	}

	if errs := r.CheckUndeclared(); len(errs) != 0 {
		t.Fatalf("expected no undeclared entities after declaration, got %d", len(errs))
	}
}

func TestDuplicateSerialNameFatal(t *testing.T) {
	r := New()

	if _, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "a", SerialName: "root.a", Declare: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := r.FindOrCreate(r.Global, KindCompartment, FindOrCreateOpts{Handle: "b", SerialName: "root.a", Declare: true}); err == nil {
		t.Fatalf("expected duplicate serial name error")
	}
}

func TestLibraryDiamondImportAllowed(t *testing.T) {
	r := New()

	libA, err := r.StartLibraryLoad([]string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.FinishLibraryLoad(libA)

	// Loading "a" again (e.g. from two different importers) should just
	// return the already-loaded library, not error.
	libA2, err := r.StartLibraryLoad([]string{"a"})
	if err != nil {
		t.Fatalf("unexpected error on diamond re-load: %v", err)
	}

	if libA2 != libA {
		t.Fatalf("expected diamond import to return the same library")
	}
}

func TestLibraryCycleDetected(t *testing.T) {
	r := New()

	libA, err := r.StartLibraryLoad([]string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate "a" importing "a" again before finishing -- a true cycle.
	if _, err := r.StartLibraryLoad([]string{"a"}); err == nil {
		t.Fatalf("expected cycle to be detected")
	}

	r.FinishLibraryLoad(libA)
}
