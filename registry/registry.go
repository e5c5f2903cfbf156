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

import (
	"fmt"
	"strings"

	"github.com/mobius-lang/simc/diag"
	"github.com/mobius-lang/simc/internal/logging"
	"github.com/mobius-lang/simc/source"
)

var log = logging.Component("registry")

// Registry owns the entity arena and the root scope for a single
// compilation, and implements find_or_create/import/library-loading per
// spec.md §4.2.
type Registry struct {
	Arena    *Arena
	Global   *Scope
	libs     map[string]*Library
	pathSet  map[string]bool // per-root recursion guard for cyclic-include detection
	rootPath []string
}

// Library tracks the load state of one library module, mirroring the
// teacher's recursion-guard pattern: starting a load sets a being_processed
// flag so that a diamond import short-circuits instead of re-entering, while
// a genuine cycle (the flag still set when we return to the same library via
// a different path) is reported with a full path trace.
type Library struct {
	Name            string
	Scope           *Scope
	BeingProcessed  bool
	Loaded          bool
}

// New constructs an empty registry with a freshly allocated global scope.
func New() *Registry {
	return &Registry{
		Arena:   NewArena(),
		Global:  NewGlobalScope(),
		libs:    make(map[string]*Library),
		pathSet: make(map[string]bool),
	}
}

// FindOrCreateOpts configures FindOrCreate's behaviour.
type FindOrCreateOpts struct {
	Handle         string
	SerialName     string
	Declare        bool
	File           *source.File
	Location       source.Span
}

// FindOrCreate resolves an entity id for a handle and/or serial name within
// the given scope, allocating a new (initially undeclared) entity if
// neither resolves to an existing one. Implements the four rules of
// spec.md §4.2 find_or_create.
func (r *Registry) FindOrCreate(scope *Scope, kind Kind, opts FindOrCreateOpts) (ID, error) {
	var existing ID

	var found bool

	if opts.Handle != "" {
		if id, ok := scope.LookupHandle(opts.Handle); ok {
			existing, found = id, true
		}
	}

	if !found && opts.SerialName != "" {
		if id, ok := scope.LookupSerial(opts.SerialName); ok {
			existing, found = id, true
		}
	}

	if found {
		e := r.Arena.Get(existing)
		if e.Kind != kind {
			return Invalid, fmt.Errorf(
				"redeclaration of %q as %s conflicts with prior declaration as %s (at %s)",
				opts.Handle, kind, e.Kind, locationString(e),
			)
		}

		if opts.Declare {
			if e.Declared {
				return Invalid, fmt.Errorf("redeclaration of %q (first declared at %s)", opts.Handle, locationString(e))
			}

			e.Declared = true
			e.File, e.Location = opts.File, opts.Location
		}

		return existing, nil
	}

	// Not found anywhere reachable: allocate a new (possibly forward
	// referenced) entity.
	name := opts.Handle
	if name == "" {
		name = opts.SerialName
	}

	e := r.Arena.Alloc(kind, name, scope)
	e.Declared = opts.Declare
	e.File, e.Location = opts.File, opts.Location

	if opts.Handle != "" {
		scope.BindHandle(opts.Handle, e.ID)
	}

	if opts.SerialName != "" {
		if err := scope.BindSerial(opts.SerialName, e.ID); err != nil {
			return Invalid, err
		}
	}

	log.WithField("kind", kind.String()).WithField("name", name).Debug("entity allocated")

	return e.ID, nil
}

func locationString(e *Entity) string {
	if e.File == nil {
		return "<unknown>"
	}

	line, col := e.File.LineOf(e.Location.Start())

	return fmt.Sprintf("%s:%d:%d", e.File.Filename, line, col)
}

// Import copies every non-external visible binding from other into scope.
// allowParameters controls whether parameter-group bindings are eligible for
// import (spec.md §4.2).
func (r *Registry) Import(scope, other *Scope, loc source.Span, allowParameters bool) error {
	if err := scope.Import(other, allowParameters); err != nil {
		return err
	}

	return nil
}

// StartLibraryLoad begins loading a library, returning (library,
// alreadyLoaded). If the library's being_processed flag is already set, this
// indicates either a diamond import (allowed: the scope is populated by the
// in-flight load) or, if the library appears again on the *current* root
// path, a genuine cycle.
func (r *Registry) StartLibraryLoad(path []string) (*Library, error) {
	name := strings.Join(path, "/")

	if lib, ok := r.libs[name]; ok {
		if lib.BeingProcessed {
			if r.pathSet[name] {
				return nil, fmt.Errorf("circular library include detected: %s", strings.Join(append(append([]string{}, r.rootPath...), name), " -> "))
			}
			// Diamond import: short-circuit, the owning load will populate
			// the scope.
			return lib, nil
		}

		if lib.Loaded {
			return lib, nil
		}
	}

	lib := &Library{Name: name, Scope: r.Global.Child(name), BeingProcessed: true}
	r.libs[name] = lib
	r.pathSet[name] = true
	r.rootPath = append(r.rootPath, name)

	return lib, nil
}

// FinishLibraryLoad marks a library fully loaded, clearing its
// being_processed flag and popping it from the recursion path set.
func (r *Registry) FinishLibraryLoad(lib *Library) {
	lib.BeingProcessed = false
	lib.Loaded = true
	delete(r.pathSet, lib.Name)

	if n := len(r.rootPath); n > 0 && r.rootPath[n-1] == lib.Name {
		r.rootPath = r.rootPath[:n-1]
	}
}

// CheckUndeclared reports every entity referenced but never declared, as
// required at the end of scope processing.
func (r *Registry) CheckUndeclared() []error {
	var errs []error

	for _, e := range r.Arena.Undeclared() {
		errs = append(errs, diag.New(diag.ModelBuilding, "entity %q referenced but never declared", e.Name))
	}

	return errs
}
