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

// Package diag implements the two diagnostic streams (error and log)
// described by the compilation pipeline: every message carries a source
// location header and a kind distinguishing parsing, model-building,
// api-usage and internal failures.
package diag

import (
	"fmt"

	"github.com/mobius-lang/simc/source"
)

// Kind classifies the nature of a diagnostic, per the error taxonomy.
type Kind uint8

const (
	// Parsing indicates malformed source text. Always fatal.
	Parsing Kind = iota
	// ModelBuilding indicates a semantically invalid composition: unit
	// mismatch, distribution violation, missing declaration, circular
	// dependency, disallowed weak-aggregate cycle.
	ModelBuilding
	// APIUsage indicates the caller violated a contract (e.g. compiling
	// twice, querying unset data).
	APIUsage
	// Internal indicates a broken invariant. Always a defect; the boundary
	// recovers it and reports it as such rather than crashing the process.
	Internal
)

// String renders the kind's diagnostic header word.
func (k Kind) String() string {
	switch k {
	case Parsing:
		return "parsing"
	case ModelBuilding:
		return "model_building"
	case APIUsage:
		return "api_usage"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a single fatal diagnostic, with an optional dependency trace used
// by the solver-propagation and grouped-topological-sort passes to explain
// cycles and conflicts.
type Error struct {
	Kind Kind
	Span source.Span
	File *source.File
	Msg  string
	// Trace is an ordered list of entity/variable/instruction names forming
	// a dependency path, present for cycle and conflict diagnostics.
	Trace []string
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	header := fmt.Sprintf("[%s]", e.Kind)

	if e.File != nil {
		line, col := e.File.LineOf(e.Span.Start())
		header = fmt.Sprintf("%s %s:%d:%d", header, e.File.Filename, line, col)
	}

	if len(e.Trace) == 0 {
		return fmt.Sprintf("%s: %s", header, e.Msg)
	}

	return fmt.Sprintf("%s: %s (via %v)", header, e.Msg, e.Trace)
}

// New constructs a diagnostic of the given kind, unattached to any source
// location (used for internal errors and api-usage violations which have no
// natural span).
func New(kind Kind, msg string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(msg, args...)}
}

// At constructs a diagnostic anchored to a source span.
func At(kind Kind, file *source.File, span source.Span, msg string, args ...any) *Error {
	return &Error{Kind: kind, File: file, Span: span, Msg: fmt.Sprintf(msg, args...)}
}

// WithTrace returns a copy of this error carrying the given dependency
// trace, most useful for ModelBuilding cycle/conflict diagnostics.
func (e *Error) WithTrace(trace ...string) *Error {
	n := *e
	n.Trace = trace

	return &n
}

// Stream accumulates diagnostics for a single compile invocation. It
// replaces the teacher's implicit global error/log state (Design Note:
// "Global mutable state... re-architect as explicit context handles
// threaded through passes").
type Stream struct {
	errors []error
	logs   []string
}

// NewStream constructs an empty diagnostic stream.
func NewStream() *Stream {
	return &Stream{}
}

// Error records a fatal diagnostic.
func (s *Stream) Error(err error) {
	s.errors = append(s.errors, err)
}

// Errorf records a fatal diagnostic built from a format string.
func (s *Stream) Errorf(kind Kind, msg string, args ...any) {
	s.errors = append(s.errors, New(kind, msg, args...))
}

// Log records an informational message, not fatal to compilation.
func (s *Stream) Log(msg string, args ...any) {
	s.logs = append(s.logs, fmt.Sprintf(msg, args...))
}

// HasErrors reports whether any fatal diagnostic has been recorded.
func (s *Stream) HasErrors() bool {
	return len(s.errors) > 0
}

// Errors returns all recorded fatal diagnostics, in order.
func (s *Stream) Errors() []error {
	return s.errors
}

// Logs returns all recorded informational messages, in order.
func (s *Stream) Logs() []string {
	return s.logs
}

// FirstErrorOfKind returns the first recorded error whose Kind matches, or
// nil if none does.
func (s *Stream) FirstErrorOfKind(kind Kind) *Error {
	for _, e := range s.errors {
		if de, ok := e.(*Error); ok && de.Kind == kind {
			return de
		}
	}

	return nil
}
