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

// Package source provides the location bookkeeping used for diagnostics
// thrown by the compilation pipeline. Lexing and parsing themselves are
// external collaborators (see package ast); this package only describes the
// shape of a location so that passes downstream of the parser can still
// produce precise, file/line/column tagged diagnostics.
package source

import "fmt"

// Span identifies a contiguous region of characters within a single source
// file, as a half-open byte range [start,end).
type Span struct {
	start int
	end   int
}

// NewSpan constructs a span over [start,end).
func NewSpan(start, end int) Span {
	return Span{start, end}
}

// Start returns the (inclusive) starting offset of this span.
func (s Span) Start() int { return s.start }

// End returns the (exclusive) ending offset of this span.
func (s Span) End() int { return s.end }

// Len returns the number of characters covered by this span.
func (s Span) Len() int { return s.end - s.start }

// Contains checks whether a given offset falls within this span.
func (s Span) Contains(offset int) bool {
	return offset >= s.start && offset < s.end
}

// Line identifies a single line of text within a source file, along with the
// (1-indexed) line number and (0-indexed) column of the line's start.
type Line struct {
	Number int
	Span   Span
}

// File represents a single loaded source file. The filename is retained only
// for diagnostics; the file's byte contents are what the external parser
// walked to produce spans.
type File struct {
	Filename string
	Contents string
	// lines caches the byte offsets at which each line begins; lines[0] is
	// always 0.
	lines []int
}

// NewFile constructs a source file wrapper around the given filename and
// contents, pre-computing line-start offsets.
func NewFile(filename, contents string) *File {
	lines := []int{0}

	for i, c := range contents {
		if c == '\n' {
			lines = append(lines, i+1)
		}
	}

	return &File{filename, contents, lines}
}

// LineOf determines which (1-indexed) line and (0-indexed) column a given
// byte offset falls on.
func (f *File) LineOf(offset int) (line int, col int) {
	// Binary search would be preferable for huge files, but a linear scan
	// keeps this simple and diagnostics are not a hot path.
	for i := len(f.lines) - 1; i >= 0; i-- {
		if f.lines[i] <= offset {
			return i + 1, offset - f.lines[i]
		}
	}

	return 1, offset
}

// SyntaxError constructs a diagnostic-ready error anchored at the given span
// within this file.
func (f *File) SyntaxError(span Span, msg string) *SyntaxError {
	return &SyntaxError{f, span, msg}
}

// SyntaxError is a structured error which retains the span into the original
// source file, so that a header (filename, line, column) can be printed
// alongside the message.
type SyntaxError struct {
	file *File
	span Span
	msg  string
}

// File returns the source file this error refers to.
func (p *SyntaxError) File() *File { return p.file }

// Span returns the offending span.
func (p *SyntaxError) Span() Span { return p.span }

// Message returns the underlying message, without any location header.
func (p *SyntaxError) Message() string { return p.msg }

// Error implements the standard error interface, including a location
// header of the form "filename:line:column: message".
func (p *SyntaxError) Error() string {
	if p.file == nil {
		return p.msg
	}

	line, col := p.file.LineOf(p.span.Start())

	return fmt.Sprintf("%s:%d:%d: %s", p.file.Filename, line, col, p.msg)
}
