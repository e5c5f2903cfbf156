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
package compose

import (
	"fmt"
	"sort"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/diag"
	"github.com/mobius-lang/simc/expr"
	"github.com/mobius-lang/simc/internal/logging"
	"github.com/mobius-lang/simc/loc"
	"github.com/mobius-lang/simc/registry"
	"github.com/mobius-lang/simc/source"
	"github.com/mobius-lang/simc/units"
)

var log = logging.Component("compose")

// ParamInfo describes a declared parameter.
type ParamInfo struct {
	Unit       units.Standard
	Default    float64
	HasDefault bool
}

// SeriesInfo describes a declared input time series.
type SeriesInfo struct {
	Unit units.Standard
}

// ConstantInfo describes a declared named constant.
type ConstantInfo struct {
	Type  expr.Type
	Value expr.Literal
}

// ConnectionInfo describes a declared connection topology.
type ConnectionInfo struct {
	Topology string
	IndexSet registry.ID
}

// SolverBinding records a `solver` declaration's scope and configuration:
// every integrated (dissolved_flux/dissolved_conc) variable located at or
// beneath Scope inherits it, the nearest enclosing binding winning when
// solver declarations nest (spec.md §3's Solver entity, GLOSSARY "Solver").
type SolverBinding struct {
	ID          registry.ID
	Scope       registry.ID
	Algorithm   string
	StepSeconds float64
	HasStep     bool
}

// Model is the composer's output: the flat state-variable table plus every
// supporting entity table the downstream passes (instr, depsolve, order,
// codegen) need to resolve references by id.
type Model struct {
	Reg *registry.Registry

	Variables []*Variable
	ByID      map[registry.ID]*Variable

	Connections map[registry.ID]ConnectionInfo
	IndexSets   map[registry.ID]int
	Parameters  map[registry.ID]ParamInfo
	Series      map[registry.ID]SeriesInfo
	Constants   map[registry.ID]ConstantInfo
	Functions   map[string]*expr.FunctionBinding
	Solvers     []SolverBinding
}

// NewModel constructs an empty composed model bound to a fresh registry.
func NewModel() *Model {
	return &Model{
		Reg:         registry.New(),
		ByID:        make(map[registry.ID]*Variable),
		Connections: make(map[registry.ID]ConnectionInfo),
		IndexSets:   make(map[registry.ID]int),
		Parameters:  make(map[registry.ID]ParamInfo),
		Series:      make(map[registry.ID]SeriesInfo),
		Constants:   make(map[registry.ID]ConstantInfo),
		Functions:   make(map[string]*expr.FunctionBinding),
	}
}

// Lookup implements expr.Environment: it resolves a bare identifier against
// the entity it is bound to in scope, deriving a state-variable location
// relative to inLoc for compartments/quantities.
func (m *Model) Lookup(scope *registry.Scope, inLoc loc.Location, name string) (expr.SymbolKind, registry.ID, loc.Location, bool) {
	id, ok := scope.LookupHandle(name)
	if !ok {
		return expr.SymNone, 0, loc.Location{}, false
	}

	e := m.Reg.Arena.Get(id)

	switch e.Kind {
	case registry.KindParameter:
		return expr.SymParam, id, loc.Location{}, true
	case registry.KindConnection:
		return expr.SymConnection, id, loc.Location{}, true
	case registry.KindConstant:
		return expr.SymConstant, id, loc.Location{}, true
	case registry.KindQuantity:
		return expr.SymStateVar, id, loc.Location{Form: loc.FormLocated, Components: append(append([]registry.ID{}, inLoc.Components...), id)}, true
	case registry.KindCompartment:
		return expr.SymStateVar, id, loc.New(id), true
	default:
		return expr.SymNone, 0, loc.Location{}, false
	}
}

// Unit implements expr.Environment.
func (m *Model) Unit(kind expr.SymbolKind, id registry.ID, l loc.Location) units.Standard {
	switch kind {
	case expr.SymParam:
		return m.Parameters[id].Unit
	case expr.SymStateVar:
		if v, ok := m.ByID[id]; ok {
			return v.Unit
		}

		std, _ := units.Standardize(units.NewDeclared())

		return std
	default:
		std, _ := units.Standardize(units.NewDeclared())
		return std
	}
}

// ConstantValue implements expr.Environment.
func (m *Model) ConstantValue(id registry.ID) (expr.Type, expr.Literal) {
	c := m.Constants[id]
	return c.Type, c.Value
}

// ParamValue implements expr.Environment; this composer never bakes
// parameters at resolve time (that decision is made per-compile by the
// caller configuring Context.Bakeable), so it always reports "not baked".
func (m *Model) ParamValue(registry.ID) (float64, bool) { return 0, false }

// Function implements expr.Environment.
func (m *Model) Function(scope *registry.Scope, name string) (*expr.FunctionBinding, bool) {
	fn, ok := m.Functions[name]
	return fn, ok
}

// ConnectionIndexSet implements expr.Environment.
func (m *Model) ConnectionIndexSet(connection registry.ID) registry.ID {
	return m.Connections[connection].IndexSet
}

// SolverFor returns the solver binding that applies to a variable at l, the
// nearest enclosing compartment binding winning over a model-wide default
// (Scope == registry.Invalid) when both match. Used by model.Compile to seed
// depsolve's per-instruction solver labels (spec.md §4.6).
func (m *Model) SolverFor(l loc.Location) (SolverBinding, bool) {
	var best SolverBinding

	found := false
	bestDepth := -1

	for _, sb := range m.Solvers {
		if sb.Scope == registry.Invalid {
			if !found {
				best, found, bestDepth = sb, true, 0
			}

			continue
		}

		for i, c := range l.Components {
			if c != sb.Scope {
				continue
			}

			if depth := i + 1; depth > bestDepth {
				best, found, bestDepth = sb, true, depth
			}

			break
		}
	}

	return best, found
}

// Composer drives the declaration-to-state-variable pipeline.
type Composer struct {
	Model    *Model
	Resolver *expr.Resolver

	file      *source.File
	varSerial int
}

// NewComposer constructs a composer around a fresh model.
func NewComposer() *Composer {
	m := NewModel()
	return &Composer{Model: m, Resolver: expr.NewResolver(m)}
}

// Compose processes every top-level declaration in tree, in order, building
// the composed Model. Library includes are resolved through loader; since
// parsing is an out-of-scope collaborator (spec.md §1/§6), the bytes loader
// returns are discarded unparsed and only the library's registry scope is
// imported -- the host is expected to have already flattened includes before
// handing the pipeline its Tree, mirroring how natives.go's library loader
// in the teacher only manages the scope/recursion bookkeeping, leaving
// lexing to its own pass.
func (c *Composer) Compose(tree *ast.Tree, loader ast.Loader) (*Model, []error) {
	stream := diag.NewStream()
	scope := c.Model.Reg.Global
	c.file = tree.File

	for _, n := range tree.Declarations {
		decl, ok := n.(ast.Declaration)
		if !ok {
			stream.Error(diag.At(diag.Internal, tree.File, n.Span(), "top-level node is not a declaration"))
			continue
		}

		c.composeOne(scope, registry.Invalid, decl, loader, stream)
	}

	c.orderByNestingDepth()
	c.validitySweep(stream)

	if stream.HasErrors() {
		return c.Model, stream.Errors()
	}

	return c.Model, nil
}

// composeOne processes one declaration. enclosing is the nearest surrounding
// CompartmentDecl's entity id (registry.Invalid at the top level), the
// context declareSolver needs to record which subtree a `solver` block
// binds: compartments recurse into their nested Children with themselves as
// the new enclosing id, exactly mirroring the original implementation's
// compartment-subtree solver scoping.
func (c *Composer) composeOne(scope *registry.Scope, enclosing registry.ID, decl ast.Declaration, loader ast.Loader, stream *diag.Stream) {
	switch d := decl.(type) {
	case *ast.CompartmentDecl:
		id := c.declareEntity(scope, registry.KindCompartment, d.Handle, d.SerialName, d.Span(), stream)

		for _, child := range d.Children {
			if cd, ok := child.(ast.Declaration); ok {
				c.composeOne(scope, id, cd, loader, stream)
			}
		}
	case *ast.QuantityDecl:
		c.declareEntity(scope, registry.KindQuantity, d.Handle, d.SerialName, d.Span(), stream)
	case *ast.ParameterDecl:
		c.declareParameter(scope, d, stream)
	case *ast.ConnectionDecl:
		c.declareConnection(scope, d, stream)
	case *ast.IndexSetDecl:
		c.declareIndexSet(scope, d, stream)
	case *ast.ConstantDecl:
		c.declareConstant(scope, d, stream)
	case *ast.FunctionDecl:
		c.declareFunction(scope, d, stream)
	case *ast.VariableDecl:
		c.declareVariable(scope, d, stream)
	case *ast.SolverDecl:
		c.declareSolver(scope, enclosing, d, stream)
	case *ast.LibraryIncludeDecl:
		if loader == nil {
			stream.Errorf(diag.APIUsage, "library include %q requires a Loader", d.Path)
			return
		}

		lib, err := c.Model.Reg.StartLibraryLoad([]string{d.Path})
		if err != nil {
			stream.Error(diag.New(diag.ModelBuilding, "%v", err))
			return
		}

		if _, _, err := loader.Load(d.Path, "", d.Span()); err != nil {
			stream.Error(diag.At(diag.ModelBuilding, nil, d.Span(), "%v", err))
			return
		}

		if err := c.Model.Reg.Import(scope, lib.Scope, d.Span(), d.AllowParameters); err != nil {
			stream.Error(diag.New(diag.ModelBuilding, "%v", err))
		}

		c.Model.Reg.FinishLibraryLoad(lib)
	default:
		stream.Error(diag.At(diag.Internal, nil, decl.Span(), "unhandled declaration kind"))
	}
}

func (c *Composer) declareEntity(scope *registry.Scope, kind registry.Kind, handle, serial string, span source.Span, stream *diag.Stream) registry.ID {
	id, err := c.Model.Reg.FindOrCreate(scope, kind, registry.FindOrCreateOpts{
		Handle: handle, SerialName: serial, Declare: true, File: c.file, Location: span,
	})
	if err != nil {
		stream.Error(diag.New(diag.ModelBuilding, "%v", err))
		return registry.Invalid
	}

	return id
}

func (c *Composer) declareParameter(scope *registry.Scope, d *ast.ParameterDecl, stream *diag.Stream) {
	id, err := c.Model.Reg.FindOrCreate(scope, registry.KindParameter, registry.FindOrCreateOpts{
		Handle: d.Handle, SerialName: d.SerialName, Declare: true, File: c.file, Location: d.Span(),
	})
	if err != nil {
		stream.Error(diag.New(diag.ModelBuilding, "%v", err))
		return
	}

	std, uerr := unitExprToStandard(d.Unit)
	if uerr != nil {
		stream.Error(diag.At(diag.ModelBuilding, nil, d.Span(), "%v", uerr))
		return
	}

	info := ParamInfo{Unit: std}

	if d.Default != nil {
		ctx := expr.NewContext(scope, loc.Location{}).WithExpectedUnit(std)

		val, errs := c.Resolver.Resolve(ctx, d.Default)
		if len(errs) > 0 {
			for _, e := range errs {
				stream.Error(e)
			}

			return
		}

		if lit, ok := val.(*expr.Literal); ok {
			info.HasDefault = true
			if lit.Ty.Scalar == expr.Int {
				info.Default = float64(lit.IntVal)
			} else {
				info.Default = lit.RealVal
			}
		}
	}

	c.Model.Parameters[id] = info
}

func (c *Composer) declareConnection(scope *registry.Scope, d *ast.ConnectionDecl, stream *diag.Stream) {
	id, err := c.Model.Reg.FindOrCreate(scope, registry.KindConnection, registry.FindOrCreateOpts{
		Handle: d.Handle, SerialName: d.SerialName, Declare: true, File: c.file, Location: d.Span(),
	})
	if err != nil {
		stream.Error(diag.New(diag.ModelBuilding, "%v", err))
		return
	}

	var indexSet registry.ID

	if d.IndexSet != "" {
		indexSet, _ = scope.LookupHandle(d.IndexSet)
	}

	c.Model.Connections[id] = ConnectionInfo{Topology: d.Topology, IndexSet: indexSet}
}

func (c *Composer) declareConstant(scope *registry.Scope, d *ast.ConstantDecl, stream *diag.Stream) {
	id, err := c.Model.Reg.FindOrCreate(scope, registry.KindConstant, registry.FindOrCreateOpts{
		Handle: d.Handle, SerialName: d.SerialName, Declare: true, File: c.file, Location: d.Span(),
	})
	if err != nil {
		stream.Error(diag.New(diag.ModelBuilding, "%v", err))
		return
	}

	std, uerr := unitExprToStandard(d.Unit)
	if uerr != nil {
		stream.Error(diag.At(diag.ModelBuilding, nil, d.Span(), "%v", uerr))
		return
	}

	ctx := expr.NewContext(scope, loc.Location{}).WithExpectedUnit(std)

	val, errs := c.Resolver.Resolve(ctx, d.Value)
	if len(errs) > 0 {
		for _, e := range errs {
			stream.Error(e)
		}

		return
	}

	lit, _ := val.(*expr.Literal)
	if lit == nil {
		lit = &expr.Literal{}
	}

	c.Model.Constants[id] = ConstantInfo{Type: val.Type(), Value: *lit}
}

func (c *Composer) declareIndexSet(scope *registry.Scope, d *ast.IndexSetDecl, stream *diag.Stream) {
	id, err := c.Model.Reg.FindOrCreate(scope, registry.KindIndexSet, registry.FindOrCreateOpts{
		Handle: d.Handle, SerialName: d.SerialName, Declare: true, File: c.file, Location: d.Span(),
	})
	if err != nil {
		stream.Error(diag.New(diag.ModelBuilding, "%v", err))
		return
	}

	if d.Size == nil {
		return
	}

	dimensionless, _ := units.Standardize(units.NewDeclared())
	ctx := expr.NewContext(scope, loc.Location{}).WithExpectedUnit(dimensionless)

	val, errs := c.Resolver.Resolve(ctx, d.Size)
	if len(errs) > 0 {
		for _, e := range errs {
			stream.Error(e)
		}

		return
	}

	lit, ok := val.(*expr.Literal)
	if !ok {
		stream.Errorf(diag.ModelBuilding, "index set %q size must be a constant", d.Handle)
		return
	}

	size := int(lit.IntVal)
	if lit.Ty.Scalar == expr.Real {
		size = int(lit.RealVal)
	}

	c.Model.IndexSets[id] = size
}

func (c *Composer) declareSolver(scope *registry.Scope, enclosing registry.ID, d *ast.SolverDecl, stream *diag.Stream) {
	id, err := c.Model.Reg.FindOrCreate(scope, registry.KindSolver, registry.FindOrCreateOpts{
		Handle: d.Handle, Declare: true, File: c.file, Location: d.Span(),
	})
	if err != nil {
		stream.Error(diag.New(diag.ModelBuilding, "%v", err))
		return
	}

	// enclosing is registry.Invalid for a top-level solver block, which
	// Model.SolverFor treats as "binds every location" -- the model-wide
	// default solver.
	binding := SolverBinding{ID: id, Scope: enclosing, Algorithm: d.Algorithm}

	if d.StepExpr != nil {
		secondsUnit, _ := units.Standardize(units.NewDeclared())
		ctx := expr.NewContext(scope, loc.Location{}).WithExpectedUnit(secondsUnit)

		val, errs := c.Resolver.Resolve(ctx, d.StepExpr)
		if len(errs) > 0 {
			for _, e := range errs {
				stream.Error(e)
			}

			return
		}

		if lit, ok := val.(*expr.Literal); ok {
			binding.HasStep = true
			if lit.Ty.Scalar == expr.Int {
				binding.StepSeconds = float64(lit.IntVal)
			} else {
				binding.StepSeconds = lit.RealVal
			}
		}
	}

	c.Model.Solvers = append(c.Model.Solvers, binding)
}

func (c *Composer) declareFunction(scope *registry.Scope, d *ast.FunctionDecl, stream *diag.Stream) {
	params := make([]expr.Type, len(d.ParamUnits))

	for i, u := range d.ParamUnits {
		std, err := unitExprToStandard(u)
		if err != nil {
			stream.Error(diag.At(diag.ModelBuilding, nil, d.Span(), "%v", err))
			return
		}

		params[i] = expr.Type{Scalar: expr.Real, Unit: std}
	}

	retStd, err := unitExprToStandard(d.ResultUnit)
	if err != nil {
		stream.Error(diag.At(diag.ModelBuilding, nil, d.Span(), "%v", err))
		return
	}

	c.Model.Functions[d.Handle] = &expr.FunctionBinding{
		Name:       d.Handle,
		Linked:     d.Body == nil,
		Pure:       true,
		Params:     params,
		Ret:        expr.Type{Scalar: expr.Real, Unit: retStd},
		Body:       d.Body,
		ParamNames: d.ParamNames,
	}
}

func (c *Composer) declareVariable(scope *registry.Scope, d *ast.VariableDecl, stream *diag.Stream) {
	components := make([]registry.ID, 0, len(d.Location))

	for _, handle := range d.Location {
		id, ok := scope.LookupHandle(handle)
		if !ok {
			stream.Error(diag.At(diag.ModelBuilding, nil, d.Span(), "undeclared location component %q", handle))
			return
		}

		components = append(components, id)
	}

	var varLoc loc.Location
	if len(components) == 0 {
		varLoc = loc.Out()
	} else {
		varLoc = loc.New(components...)
	}

	kind := variableKindOf(d.VarKind)

	std, uerr := unitExprToStandard(d.Unit)
	if uerr != nil {
		stream.Error(diag.At(diag.ModelBuilding, nil, d.Span(), "%v", uerr))
		return
	}

	ctx := expr.NewContext(scope, varLoc).WithExpectedUnit(std).WithPermissions(permissionsFor(kind, d.Override != nil))

	code, errs := c.Resolver.Resolve(ctx, d.Code)
	if len(errs) > 0 {
		for _, e := range errs {
			stream.Error(e)
		}

		return
	}

	if d.Unit != nil && !units.MatchExact(std, code.Type().Unit) {
		stream.Errorf(diag.ModelBuilding, "declared unit %v disagrees with code body's inferred unit %v", std, code.Type().Unit)
		return
	}

	var override expr.Expr

	if d.Override != nil {
		octx := ctx.WithPermissions(permissionsFor(kind, true))

		ov, errs := c.Resolver.Resolve(octx, d.Override)
		if len(errs) > 0 {
			for _, e := range errs {
				stream.Error(e)
			}

			return
		}

		override = ov
	}

	var flags Flags
	if kind == RegularAggregate || kind == InFluxAggregate || kind == ConnectionAggregate {
		flags |= ClearSeriesToNaN
	}

	name := "out"
	if len(d.Location) > 0 {
		name = d.Location[len(d.Location)-1]
	}

	c.varSerial++
	e := c.Model.Reg.Arena.Alloc(registry.KindFlux, fmt.Sprintf("%s$var%d", name, c.varSerial), scope)
	e.Declared = true
	e.File, e.Location = c.file, d.Span()

	v := &Variable{ID: e.ID, Kind: kind, Flags: flags, Location: varLoc, Unit: std, Code: code, Override: override, Discrete: d.Discrete}
	c.Model.Variables = append(c.Model.Variables, v)
	c.Model.ByID[e.ID] = v
}

func variableKindOf(k ast.VariableKindName) Kind {
	switch k {
	case ast.VarRegularAggregate:
		return RegularAggregate
	case ast.VarInFluxAggregate:
		return InFluxAggregate
	case ast.VarConnectionAggregate:
		return ConnectionAggregate
	case ast.VarDissolvedFlux:
		return DissolvedFlux
	case ast.VarDissolvedConc:
		return DissolvedConc
	case ast.VarExternalComputation:
		return ExternalComputation
	default:
		return Declared
	}
}

func permissionsFor(kind Kind, allowNoOverride bool) expr.Permissions {
	return expr.Permissions{
		AllowInFlux:     kind == InFluxAggregate,
		AllowNoOverride: allowNoOverride,
		AllowResult:     kind == ExternalComputation,
		AllowLast:       true,
	}
}

// orderByNestingDepth sorts the variable table so that a parent location's
// variable always precedes every variable nested beneath it, matching the
// original's requirement that aggregates be processed after their
// contributors are known.
func (c *Composer) orderByNestingDepth() {
	sort.SliceStable(c.Model.Variables, func(i, j int) bool {
		return c.Model.Variables[i].Location.Depth() < c.Model.Variables[j].Location.Depth()
	})
}

// validitySweep flags variables with an absent code body, the composer's
// final pass. A declared unit that fails to standardize is reported by
// declareVariable, which then never adds the variable to the table.
func (c *Composer) validitySweep(stream *diag.Stream) {
	for _, v := range c.Model.Variables {
		if v.Code == nil {
			v.Flags |= Invalid
			stream.Errorf(diag.ModelBuilding, "variable %d has no computation body", v.ID)
		}
	}
}

func unitExprToStandard(u *ast.UnitExpr) (units.Standard, error) {
	decl, err := expr.UnitExprToDeclared(u)
	if err != nil {
		return units.Standard{}, err
	}

	return units.Standardize(decl)
}
