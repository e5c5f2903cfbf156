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

package main

import (
	"encoding/json"
	"fmt"

	"github.com/mobius-lang/simc/ast"
)

// decodeTree reads a JSON-encoded declaration tree: the abstract declaration
// tree ast.Tree is, per spec.md §1/§6, produced by an out-of-scope lexer and
// parser. This decoder plays that role for cmd/simc: a model file is a JSON
// array of tagged declaration objects, rather than the language's own
// concrete syntax, so the CLI has something concrete to compile and run
// without reimplementing the (intentionally out-of-scope) front end.
func decodeTree(data []byte) (*ast.Tree, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	decls := make([]ast.Node, len(raw))

	for i, r := range raw {
		d, err := decodeDecl(r)
		if err != nil {
			return nil, fmt.Errorf("decode model: declaration %d: %w", i, err)
		}

		decls[i] = d
	}

	return &ast.Tree{Declarations: decls}, nil
}

type taggedNode struct {
	Kind string `json:"kind"`
}

func decodeDecl(raw json.RawMessage) (ast.Node, error) {
	var tag taggedNode
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}

	switch tag.Kind {
	case "compartment":
		var v struct {
			Handle     string            `json:"handle"`
			SerialName string            `json:"serial_name"`
			Children   []json.RawMessage `json:"children"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		children := make([]ast.Node, len(v.Children))

		for i, c := range v.Children {
			child, err := decodeDecl(c)
			if err != nil {
				return nil, err
			}

			children[i] = child
		}

		return &ast.CompartmentDecl{Handle: v.Handle, SerialName: v.SerialName, Children: children}, nil

	case "quantity":
		var v struct {
			Handle     string `json:"handle"`
			SerialName string `json:"serial_name"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		return &ast.QuantityDecl{Handle: v.Handle, SerialName: v.SerialName}, nil

	case "parameter":
		var v struct {
			Handle     string          `json:"handle"`
			SerialName string          `json:"serial_name"`
			Unit       *unitJSON       `json:"unit"`
			Default    json.RawMessage `json:"default"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		def, err := decodeOptionalExpr(v.Default)
		if err != nil {
			return nil, err
		}

		return &ast.ParameterDecl{Handle: v.Handle, SerialName: v.SerialName, Unit: v.Unit.toAST(), Default: def}, nil

	case "connection":
		var v struct {
			Handle     string `json:"handle"`
			SerialName string `json:"serial_name"`
			Topology   string `json:"topology"`
			IndexSet   string `json:"index_set"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		return &ast.ConnectionDecl{Handle: v.Handle, SerialName: v.SerialName, Topology: v.Topology, IndexSet: v.IndexSet}, nil

	case "index_set":
		var v struct {
			Handle     string          `json:"handle"`
			SerialName string          `json:"serial_name"`
			Size       json.RawMessage `json:"size"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		size, err := decodeOptionalExpr(v.Size)
		if err != nil {
			return nil, err
		}

		return &ast.IndexSetDecl{Handle: v.Handle, SerialName: v.SerialName, Size: size}, nil

	case "constant":
		var v struct {
			Handle     string          `json:"handle"`
			SerialName string          `json:"serial_name"`
			Unit       *unitJSON       `json:"unit"`
			Value      json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}

		return &ast.ConstantDecl{Handle: v.Handle, SerialName: v.SerialName, Unit: v.Unit.toAST(), Value: val}, nil

	case "function":
		var v struct {
			Handle     string          `json:"handle"`
			ParamNames []string        `json:"param_names"`
			ParamUnits []*unitJSON     `json:"param_units"`
			ResultUnit *unitJSON       `json:"result_unit"`
			Body       json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		body, err := decodeOptionalExpr(v.Body)
		if err != nil {
			return nil, err
		}

		units := make([]*ast.UnitExpr, len(v.ParamUnits))
		for i, u := range v.ParamUnits {
			units[i] = u.toAST()
		}

		return &ast.FunctionDecl{
			Handle: v.Handle, ParamNames: v.ParamNames, ParamUnits: units,
			ResultUnit: v.ResultUnit.toAST(), Body: body,
		}, nil

	case "variable":
		var v struct {
			Location []string        `json:"location"`
			VarKind  string          `json:"var_kind"`
			Unit     *unitJSON       `json:"unit"`
			Code     json.RawMessage `json:"code"`
			Override json.RawMessage `json:"override"`
			Discrete bool            `json:"discrete"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		code, err := decodeExpr(v.Code)
		if err != nil {
			return nil, err
		}

		override, err := decodeOptionalExpr(v.Override)
		if err != nil {
			return nil, err
		}

		return &ast.VariableDecl{
			Location: v.Location, VarKind: ast.VariableKindName(v.VarKind), Unit: v.Unit.toAST(),
			Code: code, Override: override, Discrete: v.Discrete,
		}, nil

	case "solver":
		var v struct {
			Handle    string          `json:"handle"`
			Algorithm string          `json:"algorithm"`
			StepExpr  json.RawMessage `json:"step"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		step, err := decodeOptionalExpr(v.StepExpr)
		if err != nil {
			return nil, err
		}

		return &ast.SolverDecl{Handle: v.Handle, Algorithm: v.Algorithm, StepExpr: step}, nil

	case "library_include":
		var v struct {
			Path            string `json:"path"`
			AllowParameters bool   `json:"allow_parameters"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		return &ast.LibraryIncludeDecl{Path: v.Path, AllowParameters: v.AllowParameters}, nil

	default:
		return nil, fmt.Errorf("unknown declaration kind %q", tag.Kind)
	}
}

type unitJSON struct {
	Parts []struct {
		Prefix string `json:"prefix"`
		Symbol string `json:"symbol"`
		Num    int    `json:"num"`
		Den    int    `json:"den"`
	} `json:"parts"`
}

func (u *unitJSON) toAST() *ast.UnitExpr {
	if u == nil {
		return nil
	}

	parts := make([]ast.UnitPartExpr, len(u.Parts))
	for i, p := range u.Parts {
		parts[i] = ast.UnitPartExpr{Prefix: p.Prefix, Symbol: p.Symbol, Num: p.Num, Den: p.Den}
	}

	return &ast.UnitExpr{Parts: parts}
}

func decodeOptionalExpr(raw json.RawMessage) (ast.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	return decodeExpr(raw)
}

// decodeExpr decodes one expression node. Only the node kinds a realistic
// simulation model actually needs are supported (literal, identifier, call,
// unary/binary operators, unit conversion, if-chains, local bindings and
// tuples); iterate_tag/iterate_ref/unpack are left undecoded here since no
// example model in this pack's scope exercises module-template iteration.
func decodeExpr(raw json.RawMessage) (ast.Node, error) {
	var tag taggedNode
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}

	switch tag.Kind {
	case "literal":
		var v struct {
			LitKind string  `json:"lit_kind"`
			Int     int64   `json:"int"`
			Real    float64 `json:"real"`
			Bool    bool    `json:"bool"`
			Text    string  `json:"text"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		lit := &ast.Literal{Text: v.Text}

		switch v.LitKind {
		case "int":
			lit.LitKind, lit.Int = ast.LitInt, v.Int
		case "real":
			lit.LitKind, lit.Real = ast.LitReal, v.Real
		case "bool":
			lit.LitKind, lit.Bool = ast.LitBool, v.Bool
		default:
			return nil, fmt.Errorf("unsupported literal kind %q", v.LitKind)
		}

		return lit, nil

	case "identifier":
		var v struct {
			Path []struct {
				Name            string `json:"name"`
				RestrictionConn string `json:"restriction_conn"`
				RestrictionKind string `json:"restriction_kind"`
			} `json:"path"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		path := make([]ast.PathSegment, len(v.Path))
		for i, p := range v.Path {
			path[i] = ast.PathSegment{Name: p.Name, RestrictionConn: p.RestrictionConn, RestrictionKind: p.RestrictionKind}
		}

		return &ast.Identifier{Path: path}, nil

	case "call":
		var v struct {
			Callee string            `json:"callee"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		args, err := decodeExprList(v.Args)
		if err != nil {
			return nil, err
		}

		return &ast.Call{Callee: v.Callee, Args: args}, nil

	case "unary":
		var v struct {
			Op      string          `json:"op"`
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		operand, err := decodeExpr(v.Operand)
		if err != nil {
			return nil, err
		}

		return &ast.UnaryOp{Op: v.Op, Operand: operand}, nil

	case "binary":
		var v struct {
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		left, err := decodeExpr(v.Left)
		if err != nil {
			return nil, err
		}

		right, err := decodeExpr(v.Right)
		if err != nil {
			return nil, err
		}

		return &ast.BinaryOp{Op: v.Op, Left: left, Right: right}, nil

	case "convert":
		var v struct {
			Mode       string          `json:"mode"`
			Operand    json.RawMessage `json:"operand"`
			TargetUnit *unitJSON       `json:"target_unit"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		operand, err := decodeExpr(v.Operand)
		if err != nil {
			return nil, err
		}

		mode, err := decodeConvertMode(v.Mode)
		if err != nil {
			return nil, err
		}

		return &ast.Convert{Mode: mode, Operand: operand, TargetUnit: v.TargetUnit.toAST()}, nil

	case "if_chain":
		var v struct {
			Branches []struct {
				Condition json.RawMessage `json:"condition"`
				Value     json.RawMessage `json:"value"`
			} `json:"branches"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		branches := make([]ast.IfBranch, len(v.Branches))

		for i, b := range v.Branches {
			cond, err := decodeOptionalExpr(b.Condition)
			if err != nil {
				return nil, err
			}

			val, err := decodeExpr(b.Value)
			if err != nil {
				return nil, err
			}

			branches[i] = ast.IfBranch{Condition: cond, Value: val}
		}

		return &ast.IfChain{Branches: branches}, nil

	case "local_decl":
		var v struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}

		return &ast.LocalDecl{Name: v.Name, Value: val}, nil

	case "reassign":
		var v struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}

		return &ast.Reassign{Name: v.Name, Value: val}, nil

	case "block":
		var v struct {
			Statements []json.RawMessage `json:"statements"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		stmts, err := decodeExprList(v.Statements)
		if err != nil {
			return nil, err
		}

		return &ast.Block{Statements: stmts}, nil

	case "tuple":
		var v struct {
			Elements []json.RawMessage `json:"elements"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		elems, err := decodeExprList(v.Elements)
		if err != nil {
			return nil, err
		}

		return &ast.Tuple{Elements: elems}, nil

	default:
		return nil, fmt.Errorf("unsupported expression kind %q", tag.Kind)
	}
}

func decodeExprList(raw []json.RawMessage) ([]ast.Node, error) {
	out := make([]ast.Node, len(raw))

	for i, r := range raw {
		n, err := decodeExpr(r)
		if err != nil {
			return nil, err
		}

		out[i] = n
	}

	return out, nil
}

func decodeConvertMode(s string) (ast.ConvertMode, error) {
	switch s {
	case "checked", "":
		return ast.ConvertChecked, nil
	case "checked_additive":
		return ast.ConvertCheckedAdditive, nil
	case "force":
		return ast.ConvertForce, nil
	case "auto":
		return ast.ConvertAuto, nil
	default:
		return 0, fmt.Errorf("unknown conversion mode %q", s)
	}
}
