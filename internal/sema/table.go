// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sema analyzes a parsed program: it resolves names and types,
// selects methods by receiver type, expands inline and closure calls, and
// leaves behind an AST where every expression carries its resolved type
// and every call its resolved target.
package sema

import (
	"fmt"
	"iter"

	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/dbg"
	"buf.build/go/sarus/internal/debug"
	"buf.build/go/sarus/internal/scc"
	"buf.build/go/sarus/internal/types"
)

// ErrorKind classifies an analysis error.
type ErrorKind int

const (
	ErrResolution ErrorKind = iota
	ErrType
	ErrLayout
)

// Error is an analysis error with the position of the offending node.
type Error struct {
	Kind ErrorKind
	Pos  ast.Pos
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func errf(kind ErrorKind, pos ast.Pos, format string, args ...any) error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// funcKey indexes the function table: methods by receiver type name,
// free functions with an empty receiver.
type funcKey struct {
	recv string
	name string
}

// Func is a function known to the analyzer, with its resolved signature.
type Func struct {
	Decl   *ast.FuncDecl
	Recv   types.Type // nil for free functions
	Params []types.Type
	Rets   []types.Type

	// Symbol is the name the function is published (or looked up, for
	// externs) under.
	Symbol string
	Extern bool

	// Compile marks functions that need a standalone compiled body:
	// every non-inline function, plus inline functions that recurse.
	Compile bool

	// Body is the analyzed copy of the declaration's body. The declared
	// body itself stays pristine: inline expansion deep-copies it per
	// call site, and copies must never drag along another analysis'
	// annotations.
	Body *ast.Block

	analyzed bool
}

// Table is the declaration index: functions by (receiver, name), structs
// and enums by name, and registered constants.
type Table struct {
	Structs map[string]*types.Struct
	Enums   map[string]*types.Enum
	funcs   map[funcKey][]*Func

	// Consts are registered named constants (PI, E, …). They behave like
	// float literals: contextually typed, defaulting to the default float.
	Consts map[string]float64

	// Order lists functions in declaration order, for deterministic
	// compilation.
	Order []*Func
}

// NamedType resolves a type name: a scalar or a declared struct or enum.
func (t *Table) NamedType(name string) types.Type {
	if s, ok := types.Scalars[name]; ok {
		return s
	}
	if s, ok := t.Structs[name]; ok {
		return s
	}
	if e, ok := t.Enums[name]; ok {
		return e
	}
	return nil
}

// Lookup returns the overloads declared under (recv, name). recv is the
// string form of the receiver type, or empty.
func (t *Table) Lookup(recv, name string) []*Func {
	return t.funcs[funcKey{recv, name}]
}

// Funcs ranges over every declared function.
func (t *Table) Funcs() iter.Seq[*Func] {
	return func(yield func(*Func) bool) {
		for _, fn := range t.Order {
			if !yield(fn) {
				return
			}
		}
	}
}

// build indexes declarations and resolves every declared type.
func (c *checker) build(decls []ast.Decl) error {
	t := c.table

	// Pass 1: collect struct and enum declarations by name, so that
	// fields can refer to types declared later (or to themselves, which
	// the cycle check below rejects).
	structs := map[string]*ast.StructDecl{}
	enums := map[string]*ast.EnumDecl{}
	for _, d := range decls {
		switch d := d.(type) {
		case *ast.StructDecl:
			if _, dup := structs[d.Name]; dup {
				return errf(ErrResolution, d.Pos, "duplicate struct %q", d.Name)
			}
			structs[d.Name] = d
		case *ast.EnumDecl:
			if _, dup := enums[d.Name]; dup {
				return errf(ErrResolution, d.Pos, "duplicate enum %q", d.Name)
			}
			enums[d.Name] = d
		}
	}

	// Pass 2: reject recursive aggregates, then lay out structs and enums
	// in dependency order, leaves first.
	deps := func(name string) iter.Seq[string] {
		return func(yield func(string) bool) {
			visit := func(te *ast.TypeExpr) bool {
				for te != nil && te.Kind == ast.TypeFixed {
					te = te.Elem
				}
				// Slices indirect, so they do not create layout cycles.
				if te == nil || te.Kind != ast.TypeName {
					return true
				}
				if _, ok := structs[te.Name]; ok {
					return yield(te.Name)
				}
				if _, ok := enums[te.Name]; ok {
					return yield(te.Name)
				}
				return true
			}
			if s, ok := structs[name]; ok {
				for _, f := range s.Fields {
					if !visit(f.Type) {
						return
					}
				}
			}
			if e, ok := enums[name]; ok {
				for _, v := range e.Variants {
					if !visit(v.Payload) {
						return
					}
				}
			}
		}
	}

	done := map[string]bool{}
	layoutOne := func(name string) error {
		if done[name] {
			return nil
		}
		done[name] = true
		if sd, ok := structs[name]; ok {
			var fields []types.Field
			for _, f := range sd.Fields {
				ft, err := c.resolveType(f.Type, sd.Pos)
				if err != nil {
					return err
				}
				fields = append(fields, types.Field{Name: f.Name, Type: ft})
			}
			st := types.NewStruct(name, fields)
			t.Structs[name] = st
			debug.Log(nil, "layout", "struct %v", dbg.Dict(name,
				"size", st.Size(),
				"align", st.Align(),
				"fields", len(st.Fields),
			))
			return nil
		}
		ed := enums[name]
		var variants []types.EnumVariant
		for i, v := range ed.Variants {
			ev := types.EnumVariant{Name: v.Name, Tag: int64(i)}
			if v.Payload != nil {
				pt, err := c.resolveType(v.Payload, ed.Pos)
				if err != nil {
					return err
				}
				ev.Payload = pt
			}
			variants = append(variants, ev)
		}
		en := types.NewEnum(name, variants)
		t.Enums[name] = en
		debug.Log(nil, "layout", "enum %s: size %d", name, en.Size())
		return nil
	}

	for name := range structs {
		if err := c.layoutFrom(name, deps, layoutOne, structs, enums); err != nil {
			return err
		}
	}
	for name := range enums {
		if err := c.layoutFrom(name, deps, layoutOne, structs, enums); err != nil {
			return err
		}
	}

	// Pass 3: index functions and resolve their signatures.
	for _, d := range decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		fn := &Func{Decl: fd, Extern: fd.Extern}
		for i, p := range fd.Params {
			pt, err := c.resolveParamType(p.Type, fd.Pos)
			if err != nil {
				return err
			}
			fn.Params = append(fn.Params, pt)
			if i == 0 && p.Name == "self" {
				fn.Recv = pt
			}
		}
		for _, r := range fd.Returns {
			rt, err := c.resolveParamType(r.Type, fd.Pos)
			if err != nil {
				return err
			}
			fn.Rets = append(fn.Rets, rt)
		}
		fn.Compile = !fd.Extern && fd.Inline == ast.InlineNone

		key := funcKey{name: fd.Name}
		fn.Symbol = fd.Name
		if fn.Recv != nil {
			key.recv = fn.Recv.String()
			fn.Symbol = key.recv + "." + fd.Name
		}
		if n := len(t.funcs[key]); n > 0 {
			fn.Symbol = fmt.Sprintf("%s$%d", fn.Symbol, n)
		}
		t.funcs[key] = append(t.funcs[key], fn)
		t.Order = append(t.Order, fn)
	}
	return nil
}

// layoutFrom lays out every aggregate reachable from name, leaves first,
// rejecting recursion.
func (c *checker) layoutFrom(
	name string,
	deps scc.Graph[string],
	layoutOne func(string) error,
	structs map[string]*ast.StructDecl,
	enums map[string]*ast.EnumDecl,
) error {
	if c.table.Structs[name] != nil || c.table.Enums[name] != nil {
		return nil
	}
	order, cycle := scc.Sort(name, deps)
	if cycle != nil {
		n := cycle[0]
		pos := ast.Pos{}
		if sd, ok := structs[n]; ok {
			pos = sd.Pos
		} else if ed, ok := enums[n]; ok {
			pos = ed.Pos
		}
		return errf(ErrLayout, pos, "recursive type %q has no finite layout; box it behind a slice", n)
	}
	for _, member := range order {
		if err := layoutOne(member); err != nil {
			return err
		}
	}
	return nil
}

// resolveType resolves a type expression. A nil expression resolves to
// the default float.
func (c *checker) resolveType(te *ast.TypeExpr, pos ast.Pos) (types.Type, error) {
	if te == nil {
		return c.defaultFloat, nil
	}
	switch te.Kind {
	case ast.TypeName:
		if t := c.table.NamedType(te.Name); t != nil {
			return t, nil
		}
		// Structs still being laid out resolve through the decl maps via
		// the SCC ordering, so reaching here means the name is unknown.
		return nil, errf(ErrResolution, pos, "unknown type %q", te.Name)
	case ast.TypeFixed:
		elem, err := c.resolveType(te.Elem, pos)
		if err != nil {
			return nil, err
		}
		return &types.FixedArray{Elem: elem, Len: te.Len}, nil
	case ast.TypeSlice:
		elem, err := c.resolveType(te.Elem, pos)
		if err != nil {
			return nil, err
		}
		return &types.Slice{Elem: elem}, nil
	case ast.TypeUnsized:
		elem, err := c.resolveType(te.Elem, pos)
		if err != nil {
			return nil, err
		}
		return &types.Unsized{Elem: elem}, nil
	case ast.TypeRef:
		return types.Ref, nil
	case ast.TypeClosure:
		cl := &types.Closure{}
		for _, pt := range te.Params {
			t, err := c.resolveType(pt, pos)
			if err != nil {
				return nil, err
			}
			cl.Params = append(cl.Params, t)
		}
		for _, rt := range te.Returns {
			t, err := c.resolveType(rt, pos)
			if err != nil {
				return nil, err
			}
			cl.Returns = append(cl.Returns, t)
		}
		return cl, nil
	}
	return nil, errf(ErrResolution, pos, "unresolvable type expression")
}

// resolveParamType is resolveType with the default-float rule for omitted
// annotations.
func (c *checker) resolveParamType(te *ast.TypeExpr, pos ast.Pos) (types.Type, error) {
	return c.resolveType(te, pos)
}
